package remote

import (
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// Sentinel errors for the remote source.
var (
	// ErrRPCURLRequired indicates no execution-layer endpoint was configured.
	ErrRPCURLRequired = &ccerr.Error{
		Code:       "RPC_URL_REQUIRED",
		Message:    "an RPC endpoint URL is required",
		Suggestion: "set --rpc-url or CHAINCACHE_RPC_URL",
		ExitCode:   ccerr.ExitInput,
	}

	// ErrInvalidEndpoint indicates a malformed endpoint URL.
	ErrInvalidEndpoint = &ccerr.Error{
		Code:     "INVALID_ENDPOINT",
		Message:  "invalid endpoint URL",
		ExitCode: ccerr.ExitInput,
	}

	// ErrNotFoundUpstream indicates the node has no data for the query.
	ErrNotFoundUpstream = &ccerr.Error{
		Code:     "NOT_FOUND_UPSTREAM",
		Message:  "not found on the remote node",
		ExitCode: ccerr.ExitNotFound,
	}

	// ErrBeaconNotConfigured indicates a blob query without a beacon endpoint.
	ErrBeaconNotConfigured = &ccerr.Error{
		Code:       "BEACON_NOT_CONFIGURED",
		Message:    "blob data requires a beacon endpoint",
		Suggestion: "set --beacon-url or CHAINCACHE_BEACON_URL",
		ExitCode:   ccerr.ExitInput,
	}

	// ErrBeaconRequest indicates a beacon API request failed.
	ErrBeaconRequest = &ccerr.Error{
		Code:     "BEACON_REQUEST_FAILED",
		Message:  "beacon API request failed",
		ExitCode: ccerr.ExitNetwork,
	}
)
