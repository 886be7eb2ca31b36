package store

import (
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// Lookup and persistence errors. Every lookup error means "not usable from
// cache" to callers; the distinction only matters for logging.
var (
	// ErrCacheMiss is returned when no entry exists for a query.
	ErrCacheMiss = ccerr.ErrCacheMiss

	// ErrCorruptEntry is returned when an entry exists but cannot be decoded
	// into the requested value type.
	ErrCorruptEntry = &ccerr.Error{
		Code:     "CACHE_ENTRY_CORRUPT",
		Message:  "cache entry cannot be decoded",
		ExitCode: ccerr.ExitStorage,
	}

	// ErrCorruptCache is returned by Load when the persisted cache is malformed.
	ErrCorruptCache = ccerr.ErrCacheCorrupt

	// ErrCacheFileNotFound is returned by Load when nothing has been persisted yet.
	ErrCacheFileNotFound = &ccerr.Error{
		Code:     "CACHE_FILE_NOT_FOUND",
		Message:  "cache file not found",
		ExitCode: ccerr.ExitNotFound,
	}

	// ErrUnsupportedVersion is returned by Load for snapshots written by an
	// incompatible version.
	ErrUnsupportedVersion = &ccerr.Error{
		Code:     "CACHE_VERSION_UNSUPPORTED",
		Message:  "unsupported cache snapshot version",
		ExitCode: ccerr.ExitStorage,
	}

	// ErrUnknownBackend is returned for an unrecognized backend name.
	ErrUnknownBackend = &ccerr.Error{
		Code:     "CACHE_BACKEND_UNKNOWN",
		Message:  "unknown cache backend",
		ExitCode: ccerr.ExitInput,
	}

	// ErrUnknownFormat is returned for an unrecognized snapshot format name.
	ErrUnknownFormat = &ccerr.Error{
		Code:     "CACHE_FORMAT_UNKNOWN",
		Message:  "unknown cache format",
		ExitCode: ccerr.ExitInput,
	}

	// ErrCacheWrite is returned when Save cannot persist the cache.
	ErrCacheWrite = ccerr.ErrCacheWrite
)
