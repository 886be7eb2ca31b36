package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mrz1836/chaincache/internal/chain"
	"github.com/mrz1836/chaincache/internal/chaindata"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

const (
	// blobSidecarsPath is the beacon API route for blob sidecars.
	blobSidecarsPath = "/eth/v1/beacon/blob_sidecars/"

	// maxBeaconBody caps a blob sidecars response. A block carries at most a
	// few dozen 128 KiB blobs, hex encoded.
	maxBeaconBody = 64 << 20
)

// beaconClient fetches blob sidecars from a consensus-layer REST API.
type beaconClient struct {
	baseURL    string
	httpClient *http.Client
}

func newBeaconClient(baseURL string, httpClient *http.Client) *beaconClient {
	return &beaconClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// blobSidecars performs GET /eth/v1/beacon/blob_sidecars/{block_id}.
func (c *beaconClient) blobSidecars(ctx context.Context, blockID uint64) (*chaindata.BlobsResponse, error) {
	id := strconv.FormatUint(blockID, 10)
	reqURL := c.baseURL + blobSidecarsPath + id

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // G704: URL is constructed from validated config
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, chain.WrapRetryable(ccerr.WithCause(ErrBeaconRequest, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBeaconBody))
	if err != nil {
		return nil, chain.WrapRetryable(ccerr.WithCause(ErrBeaconRequest, fmt.Errorf("reading response: %w", err)))
	}

	details := map[string]string{
		"block_id": id,
		"status":   strconv.Itoa(resp.StatusCode),
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ccerr.WithDetails(ErrNotFoundUpstream, details)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ccerr.WithDetails(chain.ErrRateLimited, details)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, chain.WrapRetryable(ccerr.WithDetails(ErrBeaconRequest, details))
	default:
		details["body"] = truncateBody(string(body), 512)
		return nil, ccerr.WithDetails(ErrBeaconRequest, details)
	}

	var out chaindata.BlobsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, ccerr.WithCause(ccerr.WithDetails(ErrBeaconRequest, details), fmt.Errorf("parsing response: %w", err))
	}
	if out.Data == nil {
		out.Data = []chaindata.BlobSidecar{}
	}
	return &out, nil
}

// truncateBody truncates a string to maxLen characters.
func truncateBody(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
