// Package rpc provides a minimal JSON-RPC 2.0 client for Ethereum nodes.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mrz1836/chaincache/internal/chain"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

const (
	// defaultTimeout bounds a single HTTP round trip.
	defaultTimeout = 60 * time.Second

	// maxResponseBody caps the bytes read from one response (64 MB, large
	// enough for full blocks and receipts of busy blocks).
	maxResponseBody = 64 << 20

	// maxErrorBody caps the body excerpt kept in error details.
	maxErrorBody = 512
)

var (
	// ErrRPCRequest indicates an RPC request failed.
	ErrRPCRequest = &ccerr.Error{
		Code:     "RPC_REQUEST_FAILED",
		Message:  "RPC request failed",
		ExitCode: ccerr.ExitNetwork,
	}

	// ErrRPCResponse indicates an invalid RPC response.
	ErrRPCResponse = &ccerr.Error{
		Code:     "RPC_INVALID_RESPONSE",
		Message:  "invalid RPC response",
		ExitCode: ccerr.ExitNetwork,
	}
)

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ClientOptions configures the client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Client is a minimal Ethereum JSON-RPC client.
type Client struct {
	url        string
	httpClient *http.Client
	idCounter  atomic.Uint64
}

// NewClient creates a new RPC client with default options.
func NewClient(url string) *Client {
	return NewClientWithOptions(url, nil)
}

// NewClientWithOptions creates a new RPC client.
func NewClientWithOptions(url string, opts *ClientOptions) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	if opts != nil && opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	}
	return c
}

// URL returns the endpoint URL.
func (c *Client) URL() string {
	return c.url
}

// request represents a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Call performs a JSON-RPC call and returns the raw result.
//
// Transport failures and HTTP 5xx responses are marked retryable, HTTP 429 is
// reported as chain.ErrRateLimited. A JSON-RPC error object is returned as
// *Error and is never retryable.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq) //nolint:gosec // G704: URL comes from validated config
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, chain.WrapRetryable(ccerr.WithCause(ErrRPCRequest, err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, chain.WrapRetryable(ccerr.WithCause(ErrRPCRequest, fmt.Errorf("reading response body: %w", err)))
	}

	if statusErr := classifyStatus(httpResp.StatusCode, httpResp.Header, respBody); statusErr != nil {
		return nil, statusErr
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, ccerr.WithCause(ErrRPCResponse, fmt.Errorf("unmarshaling response: %w", err))
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// classifyStatus maps non-200 HTTP statuses to errors.
func classifyStatus(status int, header http.Header, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	details := map[string]string{
		"status": fmt.Sprintf("%d", status),
		"body":   truncate(string(body), maxErrorBody),
	}

	switch {
	case status == http.StatusTooManyRequests:
		if wait := chain.ParseRetryAfter(header.Get("Retry-After")); wait > 0 {
			details["retry_after"] = wait.String()
		}
		return ccerr.WithDetails(chain.ErrRateLimited, details)
	case status >= http.StatusInternalServerError:
		return chain.WrapRetryable(ccerr.WithDetails(ErrRPCRequest, details))
	default:
		return ccerr.WithDetails(ErrRPCRequest, details)
	}
}

// truncate shortens s to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
