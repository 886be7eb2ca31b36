// Package remotetest provides an in-process fake node for tests: a JSON-RPC
// endpoint and the beacon blob_sidecars route on one httptest server, with
// per-method call counting.
package remotetest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/chaincache/internal/chaindata"
)

// BlobMethod is the call-count key used for beacon blob_sidecars requests.
const BlobMethod = "blob_sidecars"

const blobPrefix = "/eth/v1/beacon/blob_sidecars/"

// Handler produces the result of one JSON-RPC call. Returning an *RPCError
// produces a JSON-RPC error object, returning a Status produces a bare HTTP
// status, and any other error produces an internal error object.
type Handler func(params []json.RawMessage) (any, error)

// RPCError is a JSON-RPC error object returned by a Handler.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Status makes a Handler answer with a bare HTTP status.
type Status int

func (s Status) Error() string {
	return http.StatusText(int(s))
}

type blobReply struct {
	status int
	body   any
}

// Server is a fake execution and beacon node.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	blobs    map[string]blobReply
	calls    map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		handlers: make(map[string]Handler),
		blobs:    make(map[string]blobReply),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	tb.Cleanup(s.Close)
	return s
}

// Handle registers h for method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Respond makes method always return result.
func (s *Server) Respond(method string, result any) {
	s.Handle(method, func([]json.RawMessage) (any, error) { return result, nil })
}

// Fail makes method always return a JSON-RPC error object.
func (s *Server) Fail(method string, code int, message string) {
	s.Handle(method, func([]json.RawMessage) (any, error) {
		return nil, &RPCError{Code: code, Message: message}
	})
}

// RespondBlobs serves body with status for the beacon block id.
func (s *Server) RespondBlobs(blockID string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[blockID] = blobReply{status: status, body: body}
}

// Calls returns how many requests method received.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of requests across all methods.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, blobPrefix) {
		s.serveBlobs(w, strings.TrimPrefix(r.URL.Path, blobPrefix))
		return
	}

	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &RPCError{Code: -32601, Message: "the method " + req.Method + " does not exist"}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	result, err := h(req.Params)
	if err != nil {
		var status Status
		var rpcErr *RPCError
		switch {
		case errors.As(err, &status):
			w.WriteHeader(int(status))
			return
		case errors.As(err, &rpcErr):
			resp["error"] = rpcErr
		default:
			resp["error"] = &RPCError{Code: -32603, Message: err.Error()}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp["result"] = result
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) serveBlobs(w http.ResponseWriter, blockID string) {
	s.mu.Lock()
	s.calls[BlobMethod]++
	reply, ok := s.blobs[blockID]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "Block not found"})
		return
	}
	writeJSON(w, reply.status, reply.body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// BlockJSON renders b the way eth_getBlockByNumber does: header fields at the
// top level, then transaction objects (full) or hashes.
func BlockJSON(tb testing.TB, b *chaindata.Block, full bool) json.RawMessage {
	tb.Helper()

	headerJSON, err := json.Marshal(b.Header)
	if err != nil {
		tb.Fatalf("marshaling header: %v", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(headerJSON, &fields); err != nil {
		tb.Fatalf("unmarshaling header: %v", err)
	}

	var txs any
	if full {
		txs = b.Transactions
	} else {
		hashes := make([]common.Hash, 0, len(b.Transactions))
		for _, tx := range b.Transactions {
			hashes = append(hashes, tx.Hash())
		}
		txs = hashes
	}
	if b.Transactions == nil {
		txs = []any{}
	}

	uncles := b.Uncles
	if uncles == nil {
		uncles = []common.Hash{}
	}

	set := func(key string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			tb.Fatalf("marshaling %s: %v", key, err)
		}
		fields[key] = data
	}
	set("transactions", txs)
	set("uncles", uncles)
	if b.Withdrawals != nil {
		set("withdrawals", b.Withdrawals)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		tb.Fatalf("marshaling block: %v", err)
	}
	return out
}
