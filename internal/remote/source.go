// Package remote fetches chain data from an execution-layer JSON-RPC node and,
// for blob data, a consensus-layer beacon API.
//
// Every request waits on a per-endpoint rate limiter and is retried with
// exponential backoff on transport errors, HTTP 429 and HTTP 5xx. Errors
// reported by the node itself are returned after the first attempt.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/chain"
	"github.com/mrz1836/chaincache/internal/chain/eth/rpc"
	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/metrics"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// defaultHTTPTimeout bounds one HTTP round trip when no client is supplied.
const defaultHTTPTimeout = 60 * time.Second

// Options configures a Source.
type Options struct {
	// HTTPClient is shared by the RPC and beacon clients.
	HTTPClient *http.Client
	// Retry overrides the default retry policy.
	Retry *chain.RetryConfig
	// RateLimiter overrides the default per-endpoint limiter.
	RateLimiter *chain.RateLimiter
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Source is the network-backed data source. It keeps no state about the
// queries it serves.
type Source struct {
	rpc       *rpc.Client
	rpcKey    string
	beacon    *beaconClient
	beaconKey string
	retry     chain.RetryConfig
	limiter   *chain.RateLimiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewSource creates a source for rpcURL and an optional beaconURL ("" for none).
func NewSource(rpcURL, beaconURL string, opts *Options) (*Source, error) {
	if rpcURL == "" {
		return nil, ErrRPCURLRequired
	}
	if err := ValidateEndpoint(rpcURL); err != nil {
		return nil, err
	}
	if beaconURL != "" {
		if err := ValidateEndpoint(beaconURL); err != nil {
			return nil, err
		}
	}

	if opts == nil {
		opts = &Options{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	s := &Source{
		rpc:     rpc.NewClientWithOptions(rpcURL, &rpc.ClientOptions{HTTPClient: httpClient}),
		rpcKey:  chain.EndpointKey(rpcURL),
		retry:   chain.DefaultRetryConfig(),
		limiter: opts.RateLimiter,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if beaconURL != "" {
		s.beacon = newBeaconClient(beaconURL, httpClient)
		s.beaconKey = chain.EndpointKey(beaconURL)
	}
	if opts.Retry != nil {
		s.retry = *opts.Retry
	}
	if s.limiter == nil {
		s.limiter = chain.DefaultRateLimiter()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// ValidateEndpoint checks that raw is an absolute http(s) URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ccerr.WithCause(ccerr.WithDetails(ErrInvalidEndpoint, map[string]string{"url": raw}), err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ccerr.WithDetails(ErrInvalidEndpoint, map[string]string{
			"url":    raw,
			"reason": "expected an absolute http or https URL",
		})
	}
	return nil
}

// HasBeacon reports whether blob queries can be served.
func (s *Source) HasBeacon() bool {
	return s.beacon != nil
}

// Save is a no-op; the remote source persists nothing.
func (s *Source) Save() error {
	return nil
}

var jsonNull = []byte("null")

// call runs one JSON-RPC method under rate limiting and retry and decodes the
// result into out. A null result is ErrNotFoundUpstream.
func (s *Source) call(ctx context.Context, kind chaindata.Kind, out any, method string, params ...any) error {
	start := time.Now()
	raw, err := chain.RetryWithConfig(ctx, s.retry, func() (json.RawMessage, error) {
		if err := s.limiter.Wait(ctx, s.rpcKey); err != nil {
			return nil, err
		}
		return s.rpc.Call(ctx, method, params...)
	})
	if err == nil && (len(raw) == 0 || bytes.Equal(raw, jsonNull)) {
		err = ccerr.WithDetails(ErrNotFoundUpstream, map[string]string{"method": method})
	}
	if err == nil {
		if decodeErr := json.Unmarshal(raw, out); decodeErr != nil {
			err = ccerr.WithCause(ccerr.WithDetails(rpc.ErrRPCResponse, map[string]string{"method": method}), decodeErr)
		}
	}

	s.observe(kind, method, start, err)
	return err
}

func (s *Source) observe(kind chaindata.Kind, method string, start time.Time, err error) {
	elapsed := time.Since(start)
	s.metrics.RecordRemoteCall(string(kind), elapsed, err)
	if err != nil {
		s.logger.Debug("remote fetch failed",
			zap.String("kind", string(kind)),
			zap.String("method", method),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	s.logger.Debug("remote fetch",
		zap.String("kind", string(kind)),
		zap.String("method", method),
		zap.Duration("elapsed", elapsed))
}

// blockBody is the part of an eth_getBlockByNumber result that is not header.
type blockBody[T any] struct {
	Transactions []T                 `json:"transactions"`
	Uncles       []common.Hash       `json:"uncles"`
	Withdrawals  []*types.Withdrawal `json:"withdrawals"`
}

// getBlock fetches a block and splits it into header and body.
func getBlock[T any](ctx context.Context, s *Source, kind chaindata.Kind, q chaindata.BlockQuery, full bool) (*types.Header, *blockBody[T], error) {
	var raw json.RawMessage
	if err := s.call(ctx, kind, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(q.BlockNo), full); err != nil {
		return nil, nil, err
	}

	var header types.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, nil, ccerr.WithCause(rpc.ErrRPCResponse, fmt.Errorf("decoding block header: %w", err))
	}
	var body blockBody[T]
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, ccerr.WithCause(rpc.ErrRPCResponse, fmt.Errorf("decoding block body: %w", err))
	}
	if body.Transactions == nil {
		body.Transactions = []T{}
	}
	return &header, &body, nil
}

// GetFullBlock fetches a block with transaction bodies.
func (s *Source) GetFullBlock(ctx context.Context, q chaindata.BlockQuery) (*chaindata.Block, error) {
	header, body, err := getBlock[*types.Transaction](ctx, s, chaindata.KindFullBlock, q, true)
	if err != nil {
		return nil, err
	}
	return &chaindata.Block{
		Header:       header,
		Transactions: body.Transactions,
		Uncles:       body.Uncles,
		Withdrawals:  body.Withdrawals,
	}, nil
}

// GetPartialBlock fetches a block with transaction hashes only.
func (s *Source) GetPartialBlock(ctx context.Context, q chaindata.BlockQuery) (*chaindata.PartialBlock, error) {
	header, body, err := getBlock[common.Hash](ctx, s, chaindata.KindPartialBlock, q, false)
	if err != nil {
		return nil, err
	}
	return &chaindata.PartialBlock{
		Header:       header,
		Transactions: body.Transactions,
		Uncles:       body.Uncles,
		Withdrawals:  body.Withdrawals,
	}, nil
}

// GetBlockReceipts fetches every receipt of a block.
func (s *Source) GetBlockReceipts(ctx context.Context, q chaindata.BlockQuery) ([]*types.Receipt, error) {
	var out []*types.Receipt
	if err := s.call(ctx, chaindata.KindBlockReceipts, &out, "eth_getBlockReceipts", hexutil.EncodeUint64(q.BlockNo)); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProof fetches an EIP-1186 account proof for the query's storage slots.
func (s *Source) GetProof(ctx context.Context, q chaindata.ProofQuery) (*chaindata.AccountProof, error) {
	slots := make([]string, 0, len(q.Indices))
	for _, idx := range q.SortedIndices() {
		slots = append(slots, idx.Hex())
	}

	var out chaindata.AccountProof
	if err := s.call(ctx, chaindata.KindProof, &out, "eth_getProof", q.Address, slots, hexutil.EncodeUint64(q.BlockNo)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransactionCount fetches the account nonce at a block.
func (s *Source) GetTransactionCount(ctx context.Context, q chaindata.AccountQuery) (uint64, error) {
	var out hexutil.Uint64
	if err := s.call(ctx, chaindata.KindTransactionCount, &out, "eth_getTransactionCount", q.Address, hexutil.EncodeUint64(q.BlockNo)); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// GetBalance fetches the account balance in wei at a block.
func (s *Source) GetBalance(ctx context.Context, q chaindata.AccountQuery) (*big.Int, error) {
	var out hexutil.Big
	if err := s.call(ctx, chaindata.KindBalance, &out, "eth_getBalance", q.Address, hexutil.EncodeUint64(q.BlockNo)); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// GetCode fetches the account code at a block. Accounts without code return
// an empty slice.
func (s *Source) GetCode(ctx context.Context, q chaindata.AccountQuery) ([]byte, error) {
	var out hexutil.Bytes
	if err := s.call(ctx, chaindata.KindCode, &out, "eth_getCode", q.Address, hexutil.EncodeUint64(q.BlockNo)); err != nil {
		return nil, err
	}
	if out == nil {
		out = hexutil.Bytes{}
	}
	return out, nil
}

// GetStorage fetches one storage slot at a block.
func (s *Source) GetStorage(ctx context.Context, q chaindata.StorageQuery) (common.Hash, error) {
	var out hexutil.Bytes
	if err := s.call(ctx, chaindata.KindStorage, &out, "eth_getStorageAt", q.Address, q.Slot.Hex(), hexutil.EncodeUint64(q.BlockNo)); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(out), nil
}

// logFilter is the eth_getLogs filter object.
type logFilter struct {
	Address   common.Address  `json:"address"`
	FromBlock string          `json:"fromBlock"`
	ToBlock   string          `json:"toBlock"`
	Topics    [][]common.Hash `json:"topics,omitempty"`
}

// GetLogs fetches the logs matching the query.
func (s *Source) GetLogs(ctx context.Context, q chaindata.LogsQuery) ([]types.Log, error) {
	filter := logFilter{
		Address:   q.Address,
		FromBlock: hexutil.EncodeUint64(q.FromBlock),
		ToBlock:   hexutil.EncodeUint64(q.ToBlock),
		Topics:    q.Topics,
	}

	var out []types.Log
	if err := s.call(ctx, chaindata.KindLogs, &out, "eth_getLogs", filter); err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.Log{}
	}
	return out, nil
}

// GetTransaction fetches a transaction by hash. The block scope of the query
// is not used; the node resolves the hash itself.
func (s *Source) GetTransaction(ctx context.Context, q chaindata.TxQuery) (*types.Transaction, error) {
	var out types.Transaction
	if err := s.call(ctx, chaindata.KindTransaction, &out, "eth_getTransactionByHash", q.TxHash); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlobData fetches the blob sidecars of a beacon block.
func (s *Source) GetBlobData(ctx context.Context, q chaindata.BlobQuery) (*chaindata.BlobsResponse, error) {
	if s.beacon == nil {
		return nil, ErrBeaconNotConfigured
	}

	start := time.Now()
	out, err := chain.RetryWithConfig(ctx, s.retry, func() (*chaindata.BlobsResponse, error) {
		if err := s.limiter.Wait(ctx, s.beaconKey); err != nil {
			return nil, err
		}
		return s.beacon.blobSidecars(ctx, q.BlockID)
	})
	s.observe(chaindata.KindBlobData, "blob_sidecars", start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
