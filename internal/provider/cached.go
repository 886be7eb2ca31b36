package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/metrics"
	"github.com/mrz1836/chaincache/internal/remote"
	"github.com/mrz1836/chaincache/internal/store"
)

// Options configures a CachedProvider.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Store   *store.Options
	Remote  *remote.Options
}

// CachedProvider serves every query from its store when possible and from
// the remote source otherwise, inserting remote results into the store.
//
// The store is only written to disk by Save. CachedProvider does no locking:
// callers must serialize access.
type CachedProvider struct {
	cache   *store.Store
	remote  *remote.Source
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New loads the cache at cachePath, falling back to an empty cache bound to
// the same path when nothing usable is there, and connects the remote source
// to rpcURL and the optional beaconURL ("" for none).
//
// Only remote source construction errors and invalid store options are
// returned.
func New(cachePath, rpcURL, beaconURL string, opts *Options) (*CachedProvider, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	storeOpts := &store.Options{}
	if opts.Store != nil {
		copied := *opts.Store
		storeOpts = &copied
	}
	if storeOpts.Logger == nil {
		storeOpts.Logger = logger
	}
	if err := storeOpts.Validate(); err != nil {
		return nil, err
	}

	remoteOpts := &remote.Options{}
	if opts.Remote != nil {
		copied := *opts.Remote
		remoteOpts = &copied
	}
	if remoteOpts.Logger == nil {
		remoteOpts.Logger = logger
	}
	if remoteOpts.Metrics == nil {
		remoteOpts.Metrics = opts.Metrics
	}

	source, err := remote.NewSource(rpcURL, beaconURL, remoteOpts)
	if err != nil {
		return nil, err
	}

	cache, err := store.Load(cachePath, storeOpts)
	if err != nil {
		logger.Debug("starting with an empty cache", zap.String("path", cachePath), zap.Error(err))
		cache = store.Empty(cachePath, storeOpts)
	}

	return NewFromParts(cache, source, opts), nil
}

// NewFromParts composes an existing store and source. The provider takes
// ownership of both.
func NewFromParts(cache *store.Store, source *remote.Source, opts *Options) *CachedProvider {
	p := &CachedProvider{cache: cache, remote: source}
	if opts != nil {
		p.logger = opts.Logger
		p.metrics = opts.Metrics
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Store exposes the underlying cache for inspection.
func (p *CachedProvider) Store() *store.Store {
	return p.cache
}

// Save writes the entire in-memory cache to its persistence location. It is
// the only operation that touches disk.
func (p *CachedProvider) Save() error {
	return p.cache.Save()
}

// Close releases store resources without saving.
func (p *CachedProvider) Close() error {
	return p.cache.Close()
}

// fetch is the cache-then-remote policy shared by every query kind. Any
// lookup error falls back to the remote source; a remote error is returned
// as is and leaves the cache untouched.
func fetch[Q interface{ Key() string }, V any](
	ctx context.Context,
	p *CachedProvider,
	kind chaindata.Kind,
	q Q,
	lookup func(context.Context, Q) (V, error),
	get func(context.Context, Q) (V, error),
	insert func(Q, V),
) (V, error) {
	v, err := lookup(ctx, q)
	if err == nil {
		p.hit(kind, q.Key())
		return v, nil
	}
	p.miss(kind, q.Key(), err)

	v, err = get(ctx, q)
	if err != nil {
		var zero V
		return zero, err
	}
	insert(q, v)
	return v, nil
}

func (p *CachedProvider) hit(kind chaindata.Kind, key string) {
	p.metrics.RecordCacheHit(string(kind))
	p.logger.Debug("cache hit", zap.String("kind", string(kind)), zap.String("key", key))
}

func (p *CachedProvider) miss(kind chaindata.Kind, key string, cause error) {
	p.metrics.RecordCacheMiss(string(kind))
	p.logger.Debug("cache miss", zap.String("kind", string(kind)), zap.String("key", key), zap.Error(cause))
}

// GetFullBlock returns a block with transaction bodies.
func (p *CachedProvider) GetFullBlock(ctx context.Context, q chaindata.BlockQuery) (*chaindata.Block, error) {
	return fetch(ctx, p, chaindata.KindFullBlock, q, p.cache.GetFullBlock, p.remote.GetFullBlock, p.cache.InsertFullBlock)
}

// GetPartialBlock returns a block with transaction hashes.
func (p *CachedProvider) GetPartialBlock(ctx context.Context, q chaindata.BlockQuery) (*chaindata.PartialBlock, error) {
	return fetch(ctx, p, chaindata.KindPartialBlock, q, p.cache.GetPartialBlock, p.remote.GetPartialBlock, p.cache.InsertPartialBlock)
}

// GetBlockReceipts returns every receipt of a block.
func (p *CachedProvider) GetBlockReceipts(ctx context.Context, q chaindata.BlockQuery) ([]*types.Receipt, error) {
	return fetch(ctx, p, chaindata.KindBlockReceipts, q, p.cache.GetBlockReceipts, p.remote.GetBlockReceipts, p.cache.InsertBlockReceipts)
}

// GetProof returns an account proof.
func (p *CachedProvider) GetProof(ctx context.Context, q chaindata.ProofQuery) (*chaindata.AccountProof, error) {
	return fetch(ctx, p, chaindata.KindProof, q, p.cache.GetProof, p.remote.GetProof, p.cache.InsertProof)
}

// GetTransactionCount returns an account nonce.
func (p *CachedProvider) GetTransactionCount(ctx context.Context, q chaindata.AccountQuery) (uint64, error) {
	return fetch(ctx, p, chaindata.KindTransactionCount, q, p.cache.GetTransactionCount, p.remote.GetTransactionCount, p.cache.InsertTransactionCount)
}

// GetBalance returns an account balance.
func (p *CachedProvider) GetBalance(ctx context.Context, q chaindata.AccountQuery) (*big.Int, error) {
	return fetch(ctx, p, chaindata.KindBalance, q, p.cache.GetBalance, p.remote.GetBalance, p.cache.InsertBalance)
}

// GetCode returns account code.
func (p *CachedProvider) GetCode(ctx context.Context, q chaindata.AccountQuery) ([]byte, error) {
	return fetch(ctx, p, chaindata.KindCode, q, p.cache.GetCode, p.remote.GetCode, p.cache.InsertCode)
}

// GetStorage returns a storage slot value.
func (p *CachedProvider) GetStorage(ctx context.Context, q chaindata.StorageQuery) (common.Hash, error) {
	return fetch(ctx, p, chaindata.KindStorage, q, p.cache.GetStorage, p.remote.GetStorage, p.cache.InsertStorage)
}

// GetLogs returns logs matching the query.
func (p *CachedProvider) GetLogs(ctx context.Context, q chaindata.LogsQuery) ([]types.Log, error) {
	return fetch(ctx, p, chaindata.KindLogs, q, p.cache.GetLogs, p.remote.GetLogs, p.cache.InsertLogs)
}

// GetBlobData returns the blob sidecars of a beacon block.
func (p *CachedProvider) GetBlobData(ctx context.Context, q chaindata.BlobQuery) (*chaindata.BlobsResponse, error) {
	return fetch(ctx, p, chaindata.KindBlobData, q, p.cache.GetBlobData, p.remote.GetBlobData, p.cache.InsertBlobData)
}

// GetTransaction resolves a transaction by hash:
//  1. a transaction cached under its hash;
//  2. when the query names a block, that block (fetched and cached through
//     GetFullBlock if needed) scanned for the hash; a match is returned
//     without caching it under the hash;
//  3. a remote lookup by hash, cached under the hash.
func (p *CachedProvider) GetTransaction(ctx context.Context, q chaindata.TxQuery) (*types.Transaction, error) {
	tx, err := p.cache.GetTransaction(ctx, q)
	if err == nil {
		p.hit(chaindata.KindTransaction, q.Key())
		return tx, nil
	}
	p.miss(chaindata.KindTransaction, q.Key(), err)

	if q.BlockNo != nil {
		block, err := p.GetFullBlock(ctx, chaindata.BlockQuery{BlockNo: *q.BlockNo})
		if err != nil {
			p.logger.Debug("block for transaction unavailable",
				zap.Uint64("block", *q.BlockNo),
				zap.String("tx", q.Key()),
				zap.Error(err))
		} else if found := block.Transaction(q.TxHash); found != nil {
			return found, nil
		}
	}

	tx, err = p.remote.GetTransaction(ctx, q)
	if err != nil {
		return nil, err
	}
	p.cache.InsertTransaction(q, tx)
	return tx, nil
}
