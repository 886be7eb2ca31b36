// Package store is the local cache of chain data: an in-memory map from
// (kind, query key) to value, loaded once from a persistence backend and
// written back only when Save is called.
//
// Entries are never evicted or expired. Values restored from disk stay in
// their persisted JSON form until first requested; decoded values are kept
// in a bounded memo so repeated lookups do not decode again.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/chaindata"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// DefaultMemoSize is the number of decoded values kept by default.
const DefaultMemoSize = 1024

// Options configures a Store.
type Options struct {
	Backend  BackendKind // file (default) or badger
	Format   Format      // snapshot format for the file backend
	MemoSize int         // decoded-value memo capacity
	Logger   *zap.Logger
}

// Validate checks the backend and format names.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	switch o.Backend {
	case BackendFile, BackendBadger, "":
	default:
		return ccerr.WithDetails(ErrUnknownBackend, map[string]string{"backend": string(o.Backend)})
	}
	_, err := CodecFor(o.Format)
	return err
}

func (o *Options) withDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Backend == "" {
		out.Backend = BackendFile
	}
	if out.Format == "" {
		out.Format = FormatJSON
	}
	if out.MemoSize <= 0 {
		out.MemoSize = DefaultMemoSize
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}

type memoKey struct {
	kind chaindata.Kind
	key  string
}

// entry is immutable once stored; inserts replace the pointer.
type entry struct {
	value   any             // set for values inserted in this process
	decoded bool            // value is valid
	raw     json.RawMessage // persisted encoding, set for loaded entries
}

// Store is the in-memory cache bound to a persistence location.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[chaindata.Kind]map[string]*entry
	backend Backend
	memo    *lru.Cache[memoKey, any]
	logger  *zap.Logger
}

// Load restores the cache persisted at path.
//
// Returns ErrCacheFileNotFound when the file backend has nothing at path and
// ErrCorruptCache when the persisted data is malformed (the damaged file is
// moved aside first).
func Load(path string, opts *Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	backend, err := newBackend(path, opts)
	if err != nil {
		return nil, err
	}

	raw, err := backend.Load()
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	s := newStore(backend, opts)
	for kind, byKey := range raw {
		if !kind.Valid() {
			s.logger.Debug("skipping unknown cache kind", zap.String("kind", string(kind)), zap.Int("entries", len(byKey)))
			continue
		}
		bucket := make(map[string]*entry, len(byKey))
		for key, value := range byKey {
			bucket[key] = &entry{raw: value}
		}
		s.entries[kind] = bucket
	}

	s.logger.Debug("cache loaded", zap.String("path", path), zap.Int("entries", s.Len()))
	return s, nil
}

// Empty returns an empty cache that will persist to path. Invalid options
// fall back to the defaults.
func Empty(path string, opts *Options) *Store {
	if err := opts.Validate(); err != nil {
		logger := zap.NewNop()
		if opts != nil && opts.Logger != nil {
			logger = opts.Logger
		}
		logger.Warn("invalid cache options, using defaults", zap.Error(err))
		opts = &Options{MemoSize: opts.MemoSize, Logger: opts.Logger}
	}
	opts = opts.withDefaults()

	backend, err := newBackend(path, opts)
	if err != nil {
		// Unreachable after validation.
		backend = newFileBackend(path, jsonCodec{})
	}
	return newStore(backend, opts)
}

func newStore(backend Backend, opts *Options) *Store {
	memo, err := lru.New[memoKey, any](opts.MemoSize)
	if err != nil {
		memo, _ = lru.New[memoKey, any](DefaultMemoSize)
	}
	return &Store{
		entries: make(map[chaindata.Kind]map[string]*entry),
		backend: backend,
		memo:    memo,
		logger:  opts.Logger,
	}
}

// Path returns the persistence location.
func (s *Store) Path() string {
	return s.backend.Path()
}

// Len returns the number of entries across all kinds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, bucket := range s.entries {
		n += len(bucket)
	}
	return n
}

// Stats returns the number of entries per kind.
func (s *Store) Stats() map[chaindata.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[chaindata.Kind]int, len(s.entries))
	for kind, bucket := range s.entries {
		if len(bucket) > 0 {
			out[kind] = len(bucket)
		}
	}
	return out
}

// Save writes every entry to the backend, replacing what was persisted.
func (s *Store) Save() error {
	s.mu.RLock()
	raw := make(rawEntries, len(s.entries))
	for kind, bucket := range s.entries {
		out := make(map[string]json.RawMessage, len(bucket))
		for key, e := range bucket {
			if !e.decoded {
				out[key] = e.raw
				continue
			}
			data, err := json.Marshal(e.value)
			if err != nil {
				s.mu.RUnlock()
				return ccerr.WithCause(ErrCacheWrite, fmt.Errorf("encoding %s %s: %w", kind, key, err))
			}
			out[key] = data
		}
		raw[kind] = out
	}
	s.mu.RUnlock()

	if err := s.backend.Save(raw); err != nil {
		return ccerr.WithCause(ErrCacheWrite, err)
	}
	s.logger.Debug("cache saved", zap.String("path", s.Path()), zap.Int("entries", s.Len()))
	return nil
}

// Close releases backend resources. It does not save.
func (s *Store) Close() error {
	return s.backend.Close()
}

// insert stores v under (kind, key), replacing any previous entry.
func (s *Store) insert(kind chaindata.Kind, key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.entries[kind]
	if bucket == nil {
		bucket = make(map[string]*entry)
		s.entries[kind] = bucket
	}
	bucket[key] = &entry{value: v, decoded: true}
	s.memo.Remove(memoKey{kind: kind, key: key})
}

var jsonNull = []byte("null")

// lookup returns the entry for (kind, key) as a V.
func lookup[V any](s *Store, kind chaindata.Kind, key string) (V, error) {
	var zero V

	s.mu.RLock()
	e, ok := s.entries[kind][key]
	s.mu.RUnlock()
	if !ok {
		return zero, ErrCacheMiss
	}

	if e.decoded {
		v, ok := e.value.(V)
		if !ok {
			return zero, ccerr.WithCause(ErrCorruptEntry, fmt.Errorf("%s %s: unexpected type %T", kind, key, e.value))
		}
		return v, nil
	}

	mk := memoKey{kind: kind, key: key}
	if cached, ok := s.memo.Get(mk); ok {
		if v, ok := cached.(V); ok {
			return v, nil
		}
	}

	if bytes.Equal(bytes.TrimSpace(e.raw), jsonNull) {
		return zero, ccerr.WithCause(ErrCorruptEntry, fmt.Errorf("%s %s: null value", kind, key))
	}
	var v V
	if err := json.Unmarshal(e.raw, &v); err != nil {
		return zero, ccerr.WithCause(ErrCorruptEntry, fmt.Errorf("%s %s: %w", kind, key, err))
	}
	s.memo.Add(mk, v)
	return v, nil
}

// GetFullBlock returns the cached block with transaction bodies.
func (s *Store) GetFullBlock(_ context.Context, q chaindata.BlockQuery) (*chaindata.Block, error) {
	return lookup[*chaindata.Block](s, chaindata.KindFullBlock, q.Key())
}

// InsertFullBlock caches a block with transaction bodies.
func (s *Store) InsertFullBlock(q chaindata.BlockQuery, v *chaindata.Block) {
	s.insert(chaindata.KindFullBlock, q.Key(), v)
}

// GetPartialBlock returns the cached block with transaction hashes.
func (s *Store) GetPartialBlock(_ context.Context, q chaindata.BlockQuery) (*chaindata.PartialBlock, error) {
	return lookup[*chaindata.PartialBlock](s, chaindata.KindPartialBlock, q.Key())
}

// InsertPartialBlock caches a block with transaction hashes.
func (s *Store) InsertPartialBlock(q chaindata.BlockQuery, v *chaindata.PartialBlock) {
	s.insert(chaindata.KindPartialBlock, q.Key(), v)
}

// GetBlockReceipts returns the cached receipts of a block.
func (s *Store) GetBlockReceipts(_ context.Context, q chaindata.BlockQuery) ([]*types.Receipt, error) {
	return lookup[[]*types.Receipt](s, chaindata.KindBlockReceipts, q.Key())
}

// InsertBlockReceipts caches the receipts of a block.
func (s *Store) InsertBlockReceipts(q chaindata.BlockQuery, v []*types.Receipt) {
	s.insert(chaindata.KindBlockReceipts, q.Key(), v)
}

// GetProof returns a cached account proof.
func (s *Store) GetProof(_ context.Context, q chaindata.ProofQuery) (*chaindata.AccountProof, error) {
	return lookup[*chaindata.AccountProof](s, chaindata.KindProof, q.Key())
}

// InsertProof caches an account proof.
func (s *Store) InsertProof(q chaindata.ProofQuery, v *chaindata.AccountProof) {
	s.insert(chaindata.KindProof, q.Key(), v)
}

// GetTransactionCount returns a cached account nonce.
func (s *Store) GetTransactionCount(_ context.Context, q chaindata.AccountQuery) (uint64, error) {
	v, err := lookup[hexutil.Uint64](s, chaindata.KindTransactionCount, q.Key())
	return uint64(v), err
}

// InsertTransactionCount caches an account nonce.
func (s *Store) InsertTransactionCount(q chaindata.AccountQuery, v uint64) {
	s.insert(chaindata.KindTransactionCount, q.Key(), hexutil.Uint64(v))
}

// GetBalance returns a cached account balance.
func (s *Store) GetBalance(_ context.Context, q chaindata.AccountQuery) (*big.Int, error) {
	v, err := lookup[*hexutil.Big](s, chaindata.KindBalance, q.Key())
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(v.ToInt()), nil
}

// InsertBalance caches an account balance.
func (s *Store) InsertBalance(q chaindata.AccountQuery, v *big.Int) {
	if v == nil {
		v = new(big.Int)
	}
	s.insert(chaindata.KindBalance, q.Key(), (*hexutil.Big)(new(big.Int).Set(v)))
}

// GetCode returns cached contract code.
func (s *Store) GetCode(_ context.Context, q chaindata.AccountQuery) ([]byte, error) {
	v, err := lookup[hexutil.Bytes](s, chaindata.KindCode, q.Key())
	return []byte(v), err
}

// InsertCode caches contract code.
func (s *Store) InsertCode(q chaindata.AccountQuery, v []byte) {
	s.insert(chaindata.KindCode, q.Key(), hexutil.Bytes(v))
}

// GetStorage returns a cached storage slot value.
func (s *Store) GetStorage(_ context.Context, q chaindata.StorageQuery) (common.Hash, error) {
	return lookup[common.Hash](s, chaindata.KindStorage, q.Key())
}

// InsertStorage caches a storage slot value.
func (s *Store) InsertStorage(q chaindata.StorageQuery, v common.Hash) {
	s.insert(chaindata.KindStorage, q.Key(), v)
}

// GetLogs returns cached logs.
func (s *Store) GetLogs(_ context.Context, q chaindata.LogsQuery) ([]types.Log, error) {
	return lookup[[]types.Log](s, chaindata.KindLogs, q.Key())
}

// InsertLogs caches logs.
func (s *Store) InsertLogs(q chaindata.LogsQuery, v []types.Log) {
	s.insert(chaindata.KindLogs, q.Key(), v)
}

// GetTransaction returns a transaction cached under its hash.
// It does not look inside cached blocks.
func (s *Store) GetTransaction(_ context.Context, q chaindata.TxQuery) (*types.Transaction, error) {
	return lookup[*types.Transaction](s, chaindata.KindTransaction, q.Key())
}

// InsertTransaction caches a transaction under its hash.
func (s *Store) InsertTransaction(q chaindata.TxQuery, v *types.Transaction) {
	s.insert(chaindata.KindTransaction, q.Key(), v)
}

// GetBlobData returns cached blob sidecars.
func (s *Store) GetBlobData(_ context.Context, q chaindata.BlobQuery) (*chaindata.BlobsResponse, error) {
	return lookup[*chaindata.BlobsResponse](s, chaindata.KindBlobData, q.Key())
}

// InsertBlobData caches blob sidecars.
func (s *Store) InsertBlobData(q chaindata.BlobQuery, v *chaindata.BlobsResponse) {
	s.insert(chaindata.KindBlobData, q.Key(), v)
}
