// Package provider defines the chain-data query surface and the cached
// provider that composes the local store with the remote source.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/remote"
	"github.com/mrz1836/chaincache/internal/store"
)

// Provider answers chain-data queries. Callers cannot tell a cached provider
// from a remote one except by latency and by needing Save to keep results.
type Provider interface {
	// Save persists whatever the provider has accumulated.
	Save() error

	GetFullBlock(ctx context.Context, q chaindata.BlockQuery) (*chaindata.Block, error)
	GetPartialBlock(ctx context.Context, q chaindata.BlockQuery) (*chaindata.PartialBlock, error)
	GetBlockReceipts(ctx context.Context, q chaindata.BlockQuery) ([]*types.Receipt, error)
	GetProof(ctx context.Context, q chaindata.ProofQuery) (*chaindata.AccountProof, error)
	GetTransactionCount(ctx context.Context, q chaindata.AccountQuery) (uint64, error)
	GetBalance(ctx context.Context, q chaindata.AccountQuery) (*big.Int, error)
	GetCode(ctx context.Context, q chaindata.AccountQuery) ([]byte, error)
	GetStorage(ctx context.Context, q chaindata.StorageQuery) (common.Hash, error)
	GetLogs(ctx context.Context, q chaindata.LogsQuery) ([]types.Log, error)
	GetTransaction(ctx context.Context, q chaindata.TxQuery) (*types.Transaction, error)
	GetBlobData(ctx context.Context, q chaindata.BlobQuery) (*chaindata.BlobsResponse, error)
}

// Compile-time interface checks
var (
	_ Provider = (*CachedProvider)(nil)
	_ Provider = (*remote.Source)(nil)
	_ Provider = (*store.Store)(nil)
)
