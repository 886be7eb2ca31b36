// Package chaindata defines the queries and values exchanged between the
// cached provider, the local cache store and the remote data source.
//
// Queries are immutable values. Every query renders a canonical Key so that
// two queries with equal fields address the same cache entry.
package chaindata

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies the data kind a query asks for. Kinds partition the cache:
// the same query value used for two kinds addresses two different entries.
type Kind string

// Supported kinds.
const (
	KindFullBlock        Kind = "full_block"
	KindPartialBlock     Kind = "partial_block"
	KindBlockReceipts    Kind = "block_receipts"
	KindProof            Kind = "proof"
	KindTransactionCount Kind = "transaction_count"
	KindBalance          Kind = "balance"
	KindCode             Kind = "code"
	KindStorage          Kind = "storage"
	KindLogs             Kind = "logs"
	KindTransaction      Kind = "transaction"
	KindBlobData         Kind = "blob_data"
)

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindFullBlock,
		KindPartialBlock,
		KindBlockReceipts,
		KindProof,
		KindTransactionCount,
		KindBalance,
		KindCode,
		KindStorage,
		KindLogs,
		KindTransaction,
		KindBlobData,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// BlockQuery selects a block by number.
type BlockQuery struct {
	BlockNo uint64
}

// Key returns the canonical cache key.
func (q BlockQuery) Key() string {
	return strconv.FormatUint(q.BlockNo, 10)
}

// AccountQuery selects account state at a block.
// Used for balance, transaction count and code lookups.
type AccountQuery struct {
	Address common.Address
	BlockNo uint64
}

// Key returns the canonical cache key.
func (q AccountQuery) Key() string {
	return q.Address.Hex() + "@" + strconv.FormatUint(q.BlockNo, 10)
}

// StorageQuery selects a single storage slot of an account at a block.
type StorageQuery struct {
	Address common.Address
	Slot    common.Hash
	BlockNo uint64
}

// Key returns the canonical cache key.
func (q StorageQuery) Key() string {
	return q.Address.Hex() + "/" + q.Slot.Hex() + "@" + strconv.FormatUint(q.BlockNo, 10)
}

// ProofQuery requests an EIP-1186 account proof with storage proofs for Indices.
// Indices are a set: order and duplicates do not change the key.
type ProofQuery struct {
	BlockNo uint64
	Address common.Address
	Indices []common.Hash
}

// Key returns the canonical cache key.
func (q ProofQuery) Key() string {
	var sb strings.Builder
	sb.WriteString(q.Address.Hex())
	sb.WriteByte('[')
	for i, idx := range q.SortedIndices() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(idx.Hex())
	}
	sb.WriteString("]@")
	sb.WriteString(strconv.FormatUint(q.BlockNo, 10))
	return sb.String()
}

// SortedIndices returns the indices sorted and de-duplicated.
// The query itself is not modified.
func (q ProofQuery) SortedIndices() []common.Hash {
	out := make([]common.Hash, len(q.Indices))
	copy(out, q.Indices)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})

	deduped := out[:0]
	for i, h := range out {
		if i > 0 && h == out[i-1] {
			continue
		}
		deduped = append(deduped, h)
	}
	return deduped
}

// LogsQuery selects logs emitted by Address in the inclusive block range.
// Topics follows eth_getLogs positional semantics: each position holds the
// accepted alternatives, an empty position matches anything.
type LogsQuery struct {
	Address   common.Address
	FromBlock uint64
	ToBlock   uint64
	Topics    [][]common.Hash
}

// Key returns the canonical cache key.
func (q LogsQuery) Key() string {
	var sb strings.Builder
	sb.WriteString(q.Address.Hex())
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(q.FromBlock, 10))
	sb.WriteByte('-')
	sb.WriteString(strconv.FormatUint(q.ToBlock, 10))
	if len(q.Topics) > 0 {
		sb.WriteByte(':')
		for i, position := range q.Topics {
			if i > 0 {
				sb.WriteByte(';')
			}
			for j, topic := range position {
				if j > 0 {
					sb.WriteByte('|')
				}
				sb.WriteString(topic.Hex())
			}
		}
	}
	return sb.String()
}

// TxQuery selects a transaction by hash, optionally scoped to the block that
// is expected to contain it. The block scope is a lookup hint only and is not
// part of the cache key.
type TxQuery struct {
	TxHash  common.Hash
	BlockNo *uint64
}

// TxInBlock builds a TxQuery scoped to blockNo.
func TxInBlock(hash common.Hash, blockNo uint64) TxQuery {
	return TxQuery{TxHash: hash, BlockNo: &blockNo}
}

// Key returns the canonical cache key.
func (q TxQuery) Key() string {
	return q.TxHash.Hex()
}

// BlobQuery selects the blob sidecars of a beacon block id (slot).
type BlobQuery struct {
	BlockID uint64
}

// Key returns the canonical cache key.
func (q BlobQuery) Key() string {
	return strconv.FormatUint(q.BlockID, 10)
}
