package chaindata

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Block is a block with its full transaction bodies.
type Block struct {
	Header       *types.Header        `json:"header"`
	Transactions []*types.Transaction `json:"transactions"`
	Uncles       []common.Hash        `json:"uncles,omitempty"`
	Withdrawals  []*types.Withdrawal  `json:"withdrawals,omitempty"`
}

// Number returns the block number, or 0 for a block without header.
func (b *Block) Number() uint64 {
	if b == nil || b.Header == nil || b.Header.Number == nil {
		return 0
	}
	return b.Header.Number.Uint64()
}

// Hash returns the header hash.
func (b *Block) Hash() common.Hash {
	if b == nil || b.Header == nil {
		return common.Hash{}
	}
	return b.Header.Hash()
}

// Transaction scans the block's transactions for hash.
// Returns nil when the block does not contain it.
func (b *Block) Transaction(hash common.Hash) *types.Transaction {
	if b == nil {
		return nil
	}
	for _, tx := range b.Transactions {
		if tx != nil && tx.Hash() == hash {
			return tx
		}
	}
	return nil
}

// PartialBlock is a block with transaction hashes instead of bodies.
type PartialBlock struct {
	Header       *types.Header       `json:"header"`
	Transactions []common.Hash       `json:"transactions"`
	Uncles       []common.Hash       `json:"uncles,omitempty"`
	Withdrawals  []*types.Withdrawal `json:"withdrawals,omitempty"`
}

// AccountProof is an EIP-1186 eth_getProof response.
type AccountProof struct {
	Address      common.Address  `json:"address"`
	AccountProof []hexutil.Bytes `json:"accountProof"`
	Balance      *hexutil.Big    `json:"balance"`
	CodeHash     common.Hash     `json:"codeHash"`
	Nonce        hexutil.Uint64  `json:"nonce"`
	StorageHash  common.Hash     `json:"storageHash"`
	StorageProof []StorageProof  `json:"storageProof"`
}

// StorageProof is the proof of a single storage slot.
type StorageProof struct {
	Key   string          `json:"key"`
	Value *hexutil.Big    `json:"value"`
	Proof []hexutil.Bytes `json:"proof"`
}

// BlobsResponse is the beacon API blob_sidecars response body.
type BlobsResponse struct {
	Data []BlobSidecar `json:"data"`
}

// BlobSidecar is a single blob with its KZG commitment and proof.
type BlobSidecar struct {
	Index                       string          `json:"index"`
	Blob                        hexutil.Bytes   `json:"blob"`
	KZGCommitment               hexutil.Bytes   `json:"kzg_commitment"`
	KZGProof                    hexutil.Bytes   `json:"kzg_proof"`
	KZGCommitmentInclusionProof []hexutil.Bytes `json:"kzg_commitment_inclusion_proof,omitempty"`
}
