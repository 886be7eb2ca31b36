package store

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/chaincache/internal/chaindata"
)

var (
	testAddr  = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	testSlot  = common.HexToHash("0x01")
	testTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
)

func testHeader(n int64) *types.Header {
	return &types.Header{
		Number:     big.NewInt(n),
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		Time:       uint64(1_700_000_000 + n),
	}
}

func testTx(nonce uint64) *types.Transaction {
	to := testAddr
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1),
	})
}

func testReceipt(tx *types.Transaction) *types.Receipt {
	return &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs:              []*types.Log{},
		TxHash:            tx.Hash(),
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(1),
		BlockNumber:       big.NewInt(5),
	}
}

// fixture holds one value of every kind.
type fixture struct {
	block    *chaindata.Block
	partial  *chaindata.PartialBlock
	receipts []*types.Receipt
	proof    *chaindata.AccountProof
	nonce    uint64
	balance  *big.Int
	code     []byte
	storage  common.Hash
	logs     []types.Log
	tx       *types.Transaction
	blobs    *chaindata.BlobsResponse
}

func newFixture() fixture {
	tx := testTx(1)
	return fixture{
		block:    &chaindata.Block{Header: testHeader(5), Transactions: []*types.Transaction{tx}},
		partial:  &chaindata.PartialBlock{Header: testHeader(5), Transactions: []common.Hash{tx.Hash()}},
		receipts: []*types.Receipt{testReceipt(tx)},
		proof: &chaindata.AccountProof{
			Address:      testAddr,
			AccountProof: []hexutil.Bytes{{0xf8, 0x51}},
			Balance:      (*hexutil.Big)(big.NewInt(42)),
			Nonce:        3,
			StorageProof: []chaindata.StorageProof{{
				Key:   testSlot.Hex(),
				Value: (*hexutil.Big)(big.NewInt(7)),
				Proof: []hexutil.Bytes{{0xe2}},
			}},
		},
		nonce:   3,
		balance: big.NewInt(1_000_000_000_000_000_000),
		code:    []byte{0x60, 0x80, 0x60, 0x40},
		storage: common.HexToHash("0xbeef"),
		logs: []types.Log{{
			Address:     testAddr,
			Topics:      []common.Hash{testTopic},
			Data:        []byte{0x01},
			BlockNumber: 5,
			TxHash:      tx.Hash(),
		}},
		tx: testTx(9),
		blobs: &chaindata.BlobsResponse{Data: []chaindata.BlobSidecar{{
			Index:         "0",
			Blob:          hexutil.Bytes{0x01, 0x02},
			KZGCommitment: hexutil.Bytes{0xaa},
			KZGProof:      hexutil.Bytes{0xbb},
		}}},
	}
}

var (
	blockQ   = chaindata.BlockQuery{BlockNo: 5}
	accountQ = chaindata.AccountQuery{Address: testAddr, BlockNo: 5}
	storageQ = chaindata.StorageQuery{Address: testAddr, Slot: testSlot, BlockNo: 5}
	proofQ   = chaindata.ProofQuery{BlockNo: 5, Address: testAddr, Indices: []common.Hash{testSlot}}
	logsQ    = chaindata.LogsQuery{Address: testAddr, FromBlock: 1, ToBlock: 5}
	blobQ    = chaindata.BlobQuery{BlockID: 9000}

	storageValue = common.HexToHash("0x2a")
)

func (f fixture) insertAll(s *Store) {
	s.InsertFullBlock(blockQ, f.block)
	s.InsertPartialBlock(blockQ, f.partial)
	s.InsertBlockReceipts(blockQ, f.receipts)
	s.InsertProof(proofQ, f.proof)
	s.InsertTransactionCount(accountQ, f.nonce)
	s.InsertBalance(accountQ, f.balance)
	s.InsertCode(accountQ, f.code)
	s.InsertStorage(storageQ, f.storage)
	s.InsertLogs(logsQ, f.logs)
	s.InsertTransaction(chaindata.TxQuery{TxHash: f.tx.Hash()}, f.tx)
	s.InsertBlobData(blobQ, f.blobs)
}

func (f fixture) assertAll(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	block, err := s.GetFullBlock(ctx, blockQ)
	require.NoError(t, err)
	assert.Equal(t, f.block.Hash(), block.Hash())
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, f.block.Transactions[0].Hash(), block.Transactions[0].Hash())

	partial, err := s.GetPartialBlock(ctx, blockQ)
	require.NoError(t, err)
	assert.Equal(t, f.partial.Transactions, partial.Transactions)

	receipts, err := s.GetBlockReceipts(ctx, blockQ)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, f.receipts[0].TxHash, receipts[0].TxHash)
	assert.Equal(t, f.receipts[0].Status, receipts[0].Status)
	assert.Equal(t, f.receipts[0].CumulativeGasUsed, receipts[0].CumulativeGasUsed)

	proof, err := s.GetProof(ctx, proofQ)
	require.NoError(t, err)
	assert.Equal(t, f.proof.Address, proof.Address)
	assert.Equal(t, f.proof.AccountProof, proof.AccountProof)
	assert.Equal(t, 0, f.proof.Balance.ToInt().Cmp(proof.Balance.ToInt()))
	require.Len(t, proof.StorageProof, 1)
	assert.Equal(t, f.proof.StorageProof[0].Key, proof.StorageProof[0].Key)

	nonce, err := s.GetTransactionCount(ctx, accountQ)
	require.NoError(t, err)
	assert.Equal(t, f.nonce, nonce)

	balance, err := s.GetBalance(ctx, accountQ)
	require.NoError(t, err)
	assert.Equal(t, 0, f.balance.Cmp(balance))

	code, err := s.GetCode(ctx, accountQ)
	require.NoError(t, err)
	assert.Equal(t, f.code, code)

	storage, err := s.GetStorage(ctx, storageQ)
	require.NoError(t, err)
	assert.Equal(t, f.storage, storage)

	logs, err := s.GetLogs(ctx, logsQ)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, f.logs[0].Address, logs[0].Address)
	assert.Equal(t, f.logs[0].Topics, logs[0].Topics)
	assert.Equal(t, f.logs[0].Data, logs[0].Data)

	tx, err := s.GetTransaction(ctx, chaindata.TxQuery{TxHash: f.tx.Hash()})
	require.NoError(t, err)
	assert.Equal(t, f.tx.Hash(), tx.Hash())

	blobs, err := s.GetBlobData(ctx, blobQ)
	require.NoError(t, err)
	assert.Equal(t, f.blobs, blobs)
}

func TestStore_EmptyMisses(t *testing.T) {
	t.Parallel()

	s := Empty(filepath.Join(t.TempDir(), "cache.json"), nil)
	ctx := context.Background()

	_, err := s.GetFullBlock(ctx, blockQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetPartialBlock(ctx, blockQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetBlockReceipts(ctx, blockQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetProof(ctx, proofQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetTransactionCount(ctx, accountQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetBalance(ctx, accountQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetCode(ctx, accountQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetStorage(ctx, storageQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetLogs(ctx, logsQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetTransaction(ctx, chaindata.TxQuery{TxHash: testSlot})
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetBlobData(ctx, blobQ)
	require.ErrorIs(t, err, ErrCacheMiss)

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Stats())
}

func TestStore_InsertThenGet(t *testing.T) {
	t.Parallel()

	f := newFixture()
	s := Empty(filepath.Join(t.TempDir(), "cache.json"), nil)
	f.insertAll(s)

	f.assertAll(t, s)
	assert.Equal(t, 11, s.Len())
	assert.Len(t, s.Stats(), 11)
}

func TestStore_AccountKindsDoNotCollide(t *testing.T) {
	t.Parallel()

	s := Empty(filepath.Join(t.TempDir(), "cache.json"), nil)
	s.InsertBalance(accountQ, big.NewInt(5))

	_, err := s.GetTransactionCount(context.Background(), accountQ)
	require.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.GetCode(context.Background(), accountQ)
	require.ErrorIs(t, err, ErrCacheMiss)

	balance, err := s.GetBalance(context.Background(), accountQ)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance.Int64())
}

func TestStore_BalanceIsCopied(t *testing.T) {
	t.Parallel()

	s := Empty(filepath.Join(t.TempDir(), "cache.json"), nil)
	in := big.NewInt(10)
	s.InsertBalance(accountQ, in)
	in.SetInt64(99)

	out, err := s.GetBalance(context.Background(), accountQ)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.Int64())

	out.SetInt64(1)
	again, err := s.GetBalance(context.Background(), accountQ)
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.Int64())
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "cache."+string(format))
			opts := &Options{Format: format}
			f := newFixture()

			s := Empty(path, opts)
			f.insertAll(s)
			require.NoError(t, s.Save())

			loaded, err := Load(path, opts)
			require.NoError(t, err)
			assert.Equal(t, 11, loaded.Len())
			assert.Equal(t, path, loaded.Path())
			f.assertAll(t, loaded)

			// Persisting a loaded store keeps undecoded entries intact.
			require.NoError(t, loaded.Save())
			reloaded, err := Load(path, opts)
			require.NoError(t, err)
			f.assertAll(t, reloaded)
		})
	}
}

func TestStore_SaveIsExplicit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	s := Empty(path, nil)
	s.InsertStorage(storageQ, common.HexToHash("0x01"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "insert must not touch disk")
}

func TestStore_JSONSnapshotIsReadable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	s := Empty(path, nil)
	s.InsertBalance(accountQ, big.NewInt(255))
	s.InsertCode(accountQ, []byte{0x60, 0x80})
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)

	var snap struct {
		Version int                                   `json:"version"`
		Entries map[string]map[string]json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, snapshotVersion, snap.Version)
	assert.JSONEq(t, `"0xff"`, string(snap.Entries["balance"][accountQ.Key()]))
	assert.JSONEq(t, `"0x6080"`, string(snap.Entries["code"][accountQ.Key()]))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.ErrorIs(t, err, ErrCacheFileNotFound)
}

func TestLoad_CorruptFileIsQuarantined(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path, nil)
	require.ErrorIs(t, err, ErrCorruptCache)

	matches, globErr := filepath.Glob(path + ".corrupt.*")
	require.NoError(t, globErr)
	assert.Len(t, matches, 1)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoad_WrongFormatIsCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.bin")
	s := Empty(path, &Options{Format: FormatJSON})
	s.InsertCode(accountQ, []byte{0x01})
	require.NoError(t, s.Save())

	_, err := Load(path, &Options{Format: FormatCBOR})
	require.ErrorIs(t, err, ErrCorruptCache)
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"entries":{}}`), 0o600))

	_, err := Load(path, nil)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestLoad_SkipsUnknownKinds(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{"version":1,"entries":{"headers":{"1":"0x01"},"code":{"` + accountQ.Key() + `":"0x6080"}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, map[chaindata.Kind]int{chaindata.KindCode: 1}, s.Stats())
}

func TestStore_CorruptEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{"version":1,"entries":{` +
		`"balance":{"` + accountQ.Key() + `":"not-hex"},` +
		`"full_block":{"5":null}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := Load(path, nil)
	require.NoError(t, err)

	_, err = s.GetBalance(context.Background(), accountQ)
	require.ErrorIs(t, err, ErrCorruptEntry)

	_, err = s.GetFullBlock(context.Background(), blockQ)
	require.ErrorIs(t, err, ErrCorruptEntry)

	// A fresh insert replaces the undecodable entry.
	s.InsertBalance(accountQ, big.NewInt(3))
	balance, err := s.GetBalance(context.Background(), accountQ)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Int64())
}

func TestStore_MemoizesDecodedValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	f := newFixture()
	s := Empty(path, nil)
	s.InsertFullBlock(blockQ, f.block)
	require.NoError(t, s.Save())

	loaded, err := Load(path, &Options{MemoSize: 4})
	require.NoError(t, err)

	first, err := loaded.GetFullBlock(context.Background(), blockQ)
	require.NoError(t, err)
	second, err := loaded.GetFullBlock(context.Background(), blockQ)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	var nilOpts *Options
	require.NoError(t, nilOpts.Validate())
	require.NoError(t, (&Options{Backend: BackendBadger, Format: FormatMsgpack}).Validate())
	require.ErrorIs(t, (&Options{Backend: "sqlite"}).Validate(), ErrUnknownBackend)
	require.ErrorIs(t, (&Options{Format: "yaml"}).Validate(), ErrUnknownFormat)

	_, err := Load(filepath.Join(t.TempDir(), "cache.json"), &Options{Format: "yaml"})
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEmpty_InvalidOptionsUseDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	s := Empty(path, &Options{Backend: "sqlite"})
	s.InsertCode(accountQ, []byte{0x01})
	require.NoError(t, s.Save())

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}
