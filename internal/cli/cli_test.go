package cli

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/remote"
	"github.com/mrz1836/chaincache/internal/remote/remotetest"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

const testAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

// resetFlags restores every flag in the tree to its default so commands can
// run repeatedly in one process.
func resetFlags(root *cobra.Command) {
	walkCommands(root, func(cmd *cobra.Command) {
		reset := func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
		cmd.Flags().VisitAll(reset)
		cmd.PersistentFlags().VisitAll(reset)
	})
}

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	for _, name := range []string{"CHAINCACHE_HOME", "CHAINCACHE_RPC_URL", "CHAINCACHE_BEACON_URL",
		"CHAINCACHE_CACHE_PATH", "CHAINCACHE_CACHE_BACKEND", "CHAINCACHE_CACHE_FORMAT",
		"CHAINCACHE_OUTPUT_FORMAT", "CHAINCACHE_VERBOSE", "CHAINCACHE_LOG_LEVEL",
		"CHAINCACHE_LOG_FILE", "CHAINCACHE_RATE_LIMIT"} {
		t.Setenv(name, "")
	}

	resetFlags(rootCmd)
	cfg, logger, formatter = nil, nil, nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return stdout.String(), stderr.String(), err
}

func testBlock(n int64, txs ...*types.Transaction) *chaindata.Block {
	return &chaindata.Block{
		Header: &types.Header{
			Number:     big.NewInt(n),
			Difficulty: big.NewInt(0),
			GasLimit:   30_000_000,
			Time:       uint64(1_700_000_000 + n),
		},
		Transactions: txs,
	}
}

func testTransaction(nonce uint64) *types.Transaction {
	to := common.HexToAddress(testAddress)
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1),
	})
}

func TestBalance_FetchesThenServesFromCache(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getBalance", "0xde0b6b3a7640000")
	home := t.TempDir()

	stdout, _, err := execute(t, "balance", testAddress, "--block", "100",
		"--home", home, "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)

	var got struct {
		Address common.Address `json:"address"`
		Block   uint64         `json:"block"`
		Value   string         `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, common.HexToAddress(testAddress), got.Address)
	assert.Equal(t, uint64(100), got.Block)
	assert.Equal(t, "1000000000000000000", got.Value)
	assert.FileExists(t, filepath.Join(home, "cache.json"))

	again, _, err := execute(t, "balance", testAddress, "--block", "100",
		"--home", home, "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, stdout, again)
	assert.Equal(t, 1, srv.Calls("eth_getBalance"))
}

func TestBalance_TextOutput(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getBalance", "0xde0b6b3a7640000")

	stdout, _, err := execute(t, "balance", testAddress, "--block", "0x64",
		"--home", t.TempDir(), "--rpc-url", srv.URL, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1000000000000000000 wei")
	assert.Contains(t, stdout, "1.000000000000000000 ETH")
	assert.Contains(t, stdout, "100")
}

func TestNoSave_LeavesCacheUntouched(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getCode", "0x6001")
	home := t.TempDir()

	_, _, err := execute(t, "code", testAddress, "--block", "5",
		"--home", home, "--rpc-url", srv.URL, "-o", "json", "--no-save")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(home, "cache.json"))

	_, _, err = execute(t, "code", testAddress, "--block", "5",
		"--home", home, "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls("eth_getCode"))
}

func TestFailedQuery_DoesNotSave(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Fail("eth_getBalance", -32000, "missing trie node")
	home := t.TempDir()

	_, stderr, err := execute(t, "balance", testAddress, "--block", "1",
		"--home", home, "--rpc-url", srv.URL, "-o", "text")
	require.Error(t, err)
	assert.Contains(t, stderr, "missing trie node")
	assert.NoFileExists(t, filepath.Join(home, "cache.json"))
}

func TestNotFoundUpstream_ExitCode(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getTransactionByHash", nil)
	hash := common.HexToHash("0xabc").Hex()

	_, _, err := execute(t, "tx", hash, "--home", t.TempDir(), "--rpc-url", srv.URL, "-o", "json")
	require.ErrorIs(t, err, remote.ErrNotFoundUpstream)
	assert.Equal(t, ccerr.ExitNotFound, ExitCode(err))
}

func TestTx_WithBlockScansCachedBlock(t *testing.T) {
	srv := remotetest.NewServer(t)
	tx := testTransaction(7)
	block := testBlock(100, testTransaction(6), tx)
	srv.Handle("eth_getBlockByNumber", func([]json.RawMessage) (any, error) {
		return remotetest.BlockJSON(t, block, true), nil
	})
	home := t.TempDir()

	for range 2 {
		stdout, _, err := execute(t, "tx", tx.Hash().Hex(), "--block", "100",
			"--home", home, "--rpc-url", srv.URL, "-o", "json")
		require.NoError(t, err)

		var got types.Transaction
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, tx.Hash(), got.Hash())
	}
	assert.Equal(t, 1, srv.Calls("eth_getBlockByNumber"))
	assert.Zero(t, srv.Calls("eth_getTransactionByHash"))
}

func TestBlock_PartialFlag(t *testing.T) {
	srv := remotetest.NewServer(t)
	tx := testTransaction(1)
	block := testBlock(42, tx)
	srv.Handle("eth_getBlockByNumber", func(params []json.RawMessage) (any, error) {
		var full bool
		if err := json.Unmarshal(params[1], &full); err != nil {
			return nil, err
		}
		return remotetest.BlockJSON(t, block, full), nil
	})
	home := t.TempDir()

	stdout, _, err := execute(t, "block", "42", "--partial",
		"--home", home, "--rpc-url", srv.URL, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, tx.Hash().Hex())
	assert.Contains(t, stdout, block.Hash().Hex())

	_, _, err = execute(t, "block", "42", "--home", home, "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls("eth_getBlockByNumber"), "full and partial blocks are cached separately")
}

func TestStorage_PadsShortSlot(t *testing.T) {
	srv := remotetest.NewServer(t)
	var gotSlot string
	srv.Handle("eth_getStorageAt", func(params []json.RawMessage) (any, error) {
		_ = json.Unmarshal(params[1], &gotSlot)
		return common.HexToHash("0x2a").Hex(), nil
	})

	stdout, _, err := execute(t, "storage", testAddress, "0x1", "--block", "9",
		"--home", t.TempDir(), "--rpc-url", srv.URL, "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x2a").Hex()+"\n", stdout)
	assert.Equal(t, common.HexToHash("0x1"), common.HexToHash(gotSlot))
}

func TestLogs_RejectsInvertedRange(t *testing.T) {
	_, _, err := execute(t, "logs", "--address", testAddress, "--from", "10", "--to", "9",
		"--home", t.TempDir(), "--rpc-url", "http://localhost:8545")
	require.ErrorIs(t, err, ccerr.ErrInvalidInput)
	assert.Equal(t, ccerr.ExitInput, ExitCode(err))
}

func TestLogs_SendsTopics(t *testing.T) {
	srv := remotetest.NewServer(t)
	var filter map[string]any
	srv.Handle("eth_getLogs", func(params []json.RawMessage) (any, error) {
		_ = json.Unmarshal(params[0], &filter)
		return []any{}, nil
	})
	topic := common.HexToHash("0xddf252ad").Hex()

	_, _, err := execute(t, "logs", "--address", testAddress, "--from", "1", "--to", "2",
		"--topic", topic, "--topic", "*",
		"--home", t.TempDir(), "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)
	require.NotNil(t, filter)
	assert.Equal(t, "0x1", filter["fromBlock"])
	assert.Equal(t, "0x2", filter["toBlock"])
}

func TestAccountCommands_RequireBlock(t *testing.T) {
	for _, name := range []string{"balance", "nonce", "code"} {
		_, _, err := execute(t, name, testAddress, "--home", t.TempDir(), "--rpc-url", "http://localhost:8545")
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), `required flag(s) "block" not set`, name)
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"block tag", []string{"block", "latest"}},
		{"short hash", []string{"tx", "0x1234"}},
		{"bad address", []string{"nonce", "0x12", "--block", "1"}},
		{"bad slot", []string{"storage", testAddress, "0xzz", "--block", "1"}},
		{"bad blob id", []string{"blobs", "head"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--home", t.TempDir(), "--rpc-url", "http://localhost:8545", "-o", "json")
			_, stderr, err := execute(t, args...)
			require.ErrorIs(t, err, ccerr.ErrInvalidInput)
			assert.Equal(t, ccerr.ExitInput, ExitCode(err))
			assert.Contains(t, stderr, "INVALID_INPUT")
		})
	}
}

func TestMissingRPCURL(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("network:\n  rpc: \"\"\n"), 0o600))

	_, _, err := execute(t, "nonce", testAddress, "--block", "1", "--home", home)
	require.ErrorIs(t, err, remote.ErrRPCURLRequired)
	assert.Equal(t, ccerr.ExitInput, ExitCode(err))
}

func TestRPCURLFromConfigFile(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getTransactionCount", "0x5")
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"),
		[]byte("network:\n  rpc: "+srv.URL+"\n"), 0o600))

	stdout, _, err := execute(t, "nonce", testAddress, "--block", "1", "--home", home, "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "5\n", stdout)
}

func TestBlobs(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.RespondBlobs("9000", 200, map[string]any{"data": []map[string]any{{
		"index":          "0",
		"blob":           hexutil.Encode([]byte{1, 2, 3}),
		"kzg_commitment": hexutil.Encode([]byte{4}),
		"kzg_proof":      hexutil.Encode([]byte{5}),
	}}})

	stdout, _, err := execute(t, "blobs", "9000", "--home", t.TempDir(),
		"--rpc-url", srv.URL, "--beacon-url", srv.URL, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0x04")
	assert.Contains(t, stdout, "3 bytes")
}

func TestStatsFlag(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getTransactionCount", "0x1")
	home := t.TempDir()

	_, _, err := execute(t, "nonce", testAddress, "--block", "1", "--home", home, "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)

	_, stderr, err := execute(t, "nonce", testAddress, "--block", "1", "--home", home,
		"--rpc-url", srv.URL, "-o", "json", "--stats")
	require.NoError(t, err)
	assert.Contains(t, stderr, "transaction_count")
	assert.Contains(t, stderr, "hit rate: 100.0%")
}

func TestCacheStats(t *testing.T) {
	srv := remotetest.NewServer(t)
	srv.Respond("eth_getTransactionCount", "0x1")
	srv.Respond("eth_getBalance", "0x1")
	home := t.TempDir()

	stdout, _, err := execute(t, "cache", "stats", "--home", home, "-o", "json")
	require.NoError(t, err)
	var empty cacheStats
	require.NoError(t, json.Unmarshal([]byte(stdout), &empty))
	assert.Zero(t, empty.Total)
	assert.Equal(t, filepath.Join(home, "cache.json"), empty.Path)

	for _, block := range []string{"1", "2"} {
		_, _, err = execute(t, "nonce", testAddress, "--block", block, "--home", home, "--rpc-url", srv.URL, "-o", "json")
		require.NoError(t, err)
	}
	_, _, err = execute(t, "balance", testAddress, "--block", "1", "--home", home, "--rpc-url", srv.URL, "-o", "json")
	require.NoError(t, err)

	stdout, _, err = execute(t, "cache", "stats", "--home", home, "-o", "json")
	require.NoError(t, err)
	var got cacheStats
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, map[string]int{"transaction_count": 2, "balance": 1}, got.Entries)
	assert.Equal(t, "file", got.Backend)
	assert.Equal(t, "json", got.Format)

	text, _, err := execute(t, "cache", "stats", "--home", home, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, text, "transaction_count")
	assert.Contains(t, text, "total")
}

func TestCacheStats_UnknownBackend(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"),
		[]byte("cache:\n  backend: bolt\n"), 0o600))

	_, _, err := execute(t, "cache", "stats", "--home", home, "-o", "json")
	require.Error(t, err)
}

func TestCachePath(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := execute(t, "cache", "path", "--home", home, "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache.json"), strings.TrimSpace(stdout))

	abs := filepath.Join(t.TempDir(), "other.cbor")
	stdout, _, err = execute(t, "cache", "path", "--home", home, "--cache", abs, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":`+mustJSON(t, abs)+`}`, stdout)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version", "--home", t.TempDir(), "-o", "json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "version")

	text, _, err := execute(t, "version", "--home", t.TempDir(), "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, text, "commit:")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ccerr.ExitInput, ExitCode(ccerr.ErrInvalidInput))
	assert.Equal(t, ccerr.ExitGeneral, ExitCode(assert.AnError))
	assert.Equal(t, ccerr.ExitSuccess, ExitCode(nil))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
