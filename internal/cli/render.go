package cli

import (
	"encoding/json"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/output"
)

// view pairs a JSON document with an optional text rendering. Without one,
// the text form is the indented JSON document.
type view struct {
	data any
	text func(w io.Writer) error
}

func (v view) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.data)
}

func (v view) RenderText(w io.Writer) error {
	if v.text != nil {
		return v.text(w)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v.data)
}

func u64(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func headerPairs(h *types.Header, txCount int) [][2]string {
	pairs := [][2]string{
		{"Number", h.Number.String()},
		{"Hash", h.Hash().Hex()},
		{"Parent", h.ParentHash.Hex()},
		{"Timestamp", time.Unix(int64(h.Time), 0).UTC().Format(time.RFC3339)}, //nolint:gosec // block times fit in int64
		{"Gas used", u64(h.GasUsed) + " / " + u64(h.GasLimit)},
		{"Transactions", strconv.Itoa(txCount)},
	}
	if h.BaseFee != nil {
		pairs = append(pairs, [2]string{"Base fee", h.BaseFee.String() + " wei"})
	}
	return pairs
}

func blockView(b *chaindata.Block) view {
	return view{data: b, text: func(w io.Writer) error {
		return output.KeyValues(w, headerPairs(b.Header, len(b.Transactions))...)
	}}
}

func partialBlockView(b *chaindata.PartialBlock) view {
	return view{data: b, text: func(w io.Writer) error {
		if err := output.KeyValues(w, headerPairs(b.Header, len(b.Transactions))...); err != nil {
			return err
		}
		if len(b.Transactions) == 0 {
			return nil
		}
		t := output.NewTable("#", "TRANSACTION")
		for i, h := range b.Transactions {
			t.AddRow(strconv.Itoa(i), h.Hex())
		}
		return t.Render(w)
	}}
}

func receiptsView(receipts []*types.Receipt) view {
	return view{data: receipts, text: func(w io.Writer) error {
		t := output.NewTable("#", "TRANSACTION", "STATUS", "GAS USED", "LOGS")
		for i, r := range receipts {
			status := "success"
			if r.Status != types.ReceiptStatusSuccessful {
				status = "failed"
			}
			t.AddRow(strconv.Itoa(i), r.TxHash.Hex(), status, u64(r.GasUsed), strconv.Itoa(len(r.Logs)))
		}
		return t.Render(w)
	}}
}

func txView(tx *types.Transaction) view {
	return view{data: tx, text: func(w io.Writer) error {
		to := "(contract creation)"
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		return output.KeyValues(w,
			[2]string{"Hash", tx.Hash().Hex()},
			[2]string{"Type", strconv.Itoa(int(tx.Type()))},
			[2]string{"Nonce", u64(tx.Nonce())},
			[2]string{"To", to},
			[2]string{"Value", tx.Value().String() + " wei"},
			[2]string{"Gas", u64(tx.Gas())},
			[2]string{"Gas fee cap", tx.GasFeeCap().String() + " wei"},
			[2]string{"Input", strconv.Itoa(len(tx.Data())) + " bytes"},
		)
	}}
}

// accountValue is the JSON shape of a single account field.
type accountValue struct {
	Address common.Address `json:"address"`
	Block   uint64         `json:"block"`
	Value   any            `json:"value"`
}

func balanceView(q chaindata.AccountQuery, wei *big.Int) view {
	return view{
		data: accountValue{Address: q.Address, Block: q.BlockNo, Value: wei.String()},
		text: func(w io.Writer) error {
			ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
			return output.KeyValues(w,
				[2]string{"Address", q.Address.Hex()},
				[2]string{"Block", u64(q.BlockNo)},
				[2]string{"Balance", wei.String() + " wei"},
				[2]string{"", ether.Text('f', 18) + " ETH"},
			)
		},
	}
}

func nonceView(q chaindata.AccountQuery, nonce uint64) view {
	return view{
		data: accountValue{Address: q.Address, Block: q.BlockNo, Value: nonce},
		text: func(w io.Writer) error {
			_, err := io.WriteString(w, u64(nonce)+"\n")
			return err
		},
	}
}

func codeView(q chaindata.AccountQuery, code []byte) view {
	return view{
		data: accountValue{Address: q.Address, Block: q.BlockNo, Value: hexutil.Bytes(code)},
		text: func(w io.Writer) error {
			_, err := io.WriteString(w, hexutil.Encode(code)+"\n")
			return err
		},
	}
}

func storageView(q chaindata.StorageQuery, value common.Hash) view {
	return view{
		data: map[string]any{"address": q.Address, "slot": q.Slot, "block": q.BlockNo, "value": value},
		text: func(w io.Writer) error {
			_, err := io.WriteString(w, value.Hex()+"\n")
			return err
		},
	}
}

func logsView(logs []types.Log) view {
	return view{data: logs, text: func(w io.Writer) error {
		t := output.NewTable("BLOCK", "TRANSACTION", "INDEX", "TOPIC0", "DATA")
		for _, l := range logs {
			topic := ""
			if len(l.Topics) > 0 {
				topic = l.Topics[0].Hex()
			}
			t.AddRow(u64(l.BlockNumber), l.TxHash.Hex(), strconv.FormatUint(uint64(l.Index), 10), topic,
				strconv.Itoa(len(l.Data))+" bytes")
		}
		return t.Render(w)
	}}
}

func blobsView(blobs *chaindata.BlobsResponse) view {
	return view{data: blobs, text: func(w io.Writer) error {
		t := output.NewTable("INDEX", "KZG COMMITMENT", "BLOB SIZE")
		for _, b := range blobs.Data {
			t.AddRow(b.Index, hexutil.Encode(b.KZGCommitment), strconv.Itoa(len(b.Blob))+" bytes")
		}
		return t.Render(w)
	}}
}
