package cli

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// invalidInput builds an input error for argument or flag name.
func invalidInput(name, value, suggestion string) error {
	err := ccerr.WithDetails(ccerr.ErrInvalidInput, map[string]string{
		"argument": name,
		"value":    value,
	})
	if suggestion != "" {
		err = ccerr.WithSuggestion(err, suggestion)
	}
	return err
}

// parseUint accepts decimal or 0x-prefixed hex numbers. Tags such as
// "latest" are rejected: cached results must be tied to a fixed block.
func parseUint(name, s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := hexutil.DecodeUint64("0x" + s[2:])
		if err != nil {
			return 0, invalidInput(name, s, "use a decimal or 0x-prefixed hex number")
		}
		return n, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, invalidInput(name, s, "use a decimal or 0x-prefixed hex number; block tags like \"latest\" cannot be cached")
	}
	return n, nil
}

// parseAddress parses a 20-byte hex address.
func parseAddress(name, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, invalidInput(name, s, "addresses are 20-byte hex strings, e.g. 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	}
	return common.HexToAddress(s), nil
}

// parseHash parses an exactly 32-byte hex hash.
func parseHash(name, s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, invalidInput(name, s, "hashes are 32-byte 0x-prefixed hex strings")
	}
	return common.BytesToHash(b), nil
}

// parseWord parses a hex value of up to 32 bytes, left-padded. Storage
// slots are commonly written short ("0x0").
func parseWord(name, s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	b, err := hex.DecodeString(digits)
	if err != nil || digits == "" || len(b) > common.HashLength {
		return common.Hash{}, invalidInput(name, s, "use a hex value of at most 32 bytes, e.g. 0x0")
	}
	return common.BytesToHash(b), nil
}

// parseTopics parses --topic values. Each value is one position; "|"
// separates alternatives and "" or "*" matches anything.
func parseTopics(values []string) ([][]common.Hash, error) {
	out := make([][]common.Hash, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || v == "*" {
			out = append(out, nil)
			continue
		}
		alternatives := strings.Split(v, "|")
		position := make([]common.Hash, 0, len(alternatives))
		for _, alt := range alternatives {
			h, err := parseHash("topic", alt)
			if err != nil {
				return nil, err
			}
			position = append(position, h)
		}
		out = append(out, position)
	}
	return out, nil
}
