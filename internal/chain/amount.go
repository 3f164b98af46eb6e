package chain

import (
	"math/big"
	"strings"

	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// ParseAmount parses a non-negative integer amount in base units.
// A 0x prefix selects hex, anything else is decimal.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{"amount": s})
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return HexToBig(s)
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{"amount": s})
	}
	return n, nil
}

// FormatAmount renders a base-unit amount with thousands separators.
// For example, 1234567 renders as "1,234,567".
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	str := amount.String()
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}

	var sb strings.Builder
	lead := len(str) % 3
	if lead > 0 {
		sb.WriteString(str[:lead])
	}
	for i := lead; i < len(str); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(str[i : i+3])
	}

	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

// SumValues adds up the value of every value store in utxos.
func SumValues(utxos []UTXO) *big.Int {
	total := new(big.Int)
	for _, u := range utxos {
		if u.ValueStore != nil && u.ValueStore.Value != nil {
			total.Add(total, u.ValueStore.Value)
		}
	}
	return total
}
