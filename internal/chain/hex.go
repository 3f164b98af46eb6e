package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// txHashLength is the byte length of a transaction hash.
const txHashLength = 32

// NormalizeHex trims whitespace and an optional 0x prefix and lowercases the rest.
func NormalizeHex(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return strings.ToLower(s)
}

// DecodeHex decodes a hex string with or without a 0x prefix.
// Odd-length input is rejected rather than zero-padded.
func DecodeHex(s string) ([]byte, error) {
	b, err := hexutil.Decode("0x" + NormalizeHex(s))
	if err != nil {
		return nil, scopeerr.WithCause(scopeerr.ErrInvalidHex, err)
	}
	return b, nil
}

// HexToBig parses an unsigned hex integer. Leading zeros are allowed, since
// nodes return fixed-width uint256 strings. Empty input is zero.
func HexToBig(s string) (*big.Int, error) {
	s = NormalizeHex(s)
	if s == "" {
		return new(big.Int), nil
	}
	// SetString alone would accept a sign.
	if strings.IndexFunc(s, notHexDigit) >= 0 {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidHex, map[string]string{"value": s})
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidHex, map[string]string{"value": s})
	}
	return n, nil
}

func notHexDigit(r rune) bool {
	return (r < '0' || r > '9') && (r < 'a' || r > 'f')
}

// BigToHex renders n as 0x-prefixed minimal hex. Nil renders as 0x0.
func BigToHex(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(n)
}

// ShortHash abbreviates a long hex string for display, keeping the first and
// last keep characters.
func ShortHash(s string, keep int) string {
	s = NormalizeHex(s)
	if keep <= 0 || len(s) <= 2*keep+3 {
		return s
	}
	return s[:keep] + "..." + s[len(s)-keep:]
}

// ValidateAddress checks that account is a 20-byte hex account for the curve.
// Both curves derive accounts as 20-byte hashes of the public key.
func ValidateAddress(account string, curve Curve) error {
	if !curve.IsValid() {
		return scopeerr.WithDetails(scopeerr.ErrInvalidCurve, map[string]string{"curve": curve.String()})
	}
	if !common.IsHexAddress(strings.TrimSpace(account)) {
		return scopeerr.WithDetails(scopeerr.ErrInvalidAddress, map[string]string{"address": account})
	}
	return nil
}

// NormalizeAddress returns the canonical lowercase, unprefixed form of an account.
func NormalizeAddress(account string) string {
	return NormalizeHex(account)
}

// ValidateTxHash checks that s is a 32-byte hex hash.
func ValidateTxHash(s string) error {
	b, err := DecodeHex(s)
	if err != nil || len(b) != txHashLength {
		return scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{"tx_hash": s})
	}
	return nil
}
