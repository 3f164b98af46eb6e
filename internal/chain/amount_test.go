package chain_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/blockscope/internal/chain"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"decimal", "1000", 1000, false},
		{"hex", "0x3e8", 1000, false},
		{"spaces", " 42 ", 42, false},
		{"empty", "", 0, true},
		{"negative", "-5", 0, true},
		{"fraction", "1.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := chain.ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, scopeerr.Is(err, scopeerr.ErrInvalidInput) || scopeerr.Is(err, scopeerr.ErrInvalidHex))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{big.NewInt(999), "999"},
		{big.NewInt(1000), "1,000"},
		{big.NewInt(1234567), "1,234,567"},
		{big.NewInt(-1234), "-1,234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chain.FormatAmount(tt.in))
	}
}

func TestSumValues(t *testing.T) {
	t.Parallel()
	utxos := []chain.UTXO{
		{Kind: chain.KindValueStore, ValueStore: &chain.ValueStore{Value: big.NewInt(10)}},
		{Kind: chain.KindDataStore, DataStore: &chain.DataStore{Deposit: big.NewInt(500)}},
		{Kind: chain.KindValueStore, ValueStore: &chain.ValueStore{Value: big.NewInt(32)}},
		{Kind: chain.KindValueStore, ValueStore: &chain.ValueStore{}},
	}
	assert.Equal(t, int64(42), chain.SumValues(utxos).Int64())
}
