// Package chain defines the node client contract the explorer consumes,
// the chain record types it returns, and shared helpers for hex handling,
// retries and rate limiting.
package chain

import (
	"context"
	"math/big"
	"strconv"
)

// Curve identifies the signature curve an owner account is bound to.
type Curve uint8

// Supported curves.
const (
	CurveSecp256k1 Curve = 1
	CurveBN256     Curve = 2
)

// String returns the curve name.
func (c Curve) String() string {
	switch c {
	case CurveSecp256k1:
		return "secp256k1"
	case CurveBN256:
		return "bn256"
	default:
		return "unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// IsValid returns true if the curve is known.
func (c Curve) IsValid() bool {
	return c == CurveSecp256k1 || c == CurveBN256
}

// ParseCurve parses a curve by number ("1", "2") or name.
func ParseCurve(s string) (Curve, bool) {
	switch s {
	case "1", "secp256k1", "secp":
		return CurveSecp256k1, true
	case "2", "bn256", "bn":
		return CurveBN256, true
	default:
		return 0, false
	}
}

// BlockHeader is an immutable block header as returned by the node.
type BlockHeader struct {
	ChainID        uint32   `json:"chain_id"`
	Height         uint32   `json:"height"`
	TxCount        uint32   `json:"tx_count"`
	PrevBlock      string   `json:"prev_block"`
	TxRoot         string   `json:"tx_root"`
	StateRoot      string   `json:"state_root"`
	HeaderRoot     string   `json:"header_root"`
	GroupSignature string   `json:"group_signature"`
	TxHashes       []string `json:"tx_hashes"`
}

// Clone returns a deep copy of the header.
func (h BlockHeader) Clone() BlockHeader {
	h.TxHashes = append([]string(nil), h.TxHashes...)
	return h
}

// Transaction is a mined transaction.
type Transaction struct {
	Hash string    `json:"hash"`
	Vin  []TxInput `json:"vin"`
	Vout []UTXO    `json:"vout"`
	Fee  *big.Int  `json:"fee,omitempty"`
}

// TxInput references the output a transaction consumes.
type TxInput struct {
	ConsumedTxHash string `json:"consumed_tx_hash"`
	ConsumedTxIdx  uint32 `json:"consumed_tx_idx"`
	Signature      string `json:"signature,omitempty"`
}

// UTXOKind distinguishes the output kinds the chain stores.
type UTXOKind string

// Output kinds.
const (
	KindValueStore UTXOKind = "value_store"
	KindDataStore  UTXOKind = "data_store"
	KindAtomicSwap UTXOKind = "atomic_swap"
)

// UTXO is an unspent output. Exactly one of ValueStore/DataStore is set
// for the value and data kinds.
type UTXO struct {
	ID         string      `json:"utxo_id,omitempty"`
	Kind       UTXOKind    `json:"kind"`
	ValueStore *ValueStore `json:"value_store,omitempty"`
	DataStore  *DataStore  `json:"data_store,omitempty"`
}

// Owner is an account bound to a curve.
type Owner struct {
	Curve   Curve  `json:"curve"`
	Account string `json:"account"`
}

// ValueStore holds spendable value.
type ValueStore struct {
	Value    *big.Int `json:"value"`
	Owner    Owner    `json:"owner"`
	TxHash   string   `json:"tx_hash"`
	TxOutIdx uint32   `json:"tx_out_idx"`
	Fee      *big.Int `json:"fee,omitempty"`
}

// DataStore holds a payload prepaid for a number of epochs.
type DataStore struct {
	Index    string   `json:"index"`
	RawData  string   `json:"raw_data"`
	Deposit  *big.Int `json:"deposit"`
	IssuedAt uint32   `json:"issued_at"`
	Owner    Owner    `json:"owner"`
	TxHash   string   `json:"tx_hash"`
	TxOutIdx uint32   `json:"tx_out_idx"`
	Fee      *big.Int `json:"fee,omitempty"`
}

// ValuePage is one page of value-store ids owned by an account.
type ValuePage struct {
	UTXOIDs []string `json:"utxo_ids"`
	// TotalValue is the node's sum over this page.
	TotalValue *big.Int `json:"total_value"`
	// Cursor is empty when there are no further pages.
	Cursor string `json:"cursor,omitempty"`
}

// IndexedUTXO pairs a data-store index with its output id.
type IndexedUTXO struct {
	Index  string `json:"index"`
	UTXOID string `json:"utxo_id"`
}

// HeightReader reports the chain tip.
type HeightReader interface {
	CurrentHeight(ctx context.Context) (uint32, error)
}

// HeaderReader fetches block headers.
type HeaderReader interface {
	BlockHeader(ctx context.Context, height uint32) (*BlockHeader, error)
}

// BlockSource is what the block monitor needs.
type BlockSource interface {
	HeightReader
	HeaderReader
}

// TxReader looks up mined transactions.
type TxReader interface {
	TxBlockHeight(ctx context.Context, txHash string) (uint32, error)
	MinedTransaction(ctx context.Context, txHash string) (*Transaction, error)
}

// UTXOReader looks up value stores and outputs by id.
type UTXOReader interface {
	// ValueStores returns one page of value-store ids for an owner.
	// An empty cursor requests the first page.
	ValueStores(ctx context.Context, account string, curve Curve, minValue *big.Int, cursor string) (*ValuePage, error)

	// UTXOs resolves output ids to outputs.
	UTXOs(ctx context.Context, ids []string) ([]UTXO, error)
}

// DataStoreReader iterates an owner's data-store namespace.
type DataStoreReader interface {
	// DataStoreIndexes returns up to limit entries starting at startIndex.
	// An empty startIndex starts at the beginning of the namespace.
	DataStoreIndexes(ctx context.Context, account string, curve Curve, limit int, startIndex string) ([]IndexedUTXO, error)
}

// Client is the full node client contract.
type Client interface {
	BlockSource
	TxReader
	UTXOReader
	DataStoreReader
}
