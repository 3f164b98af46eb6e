package rpc

import (
	"encoding/hex"
	"math/big"

	"github.com/mrz1836/blockscope/internal/chain"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// accountLength is the byte length of an owner account.
const accountLength = 20

func (h *wireBlockHeader) toHeader() *chain.BlockHeader {
	return &chain.BlockHeader{
		ChainID:        h.BClaims.ChainID,
		Height:         h.BClaims.Height,
		TxCount:        h.BClaims.TxCount,
		PrevBlock:      h.BClaims.PrevBlock,
		TxRoot:         h.BClaims.TxRoot,
		StateRoot:      h.BClaims.StateRoot,
		HeaderRoot:     h.BClaims.HeaderRoot,
		GroupSignature: h.SigGroup,
		TxHashes:       append([]string(nil), h.TxHshLst...),
	}
}

func (t *wireTx) toTransaction(hash string) (*chain.Transaction, error) {
	tx := &chain.Transaction{Hash: chain.NormalizeHex(hash)}

	fee, err := optionalHex(t.Fee)
	if err != nil {
		return nil, err
	}
	tx.Fee = fee

	for _, in := range t.Vin {
		tx.Vin = append(tx.Vin, chain.TxInput{
			ConsumedTxHash: in.TXInLinker.TXInPreImage.ConsumedTxHash,
			ConsumedTxIdx:  in.TXInLinker.TXInPreImage.ConsumedTxIdx,
			Signature:      in.Signature,
		})
	}

	for _, out := range t.Vout {
		u, err := out.toUTXO("")
		if err != nil {
			return nil, err
		}
		tx.Vout = append(tx.Vout, u)
	}

	return tx, nil
}

func (v wireVout) toUTXO(id string) (chain.UTXO, error) {
	switch {
	case v.ValueStore != nil:
		pre := v.ValueStore.VSPreImage
		value, err := chain.HexToBig(pre.Value)
		if err != nil {
			return chain.UTXO{}, err
		}
		fee, err := optionalHex(pre.Fee)
		if err != nil {
			return chain.UTXO{}, err
		}
		return chain.UTXO{
			ID:   id,
			Kind: chain.KindValueStore,
			ValueStore: &chain.ValueStore{
				Value:    value,
				Owner:    parseOwner(pre.Owner),
				TxHash:   v.ValueStore.TxHash,
				TxOutIdx: pre.TXOutIdx,
				Fee:      fee,
			},
		}, nil

	case v.DataStore != nil:
		pre := v.DataStore.DSLinker.DSPreImage
		deposit, err := chain.HexToBig(pre.Deposit)
		if err != nil {
			return chain.UTXO{}, err
		}
		fee, err := optionalHex(pre.Fee)
		if err != nil {
			return chain.UTXO{}, err
		}
		return chain.UTXO{
			ID:   id,
			Kind: chain.KindDataStore,
			DataStore: &chain.DataStore{
				Index:    pre.Index,
				RawData:  pre.RawData,
				Deposit:  deposit,
				IssuedAt: pre.IssuedAt,
				Owner:    parseOwner(pre.Owner),
				TxHash:   v.DataStore.DSLinker.TxHash,
				TxOutIdx: pre.TXOutIdx,
				Fee:      fee,
			},
		}, nil

	case v.AtomicSwap != nil:
		return chain.UTXO{ID: id, Kind: chain.KindAtomicSwap}, nil

	default:
		return chain.UTXO{}, scopeerr.WithDetails(scopeerr.ErrRPC, map[string]string{
			"reason": "output has no known kind",
		})
	}
}

// parseOwner splits an encoded owner into curve and account. The encoding
// ends with the curve byte followed by the 20-byte account.
func parseOwner(s string) chain.Owner {
	b, err := hex.DecodeString(chain.NormalizeHex(s))
	if err != nil || len(b) < accountLength {
		return chain.Owner{Account: chain.NormalizeHex(s)}
	}

	owner := chain.Owner{Account: hex.EncodeToString(b[len(b)-accountLength:])}
	if len(b) > accountLength {
		owner.Curve = chain.Curve(b[len(b)-accountLength-1])
	}
	return owner
}

func optionalHex(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // absent fee is not an error
	}
	return chain.HexToBig(s)
}
