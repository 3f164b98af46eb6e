package explorer

import (
	"math/big"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/monitor"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// State is everything a UI renders.
type State struct {
	Monitor      monitor.State      `json:"monitor"`
	LastTx       *chain.Transaction `json:"last_tx,omitempty"`
	LastTxHeight uint32             `json:"last_tx_height,omitempty"`
	LastBlock    *chain.BlockHeader `json:"last_block,omitempty"`
	// Balances is keyed by normalized address. A later lookup of the same
	// address on another curve replaces the earlier one.
	Balances    map[string]Balance `json:"balances"`
	DataStores  *DataStorePage     `json:"data_stores,omitempty"`
	LastFailure *scopeerr.Failure  `json:"last_failure,omitempty"`
}

// DataStorePage is one page of an owner's data stores.
type DataStorePage struct {
	Address  string            `json:"address"`
	Curve    chain.Curve       `json:"curve"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Records  []DataStoreRecord `json:"records"`
	// Cursor is the index the next page starts at.
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// DataStoreRecord is a data store with its computed expiration.
type DataStoreRecord struct {
	UTXOID    string           `json:"utxo_id"`
	Index     string           `json:"index"`
	DataStore *chain.DataStore `json:"data_store,omitempty"`
	ExpiresAt *big.Int         `json:"expires_at,omitempty"`
	// Expired and RemainingEpochs are only set once the monitor knows the
	// chain height.
	Expired         bool              `json:"expired"`
	RemainingEpochs *big.Int          `json:"remaining_epochs,omitempty"`
	Failure         *scopeerr.Failure `json:"failure,omitempty"`
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := *s
	out.Monitor = s.Monitor.Clone()
	out.LastTx = cloneTx(s.LastTx)
	if s.LastBlock != nil {
		h := s.LastBlock.Clone()
		out.LastBlock = &h
	}
	out.Balances = make(map[string]Balance, len(s.Balances))
	for k, v := range s.Balances {
		out.Balances[k] = v.Clone()
	}
	out.DataStores = s.DataStores.Clone()
	if s.LastFailure != nil {
		f := *s.LastFailure
		out.LastFailure = &f
	}
	return &out
}

// Clone returns a deep copy of the page. Nil clones to nil.
func (p *DataStorePage) Clone() *DataStorePage {
	if p == nil {
		return nil
	}
	out := *p
	out.Records = make([]DataStoreRecord, len(p.Records))
	for i, r := range p.Records {
		r.DataStore = cloneDataStore(r.DataStore)
		r.ExpiresAt = cloneBig(r.ExpiresAt)
		r.RemainingEpochs = cloneBig(r.RemainingEpochs)
		if r.Failure != nil {
			f := *r.Failure
			r.Failure = &f
		}
		out.Records[i] = r
	}
	return &out
}
