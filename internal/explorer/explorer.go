// Package explorer is the UI-facing adapter over the node client.
//
// An Explorer owns a mutable State: the block monitor's snapshot, the last
// looked-up transaction and block, computed balances and the current page of
// data stores. Every operation validates its input, calls the node, records
// the result or a Failure in State and notifies subscribers. Subscribers are
// expected to re-read the snapshot they are handed; there is no event payload.
package explorer

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mrz1836/blockscope/internal/cache"
	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/datastore"
	"github.com/mrz1836/blockscope/internal/metrics"
	"github.com/mrz1836/blockscope/internal/monitor"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

const (
	// DefaultDataStorePageSize is the data-store page size when unset.
	DefaultDataStorePageSize = 20

	// DefaultTxCacheSize is the number of mined transactions kept in memory.
	DefaultTxCacheSize = 256

	// maxValuePages bounds balance pagination against a node that never
	// stops returning cursors.
	maxValuePages = 1000
)

// Balance is a computed balance for one owner.
type Balance = cache.Balance

// Options configures an Explorer.
type Options struct {
	Monitor           monitor.Options
	DataStorePageSize int
	TxCacheSize       int
	Logger            *config.Logger
	Metrics           *metrics.Metrics

	// BalanceTTL is how long a computed balance is served without asking
	// the node again. Zero always asks.
	BalanceTTL time.Duration
}

// Explorer adapts a chain.Client for a UI.
type Explorer struct {
	client   chain.Client
	monitor  *monitor.Monitor
	balances *cache.BalanceCache
	txs      *lru.Cache[string, minedTx]
	pageSize int
	logger   *config.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	state State

	subsMu sync.RWMutex
	subs   []func(*State)
}

type minedTx struct {
	height uint32
	tx     *chain.Transaction
}

// New creates an Explorer backed by client. The block monitor is created
// stopped.
func New(client chain.Client, opts Options) (*Explorer, error) {
	if client == nil {
		return nil, scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{"client": "required"})
	}

	e := &Explorer{
		client:   client,
		balances: cache.NewBalanceCache(opts.BalanceTTL),
		pageSize: opts.DataStorePageSize,
		logger:   config.NullLogger(),
		metrics:  metrics.Global,
	}
	if e.pageSize <= 0 {
		e.pageSize = DefaultDataStorePageSize
	}
	if opts.Logger != nil {
		e.logger = opts.Logger.Named("explorer")
	}
	if opts.Metrics != nil {
		e.metrics = opts.Metrics
	}

	size := opts.TxCacheSize
	if size <= 0 {
		size = DefaultTxCacheSize
	}
	txs, err := lru.New[string, minedTx](size)
	if err != nil {
		return nil, fmt.Errorf("creating transaction cache: %w", err)
	}
	e.txs = txs

	monOpts := opts.Monitor
	if monOpts.Logger == nil {
		monOpts.Logger = opts.Logger
	}
	if monOpts.Metrics == nil {
		monOpts.Metrics = e.metrics
	}
	e.monitor = monitor.New(client, monOpts)
	e.state.Balances = make(map[string]Balance)
	e.state.Monitor = e.monitor.Snapshot()
	e.monitor.OnChange(e.onMonitorChange)

	return e, nil
}

// Monitor returns the block monitor.
func (e *Explorer) Monitor() *monitor.Monitor {
	return e.monitor
}

// Subscribe registers fn to be called with a state snapshot after every
// state mutation.
func (e *Explorer) Subscribe(fn func(*State)) {
	if fn == nil {
		return
	}
	e.subsMu.Lock()
	e.subs = append(e.subs, fn)
	e.subsMu.Unlock()
}

// Snapshot returns a copy of the current state.
func (e *Explorer) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// StartMonitor starts the block monitor.
func (e *Explorer) StartMonitor(ctx context.Context) error {
	if err := e.monitor.Start(ctx); err != nil {
		return e.fail("start monitor", err)
	}
	e.succeed(nil)
	return nil
}

// StopMonitor stops the block monitor.
func (e *Explorer) StopMonitor() error {
	if err := e.monitor.Stop(); err != nil {
		return e.fail("stop monitor", err)
	}
	e.succeed(nil)
	return nil
}

// ResetMonitor restarts the block monitor from either state.
func (e *Explorer) ResetMonitor(ctx context.Context) error {
	if err := e.monitor.Reset(ctx); err != nil {
		return e.fail("reset monitor", err)
	}
	e.succeed(nil)
	return nil
}

// FetchBlock looks up the header at height.
func (e *Explorer) FetchBlock(ctx context.Context, height uint32) (*chain.BlockHeader, error) {
	if height == 0 {
		return nil, e.fail("fetch block", scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
			"height": "must be at least 1",
		}))
	}

	header, err := e.client.BlockHeader(ctx, height)
	if err != nil {
		return nil, e.fail("fetch block", err)
	}
	if header == nil {
		return nil, e.fail("fetch block", scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{
			"height": strconv.FormatUint(uint64(height), 10),
		}))
	}

	out := header.Clone()
	e.succeed(func(s *State) {
		h := header.Clone()
		s.LastBlock = &h
	})
	return &out, nil
}

// FetchTransaction looks up a mined transaction and the height it was mined at.
func (e *Explorer) FetchTransaction(ctx context.Context, txHash string) (*chain.Transaction, uint32, error) {
	if err := chain.ValidateTxHash(txHash); err != nil {
		return nil, 0, e.fail("fetch transaction", err)
	}
	key := chain.NormalizeHex(txHash)

	entry, ok := e.txs.Get(key)
	if ok {
		e.metrics.RecordCacheHit()
		e.logger.Debug("transaction %s served from cache", chain.ShortHash(key, 8))
	} else {
		e.metrics.RecordCacheMiss()

		height, err := e.client.TxBlockHeight(ctx, key)
		if err != nil {
			return nil, 0, e.fail("fetch transaction", err)
		}
		tx, err := e.client.MinedTransaction(ctx, key)
		if err != nil {
			return nil, 0, e.fail("fetch transaction", err)
		}
		if tx == nil {
			return nil, 0, e.fail("fetch transaction", scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{
				"tx_hash": key,
			}))
		}
		entry = minedTx{height: height, tx: tx}
		e.txs.Add(key, entry)
	}

	e.succeed(func(s *State) {
		s.LastTx = cloneTx(entry.tx)
		s.LastTxHeight = entry.height
	})
	return cloneTx(entry.tx), entry.height, nil
}

// FetchBalance sums every value store owned by address on curve.
func (e *Explorer) FetchBalance(ctx context.Context, address string, curve chain.Curve) (*Balance, error) {
	if err := chain.ValidateAddress(address, curve); err != nil {
		return nil, e.fail("fetch balance", err)
	}
	account := chain.NormalizeAddress(address)

	if cached, ok := e.balances.Fresh(curve, account); ok {
		e.logger.Debug("balance of %s on %s served from cache", account, curve)
		e.succeed(func(s *State) {
			s.Balances[account] = cached.Clone()
		})
		return cached, nil
	}

	total := new(big.Int)
	var ids []string
	cursor := ""
	for page := 0; ; page++ {
		if page == maxValuePages {
			return nil, e.fail("fetch balance", scopeerr.WithDetails(scopeerr.ErrRPC, map[string]string{
				"reason": "too many value-store pages",
			}))
		}

		vp, err := e.client.ValueStores(ctx, account, curve, nil, cursor)
		if err != nil {
			return nil, e.fail("fetch balance", err)
		}
		if vp == nil {
			return nil, e.fail("fetch balance", scopeerr.WithDetails(scopeerr.ErrRPC, map[string]string{
				"reason": "empty value-store page",
				"cursor": cursor,
			}))
		}
		ids = append(ids, vp.UTXOIDs...)
		if vp.TotalValue != nil {
			total.Add(total, vp.TotalValue)
		}
		if vp.Cursor == "" || vp.Cursor == cursor {
			break
		}
		cursor = vp.Cursor
	}

	stored := e.balances.Set(Balance{Address: account, Curve: curve, Total: total, UTXOIDs: ids})

	e.logger.Debug("balance of %s on %s: %s over %d outputs", account, curve, total, len(ids))
	e.succeed(func(s *State) {
		s.Balances[account] = stored.Clone()
	})
	return &stored, nil
}

// FetchDataStores loads a page of data stores owned by address on curve.
// With next set and a previous page for the same owner that has more
// entries, the following page is loaded; otherwise the first page is.
func (e *Explorer) FetchDataStores(ctx context.Context, address string, curve chain.Curve, next bool) (*DataStorePage, error) {
	if err := chain.ValidateAddress(address, curve); err != nil {
		return nil, e.fail("fetch data stores", err)
	}
	account := chain.NormalizeAddress(address)

	pageNum, start := 1, ""
	e.mu.Lock()
	if prev := e.state.DataStores; next && prev != nil && prev.Address == account && prev.Curve == curve && prev.HasMore {
		pageNum, start = prev.Page+1, prev.Cursor
	}
	height := e.state.Monitor.CurrentHeight
	e.mu.Unlock()

	// One extra entry tells whether another page follows.
	indexes, err := e.client.DataStoreIndexes(ctx, account, curve, e.pageSize+1, start)
	if err != nil {
		return nil, e.fail("fetch data stores", err)
	}

	page := &DataStorePage{
		Address:  account,
		Curve:    curve,
		Page:     pageNum,
		PageSize: e.pageSize,
	}
	if len(indexes) > e.pageSize {
		page.HasMore = true
		page.Cursor = indexes[e.pageSize].Index
		indexes = indexes[:e.pageSize]
	}

	records, err := e.loadRecords(ctx, indexes, height)
	if err != nil {
		return nil, e.fail("fetch data stores", err)
	}
	page.Records = records

	e.succeed(func(s *State) {
		s.DataStores = page.Clone()
	})
	return page.Clone(), nil
}

func (e *Explorer) loadRecords(ctx context.Context, indexes []chain.IndexedUTXO, height uint32) ([]DataStoreRecord, error) {
	if len(indexes) == 0 {
		return []DataStoreRecord{}, nil
	}

	ids := make([]string, len(indexes))
	for i, ix := range indexes {
		ids[i] = ix.UTXOID
	}

	utxos, err := e.client.UTXOs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]chain.UTXO, len(utxos))
	for i, u := range utxos {
		id := u.ID
		if id == "" && len(utxos) == len(ids) {
			id = ids[i]
		}
		byID[id] = u
	}

	records := make([]DataStoreRecord, 0, len(indexes))
	for _, ix := range indexes {
		rec := DataStoreRecord{UTXOID: ix.UTXOID, Index: ix.Index}
		u, ok := byID[ix.UTXOID]
		switch {
		case !ok:
			rec.Failure = scopeerr.ToFailure(scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{"utxo_id": ix.UTXOID}))
		case u.DataStore == nil:
			rec.Failure = scopeerr.ToFailure(scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
				"utxo_id": ix.UTXOID,
				"kind":    string(u.Kind),
			}))
		default:
			rec.fill(u.DataStore, height)
		}
		records = append(records, rec)
	}
	return records, nil
}

// fill copies ds into the record and computes its expiration. A record whose
// expiration cannot be computed keeps the reason as its Failure.
func (r *DataStoreRecord) fill(ds *chain.DataStore, height uint32) {
	r.DataStore = cloneDataStore(ds)

	raw, err := chain.DecodeHex(ds.RawData)
	if err != nil {
		r.Failure = scopeerr.ToFailure(err)
		return
	}
	exp, err := datastore.ComputeExpiration(len(raw), ds.Deposit, new(big.Int).SetUint64(uint64(ds.IssuedAt)))
	if err != nil {
		r.Failure = scopeerr.ToFailure(err)
		return
	}
	r.ExpiresAt = exp.ExpiresAt
	if height > 0 {
		epoch := datastore.EpochOf(height)
		r.Expired = datastore.IsExpired(exp.ExpiresAt, epoch)
		r.RemainingEpochs = datastore.RemainingEpochs(exp.ExpiresAt, epoch)
	}
}

// fail logs err, records it as the last failure and notifies subscribers.
// Errors from the node that carry no code are classified as RPC errors.
// The message is prefixed with op.
func (e *Explorer) fail(op string, err error) error {
	var se *scopeerr.ScopeError
	if !scopeerr.As(err, &se) {
		err = scopeerr.WithCause(scopeerr.ErrRPC, err)
	}
	err = scopeerr.Wrap(err, "%s", op)
	e.logger.Error("%v", err)

	failure := scopeerr.ToFailure(err)
	e.mu.Lock()
	e.state.LastFailure = failure
	e.mu.Unlock()
	e.notify()
	return err
}

// succeed applies fn, clears the last failure and notifies subscribers.
func (e *Explorer) succeed(fn func(*State)) {
	e.mu.Lock()
	if fn != nil {
		fn(&e.state)
	}
	e.state.LastFailure = nil
	e.mu.Unlock()
	e.notify()
}

func (e *Explorer) onMonitorChange(s monitor.State) {
	e.mu.Lock()
	e.state.Monitor = s
	e.mu.Unlock()
	e.notify()
}

func (e *Explorer) notify() {
	e.subsMu.RLock()
	subs := e.subs
	e.subsMu.RUnlock()
	if len(subs) == 0 {
		return
	}

	for _, fn := range subs {
		fn(e.Snapshot())
	}
}

func cloneTx(tx *chain.Transaction) *chain.Transaction {
	if tx == nil {
		return nil
	}
	out := *tx
	out.Fee = cloneBig(tx.Fee)
	out.Vin = append([]chain.TxInput(nil), tx.Vin...)
	out.Vout = make([]chain.UTXO, len(tx.Vout))
	for i, u := range tx.Vout {
		out.Vout[i] = cloneUTXO(u)
	}
	return &out
}

func cloneUTXO(u chain.UTXO) chain.UTXO {
	if u.ValueStore != nil {
		vs := *u.ValueStore
		vs.Value = cloneBig(vs.Value)
		vs.Fee = cloneBig(vs.Fee)
		u.ValueStore = &vs
	}
	u.DataStore = cloneDataStore(u.DataStore)
	return u
}

func cloneDataStore(ds *chain.DataStore) *chain.DataStore {
	if ds == nil {
		return nil
	}
	out := *ds
	out.Deposit = cloneBig(ds.Deposit)
	out.Fee = cloneBig(ds.Fee)
	return &out
}

func cloneBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}
