// Package monitor follows the chain tip and keeps a bounded window of the
// most recent block headers.
//
// Polls run on a ticker and once synchronously at start. A poll that finds a
// previous poll still in flight returns immediately without touching the
// node or the state; polls are dropped, never queued.
package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/metrics"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultInterval         = 5 * time.Second
	DefaultWindow           = 10
	DefaultFetchConcurrency = 4
)

// State is the observable monitor state.
type State struct {
	Enabled       bool                `json:"enabled"`
	Locked        bool                `json:"locked"`
	CurrentHeight uint32              `json:"current_height"`
	Window        []chain.BlockHeader `json:"window"` // newest first
	Errored       bool                `json:"errored"`
	LastError     string              `json:"last_error,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	if s.Window != nil {
		w := make([]chain.BlockHeader, len(s.Window))
		for i := range s.Window {
			w[i] = s.Window[i].Clone()
		}
		s.Window = w
	}
	return s
}

// Options configures a Monitor.
type Options struct {
	Interval         time.Duration
	Window           int
	FetchConcurrency int
	Logger           *config.Logger
	Metrics          *metrics.Metrics
}

// Monitor polls a BlockSource for new blocks.
type Monitor struct {
	source      chain.BlockSource
	interval    time.Duration
	window      int
	concurrency int
	logger      *config.Logger
	metrics     *metrics.Metrics

	// pollSem is the skip-if-busy lock around a poll cycle.
	pollSem *semaphore.Weighted

	mu    sync.Mutex
	state State
	// gen changes on every start and stop so a poll can tell whether the
	// run it belongs to is still current when it commits.
	gen  uint64
	stop chan struct{}

	listenersMu sync.RWMutex
	listeners   []func(State)
}

// New creates a stopped monitor.
func New(source chain.BlockSource, opts Options) *Monitor {
	m := &Monitor{
		source:      source,
		interval:    opts.Interval,
		window:      opts.Window,
		concurrency: opts.FetchConcurrency,
		logger:      config.NullLogger(),
		metrics:     metrics.Global,
		pollSem:     semaphore.NewWeighted(1),
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.window <= 0 {
		m.window = DefaultWindow
	}
	if m.concurrency <= 0 {
		m.concurrency = DefaultFetchConcurrency
	}
	if opts.Logger != nil {
		m.logger = opts.Logger.Named("monitor")
	}
	if opts.Metrics != nil {
		m.metrics = opts.Metrics
	}
	return m
}

// WindowSize returns the window capacity.
func (m *Monitor) WindowSize() int {
	return m.window
}

// OnChange registers fn to be called with a state snapshot after every
// state mutation. Callbacks run on the goroutine that made the change.
func (m *Monitor) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Start enables polling. It polls once before returning and then every
// interval until Stop is called or ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Enabled {
		m.mu.Unlock()
		return scopeerr.ErrAlreadyRunning
	}
	m.state.Enabled = true
	m.state.Errored = false
	m.state.LastError = ""
	m.gen++
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.logger.Info("started (interval %s, window %d)", m.interval, m.window)
	m.notify()

	m.Poll(ctx)
	go m.run(ctx, stop)
	return nil
}

// Stop disables polling, clears the window and resets the height to zero.
// A poll already in flight is left to finish but its result is discarded.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.state.Enabled {
		m.mu.Unlock()
		return scopeerr.ErrNotRunning
	}
	m.state.Enabled = false
	m.state.CurrentHeight = 0
	m.state.Window = nil
	m.gen++
	close(m.stop)
	m.stop = nil
	m.mu.Unlock()

	m.metrics.SetChainState(0, 0)
	m.logger.Info("stopped")
	m.notify()
	return nil
}

// Reset stops the monitor if it is running and starts it again. It clears
// the errored flag.
func (m *Monitor) Reset(ctx context.Context) error {
	if err := m.Stop(); err != nil && !scopeerr.Is(err, scopeerr.ErrNotRunning) {
		return err
	}
	return m.Start(ctx)
}

func (m *Monitor) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll runs one poll cycle. It returns immediately if another cycle is in
// flight or the monitor is stopped.
func (m *Monitor) Poll(ctx context.Context) {
	if !m.pollSem.TryAcquire(1) {
		m.metrics.RecordPollSkipped()
		m.logger.Debug("poll skipped: previous poll in flight")
		return
	}
	defer m.pollSem.Release(1)

	m.mu.Lock()
	if !m.state.Enabled {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	current := m.state.CurrentHeight
	m.state.Locked = true
	m.mu.Unlock()
	m.notify()

	defer func() {
		m.mu.Lock()
		m.state.Locked = false
		m.mu.Unlock()
		m.notify()
	}()

	m.metrics.RecordPoll()
	m.poll(ctx, gen, current)
}

func (m *Monitor) poll(ctx context.Context, gen uint64, current uint32) {
	height, err := m.source.CurrentHeight(ctx)
	if err != nil {
		m.metrics.RecordPollError()
		m.logger.Error("fetching current height: %v", err)
		m.commit(gen, func(s *State) {
			s.Errored = true
			s.LastError = err.Error()
		})
		return
	}

	if height == current {
		m.logger.Debug("no new blocks at height %d", height)
		return
	}

	rebuild := height < current
	var delta uint32
	if rebuild {
		m.logger.Info("height went backwards from %d to %d, rebuilding window", current, height)
		delta = height
	} else {
		delta = height - current
	}
	if w := uint32(m.window); delta > w { //nolint:gosec // window is positive
		m.logger.Debug("skipping %d blocks", delta-w)
		delta = w
	}

	headers, err := m.fetchHeaders(ctx, height-delta+1, height)
	if err != nil {
		m.metrics.RecordPollError()
		m.logger.Error("fetching headers %d..%d: %v", height-delta+1, height, err)
		return
	}
	m.metrics.RecordHeaders(len(headers))

	committed := m.commit(gen, func(s *State) {
		window := s.Window
		if rebuild {
			window = nil
		}
		next := make([]chain.BlockHeader, 0, len(headers)+len(window))
		for i := len(headers) - 1; i >= 0; i-- {
			next = append(next, *headers[i])
		}
		next = append(next, window...)
		if len(next) > m.window {
			next = next[:m.window]
		}
		s.Window = next
		s.CurrentHeight = height
	})
	if committed {
		m.logger.Debug("advanced to height %d (%d new headers)", height, len(headers))
	}
}

// fetchHeaders fetches headers from..to inclusive and returns them in
// ascending height order. Any failure fails the whole range.
func (m *Monitor) fetchHeaders(ctx context.Context, from, to uint32) ([]*chain.BlockHeader, error) {
	if from > to {
		return nil, nil
	}

	headers := make([]*chain.BlockHeader, to-from+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i := range headers {
		height := from + uint32(i) //nolint:gosec // bounded by window size
		g.Go(func() error {
			h, err := m.source.BlockHeader(gctx, height)
			if err != nil {
				return err
			}
			if h == nil {
				return scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{"reason": "empty header"})
			}
			headers[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return headers, nil
}

// commit applies fn if the run that started the poll is still current.
func (m *Monitor) commit(gen uint64, fn func(*State)) bool {
	m.mu.Lock()
	if gen != m.gen || !m.state.Enabled {
		m.mu.Unlock()
		m.logger.Debug("discarding poll result from a stopped run")
		return false
	}
	fn(&m.state)
	height, size := m.state.CurrentHeight, len(m.state.Window)
	m.mu.Unlock()

	m.metrics.SetChainState(height, size)
	m.notify()
	return true
}

func (m *Monitor) notify() {
	m.listenersMu.RLock()
	listeners := m.listeners
	m.listenersMu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	snap := m.Snapshot()
	for _, fn := range listeners {
		fn(snap.Clone())
	}
}
