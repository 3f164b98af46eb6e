package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/metrics"
	"github.com/mrz1836/blockscope/internal/monitor"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

var errNodeDown = errors.New("node down")

// fakeSource is an in-memory chain.BlockSource.
type fakeSource struct {
	mu          sync.Mutex
	height      uint32
	heightErr   error
	headerErr   map[uint32]error
	heightCalls int
	headerCalls []uint32

	// When gate is set, CurrentHeight signals entered and waits on gate.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeSource(height uint32) *fakeSource {
	return &fakeSource{height: height, headerErr: map[uint32]error{}}
}

func (f *fakeSource) CurrentHeight(ctx context.Context) (uint32, error) {
	f.mu.Lock()
	f.heightCalls++
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height, f.heightErr
}

func (f *fakeSource) BlockHeader(_ context.Context, height uint32) (*chain.BlockHeader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headerCalls = append(f.headerCalls, height)
	if err := f.headerErr[height]; err != nil {
		return nil, err
	}
	return &chain.BlockHeader{Height: height, TxHashes: []string{"tx"}}, nil
}

func (f *fakeSource) setHeight(h uint32) {
	f.mu.Lock()
	f.height = h
	f.mu.Unlock()
}

func (f *fakeSource) setHeightErr(err error) {
	f.mu.Lock()
	f.heightErr = err
	f.mu.Unlock()
}

func (f *fakeSource) setHeaderErr(height uint32, err error) {
	f.mu.Lock()
	if err == nil {
		delete(f.headerErr, height)
	} else {
		f.headerErr[height] = err
	}
	f.mu.Unlock()
}

func (f *fakeSource) block() {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	f.mu.Unlock()
}

func (f *fakeSource) release() {
	f.mu.Lock()
	close(f.gate)
	f.gate = nil
	f.mu.Unlock()
}

func (f *fakeSource) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heightCalls, len(f.headerCalls)
}

func (f *fakeSource) resetCalls() {
	f.mu.Lock()
	f.heightCalls = 0
	f.headerCalls = nil
	f.mu.Unlock()
}

func (f *fakeSource) fetched() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.headerCalls...)
}

func newMonitor(t *testing.T, src chain.BlockSource, window int) (*monitor.Monitor, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	mon := monitor.New(src, monitor.Options{
		Interval: time.Hour,
		Window:   window,
		Metrics:  m,
	})
	t.Cleanup(func() { _ = mon.Stop() })
	return mon, m
}

func heights(s monitor.State) []uint32 {
	out := make([]uint32, 0, len(s.Window))
	for _, h := range s.Window {
		out = append(out, h.Height)
	}
	return out
}

func TestMonitor_Lifecycle(t *testing.T) {
	t.Parallel()
	mon, _ := newMonitor(t, newFakeSource(0), 10)
	ctx := context.Background()

	require.ErrorIs(t, mon.Stop(), scopeerr.ErrNotRunning)

	require.NoError(t, mon.Start(ctx))
	assert.True(t, mon.Snapshot().Enabled)
	require.ErrorIs(t, mon.Start(ctx), scopeerr.ErrAlreadyRunning)

	require.NoError(t, mon.Stop())
	assert.False(t, mon.Snapshot().Enabled)
	require.ErrorIs(t, mon.Stop(), scopeerr.ErrNotRunning)
}

func TestMonitor_ResetFromEitherState(t *testing.T) {
	t.Parallel()
	src := newFakeSource(3)
	mon, _ := newMonitor(t, src, 10)
	ctx := context.Background()

	require.NoError(t, mon.Reset(ctx))
	assert.True(t, mon.Snapshot().Enabled)

	src.setHeight(4)
	require.NoError(t, mon.Reset(ctx))
	s := mon.Snapshot()
	assert.True(t, s.Enabled)
	assert.Equal(t, uint32(4), s.CurrentHeight)
	assert.Equal(t, []uint32{4, 3, 2, 1}, heights(s))
}

func TestMonitor_StartPollsOnce(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, m := newMonitor(t, src, 10)

	require.NoError(t, mon.Start(context.Background()))

	s := mon.Snapshot()
	assert.Equal(t, uint32(5), s.CurrentHeight)
	assert.Equal(t, []uint32{5, 4, 3, 2, 1}, heights(s))
	assert.False(t, s.Locked)
	assert.ElementsMatch(t, []uint32{1, 2, 3, 4, 5}, src.fetched())

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.PollsTotal)
	assert.Equal(t, int64(5), snap.HeadersFetched)
	assert.Equal(t, int64(5), snap.BlockHeight)
	assert.Equal(t, int64(5), snap.WindowSize)
}

func TestMonitor_NoChangeIssuesNoHeaderCalls(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, _ := newMonitor(t, src, 10)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))
	before := mon.Snapshot()

	src.resetCalls()
	mon.Poll(ctx)

	heightCalls, headerCalls := src.calls()
	assert.Equal(t, 1, heightCalls)
	assert.Equal(t, 0, headerCalls)
	assert.Equal(t, before, mon.Snapshot())
}

func TestMonitor_ClampsToWindow(t *testing.T) {
	t.Parallel()
	src := newFakeSource(2)
	mon, _ := newMonitor(t, src, 4)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	src.resetCalls()
	src.setHeight(100)
	mon.Poll(ctx)

	_, headerCalls := src.calls()
	assert.Equal(t, 4, headerCalls)
	assert.ElementsMatch(t, []uint32{97, 98, 99, 100}, src.fetched())

	s := mon.Snapshot()
	assert.Equal(t, uint32(100), s.CurrentHeight)
	assert.Equal(t, []uint32{100, 99, 98, 97}, heights(s))
}

func TestMonitor_WindowInvariantAcrossPolls(t *testing.T) {
	t.Parallel()
	const window = 6
	src := newFakeSource(0)
	mon, _ := newMonitor(t, src, window)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	for _, h := range []uint32{3, 3, 7, 8, 8, 15, 16, 40, 41, 42} {
		src.setHeight(h)
		mon.Poll(ctx)

		s := mon.Snapshot()
		got := heights(s)
		require.LessOrEqual(t, len(got), window)
		require.NotEmpty(t, got)
		assert.Equal(t, h, got[0], "newest first")
		for i := 1; i < len(got); i++ {
			require.Greater(t, got[i-1], got[i], "strictly descending, no duplicates: %v", got)
		}
	}

	assert.Equal(t, []uint32{42, 41, 40, 39, 38, 37}, heights(mon.Snapshot()))
}

func TestMonitor_OverlappingPollIsSkipped(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, m := newMonitor(t, src, 10)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	src.setHeight(9)
	src.block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.Poll(ctx)
	}()
	<-src.entered

	locked := mon.Snapshot()
	assert.True(t, locked.Locked)
	heightCalls, headerCalls := src.calls()

	mon.Poll(ctx)

	h2, hd2 := src.calls()
	assert.Equal(t, heightCalls, h2, "no height call while locked")
	assert.Equal(t, headerCalls, hd2, "no header call while locked")
	assert.Equal(t, locked, mon.Snapshot())
	assert.Equal(t, int64(1), m.Snapshot().PollsSkipped)

	src.release()
	<-done

	s := mon.Snapshot()
	assert.False(t, s.Locked)
	assert.Equal(t, uint32(9), s.CurrentHeight)
}

func TestMonitor_HeaderFailureKeepsHeight(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, m := newMonitor(t, src, 10)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	src.setHeight(8)
	src.setHeaderErr(7, errNodeDown)
	mon.Poll(ctx)

	s := mon.Snapshot()
	assert.Equal(t, uint32(5), s.CurrentHeight)
	assert.Equal(t, []uint32{5, 4, 3, 2, 1}, heights(s))
	assert.False(t, s.Errored, "header failures are transient")
	assert.True(t, s.Enabled)
	assert.Equal(t, int64(1), m.Snapshot().PollErrors)

	// Next cycle retries the same range.
	src.setHeaderErr(7, nil)
	mon.Poll(ctx)
	s = mon.Snapshot()
	assert.Equal(t, uint32(8), s.CurrentHeight)
	assert.Equal(t, []uint32{8, 7, 6, 5, 4, 3, 2, 1}, heights(s))
}

func TestMonitor_HeightFailureFlagsErrored(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, _ := newMonitor(t, src, 10)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	src.setHeightErr(errNodeDown)
	mon.Poll(ctx)

	s := mon.Snapshot()
	assert.True(t, s.Errored)
	assert.True(t, s.Enabled, "monitor stays enabled")
	assert.Contains(t, s.LastError, "node down")
	assert.Equal(t, uint32(5), s.CurrentHeight)

	// Stays flagged after the node recovers until reset.
	src.setHeightErr(nil)
	src.setHeight(6)
	mon.Poll(ctx)
	assert.True(t, mon.Snapshot().Errored)

	require.NoError(t, mon.Reset(ctx))
	s = mon.Snapshot()
	assert.False(t, s.Errored)
	assert.Empty(t, s.LastError)
	assert.Equal(t, uint32(6), s.CurrentHeight)
}

func TestMonitor_StopDuringInFlightPoll(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, _ := newMonitor(t, src, 10)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	src.setHeight(9)
	src.block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.Poll(ctx)
	}()
	<-src.entered

	require.NoError(t, mon.Stop())
	src.release()
	<-done

	s := mon.Snapshot()
	assert.False(t, s.Enabled)
	assert.Equal(t, uint32(0), s.CurrentHeight)
	assert.Empty(t, s.Window)
}

func TestMonitor_StaleRunCannotCommitAfterRestart(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, _ := newMonitor(t, src, 10)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))

	src.setHeight(9)
	src.block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.Poll(ctx)
	}()
	<-src.entered

	// The restart's own first poll is skipped since the stale poll holds the lock.
	require.NoError(t, mon.Stop())
	require.NoError(t, mon.Start(ctx))
	src.release()
	<-done

	s := mon.Snapshot()
	assert.True(t, s.Enabled)
	assert.Equal(t, uint32(0), s.CurrentHeight)
	assert.Empty(t, s.Window)

	mon.Poll(ctx)
	assert.Equal(t, uint32(9), mon.Snapshot().CurrentHeight)
}

func TestMonitor_HeightBackwardsRebuildsWindow(t *testing.T) {
	t.Parallel()
	src := newFakeSource(20)
	mon, _ := newMonitor(t, src, 5)
	ctx := context.Background()
	require.NoError(t, mon.Start(ctx))
	require.Equal(t, []uint32{20, 19, 18, 17, 16}, heights(mon.Snapshot()))

	src.setHeight(3)
	mon.Poll(ctx)

	s := mon.Snapshot()
	assert.Equal(t, uint32(3), s.CurrentHeight)
	assert.Equal(t, []uint32{3, 2, 1}, heights(s))
}

func TestMonitor_PollWhenStoppedDoesNothing(t *testing.T) {
	t.Parallel()
	src := newFakeSource(5)
	mon, _ := newMonitor(t, src, 10)

	mon.Poll(context.Background())

	heightCalls, _ := src.calls()
	assert.Equal(t, 0, heightCalls)
	assert.Equal(t, monitor.State{}, mon.Snapshot())
}

func TestMonitor_OnChange(t *testing.T) {
	t.Parallel()
	src := newFakeSource(3)
	mon, _ := newMonitor(t, src, 10)

	var mu sync.Mutex
	var seen []monitor.State
	mon.OnChange(func(s monitor.State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	mon.OnChange(nil)

	require.NoError(t, mon.Start(context.Background()))
	require.NoError(t, mon.Stop())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)

	var sawWindow bool
	for _, s := range seen {
		if len(s.Window) == 3 {
			sawWindow = true
		}
	}
	assert.True(t, sawWindow)

	last := seen[len(seen)-1]
	assert.False(t, last.Enabled)
	assert.Empty(t, last.Window)
}

func TestMonitor_SnapshotIsCopy(t *testing.T) {
	t.Parallel()
	src := newFakeSource(2)
	mon, _ := newMonitor(t, src, 10)
	require.NoError(t, mon.Start(context.Background()))

	s := mon.Snapshot()
	s.Window[0].Height = 999
	s.Window[0].TxHashes[0] = "mutated"

	fresh := mon.Snapshot()
	assert.Equal(t, uint32(2), fresh.Window[0].Height)
	assert.Equal(t, "tx", fresh.Window[0].TxHashes[0])
}

func TestMonitor_TickerPolls(t *testing.T) {
	t.Parallel()
	src := newFakeSource(1)
	mon := monitor.New(src, monitor.Options{
		Interval: 10 * time.Millisecond,
		Window:   3,
		Metrics:  metrics.New(),
	})
	require.NoError(t, mon.Start(context.Background()))
	t.Cleanup(func() { _ = mon.Stop() })

	src.setHeight(7)
	assert.Eventually(t, func() bool {
		return mon.Snapshot().CurrentHeight == 7
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint32{7, 6, 5}, heights(mon.Snapshot()))
}

func TestMonitor_Defaults(t *testing.T) {
	t.Parallel()
	mon := monitor.New(newFakeSource(0), monitor.Options{})
	assert.Equal(t, monitor.DefaultWindow, mon.WindowSize())
}
