package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNode = errors.New("node down")

func TestMetrics_RecordRPCCall(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordRPCCall("get-block-number", 100*time.Millisecond, nil)
	m.RecordRPCCall("get-block-header", 50*time.Millisecond, errNode)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.RPCCallsTotal)
	assert.Equal(t, int64(1), snap.RPCErrorsTotal)
	assert.InDelta(t, 75.0, m.RPCLatencyAvgMs(), 0.001)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.rpcByMethod.WithLabelValues("get-block-number", "ok")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.rpcByMethod.WithLabelValues("get-block-header", "error")), 0)
}

func TestMetrics_MonitorCounters(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordPoll()
	m.RecordPoll()
	m.RecordPollSkipped()
	m.RecordPollError()
	m.RecordHeaders(10)
	m.SetChainState(1234, 10)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.PollsTotal)
	assert.Equal(t, int64(1), snap.PollsSkipped)
	assert.Equal(t, int64(1), snap.PollErrors)
	assert.Equal(t, int64(10), snap.HeadersFetched)
	assert.Equal(t, int64(1234), snap.BlockHeight)
	assert.Equal(t, int64(10), snap.WindowSize)
}

func TestMetrics_CacheHitRate(t *testing.T) {
	t.Parallel()
	m := New()
	assert.InDelta(t, 0.0, m.CacheHitRate(), 0)
	assert.InDelta(t, 0.0, m.RPCLatencyAvgMs(), 0)

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	assert.InDelta(t, 75.0, m.CacheHitRate(), 0.001)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetChainState(77, 3)
	m.RecordPoll()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // test request
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, "blockscope_block_height 77"), text)
	assert.Contains(t, text, "blockscope_window_size 3")
	assert.Contains(t, text, "blockscope_polls_total 1")
}

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	a.RecordPoll()
	assert.Equal(t, int64(0), b.Snapshot().PollsTotal)
	assert.NotSame(t, a.Registry(), b.Registry())
}
