// Package metrics provides application-level metrics collection.
// Counters are plain atomics so hot paths stay cheap; a per-instance
// Prometheus registry reads them on scrape.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds application metrics.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64
	rpcByMethod     *prometheus.CounterVec

	// Block monitor metrics
	pollsTotal     atomic.Int64
	pollsSkipped   atomic.Int64
	pollErrors     atomic.Int64
	headersFetched atomic.Int64
	blockHeight    atomic.Int64
	windowSize     atomic.Int64

	// Transaction cache metrics
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	registry *prometheus.Registry
}

// Global is the process-wide metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = New()

// New creates a metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcByMethod: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockscope_rpc_method_calls_total",
			Help: "Node RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
	}

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) })
	}

	m.registry.MustRegister(
		m.rpcByMethod,
		counter("blockscope_rpc_calls_total", "Node RPC calls", &m.rpcCallsTotal),
		counter("blockscope_rpc_errors_total", "Node RPC calls that failed", &m.rpcErrorsTotal),
		counter("blockscope_polls_total", "Block monitor poll cycles started", &m.pollsTotal),
		counter("blockscope_polls_skipped_total", "Poll attempts dropped because a poll was in flight", &m.pollsSkipped),
		counter("blockscope_poll_errors_total", "Poll cycles that ended on a node error", &m.pollErrors),
		counter("blockscope_headers_fetched_total", "Block headers fetched by the monitor", &m.headersFetched),
		counter("blockscope_tx_cache_hits_total", "Mined transaction cache hits", &m.cacheHits),
		counter("blockscope_tx_cache_misses_total", "Mined transaction cache misses", &m.cacheMisses),
		gauge("blockscope_block_height", "Last chain height observed by the monitor", &m.blockHeight),
		gauge("blockscope_window_size", "Headers currently held in the monitor window", &m.windowSize),
	)

	return m
}

// RecordRPCCall records a node call with its duration and outcome.
func (m *Metrics) RecordRPCCall(method string, duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	outcome := "ok"
	if err != nil {
		m.rpcErrorsTotal.Add(1)
		outcome = "error"
	}
	m.rpcByMethod.WithLabelValues(method, outcome).Inc()
}

// RecordPoll records a started poll cycle.
func (m *Metrics) RecordPoll() {
	m.pollsTotal.Add(1)
}

// RecordPollSkipped records a poll dropped because another was in flight.
func (m *Metrics) RecordPollSkipped() {
	m.pollsSkipped.Add(1)
}

// RecordPollError records a poll cycle that ended on a node error.
func (m *Metrics) RecordPollError() {
	m.pollErrors.Add(1)
}

// RecordHeaders records n fetched headers.
func (m *Metrics) RecordHeaders(n int) {
	m.headersFetched.Add(int64(n))
}

// SetChainState records the monitor's observed height and window length.
func (m *Metrics) SetChainState(height uint32, window int) {
	m.blockHeight.Store(int64(height))
	m.windowSize.Store(int64(window))
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RPCCallsTotal   int64
	RPCErrorsTotal  int64
	RPCLatencyNanos int64
	PollsTotal      int64
	PollsSkipped    int64
	PollErrors      int64
	HeadersFetched  int64
	BlockHeight     int64
	WindowSize      int64
	CacheHits       int64
	CacheMisses     int64
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:   m.rpcCallsTotal.Load(),
		RPCErrorsTotal:  m.rpcErrorsTotal.Load(),
		RPCLatencyNanos: m.rpcLatencyNanos.Load(),
		PollsTotal:      m.pollsTotal.Load(),
		PollsSkipped:    m.pollsSkipped.Load(),
		PollErrors:      m.pollErrors.Load(),
		HeadersFetched:  m.headersFetched.Load(),
		BlockHeight:     m.blockHeight.Load(),
		WindowSize:      m.windowSize.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
	}
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds, or 0 with no calls.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.rpcLatencyNanos.Load()) / float64(calls) / 1e6
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Registry returns the Prometheus registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
