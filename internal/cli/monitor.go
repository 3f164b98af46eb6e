package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/datastore"
	"github.com/mrz1836/blockscope/internal/explorer"
	"github.com/mrz1836/blockscope/internal/metrics"
	"github.com/mrz1836/blockscope/internal/monitor"
	"github.com/mrz1836/blockscope/internal/output"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// metricsShutdownTimeout bounds the metrics listener shutdown.
const metricsShutdownTimeout = 5 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	monitorInterval time.Duration
	monitorWindow   int
	monitorOnce     bool
	monitorMetrics  string
	monitorNoReset  bool
)

// monitorCmd follows the chain tip.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the chain tip",
	Long: `Poll the node for new blocks and keep a window of the most recent
block headers, printing the window whenever the tip moves.

Runs until interrupted. With --once a single poll is made and printed.
With --metrics-listen the Prometheus metrics are served at /metrics.

When the node cannot be reached the window keeps being shown under an error
banner, and the monitor is reset one interval later to clear the error.
Pass --no-reset to keep the error flag until the command exits.

Example:
  blockscope monitor
  blockscope monitor --interval 2s --window 20
  blockscope monitor --once -o json
  blockscope monitor --metrics-listen 127.0.0.1:9464`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "polling interval (default: monitor.interval_seconds)")
	monitorCmd.Flags().IntVar(&monitorWindow, "window", 0, "number of recent headers kept (default: monitor.window)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "poll once, print and exit")
	monitorCmd.Flags().StringVar(&monitorMetrics, "metrics-listen", "", "serve Prometheus metrics on this address (default: metrics.listen)")
	monitorCmd.Flags().BoolVar(&monitorNoReset, "no-reset", false, "do not reset the monitor after a node error")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if monitorInterval != 0 {
		if monitorInterval < time.Second || monitorInterval%time.Second != 0 {
			return scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
				"interval": monitorInterval.String(),
				"reason":   "must be a whole number of seconds",
			})
		}
		cfg.Monitor.IntervalSeconds = int(monitorInterval / time.Second)
	}
	if monitorWindow > 0 {
		cfg.Monitor.Window = monitorWindow
	}
	if monitorMetrics != "" {
		cfg.Metrics.Listen = monitorMetrics
	}

	exp, err := newExplorer(cfg, logger)
	if err != nil {
		return err
	}

	if monitorOnce {
		return monitorOnceRun(cmd, exp)
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		addr, shutdown, err := serveMetrics(cfg.Metrics.Listen, metrics.Global)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving metrics on %s", addr)
	}

	r := &windowRenderer{}
	errored := make(chan struct{}, 1)
	exp.Subscribe(func(s *explorer.State) {
		if err := r.render(s.Monitor); err != nil {
			logger.Error("rendering window: %v", err)
		}
		if s.Monitor.Enabled && s.Monitor.Errored {
			select {
			case errored <- struct{}{}:
			default:
			}
		}
	})

	if err := exp.StartMonitor(ctx); err != nil {
		return err
	}
	if monitorNoReset {
		<-ctx.Done()
	} else {
		resetOnError(ctx, exp, errored, cfg.MonitorInterval(), logger)
	}
	return exp.StopMonitor()
}

// resetOnError resets the monitor delay after each error signal, as long as
// it is still errored by then. It returns when ctx is done.
func resetOnError(ctx context.Context, exp *explorer.Explorer, errored <-chan struct{}, delay time.Duration, log *config.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-errored:
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !exp.Snapshot().Monitor.Errored {
			continue
		}
		log.Info("resetting monitor after node error")
		if err := exp.ResetMonitor(ctx); err != nil {
			log.Error("resetting monitor: %v", err)
		}
	}
}

func monitorOnceRun(cmd *cobra.Command, exp *explorer.Explorer) error {
	ctx, cancel := contextWithTimeout(cmd, lookupTimeout(cfg))
	defer cancel()

	// Start polls synchronously before returning.
	if err := exp.StartMonitor(ctx); err != nil {
		return err
	}
	s := exp.Snapshot().Monitor
	if err := exp.StopMonitor(); err != nil {
		return err
	}

	if s.Errored {
		return scopeerr.WithDetails(scopeerr.ErrRPC, map[string]string{"last_error": s.LastError})
	}
	return renderWindow(s)
}

// windowRenderer prints the window when the tip or error flag changes.
// Lock-state toggles alone are not reprinted.
type windowRenderer struct {
	mu      sync.Mutex
	height  uint32
	errored bool
	printed bool
}

func (r *windowRenderer) render(s monitor.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !s.Enabled || s.Locked {
		return nil
	}
	if !s.Errored && s.CurrentHeight == 0 {
		return nil
	}
	if r.printed && s.CurrentHeight == r.height && s.Errored == r.errored {
		return nil
	}
	r.height, r.errored, r.printed = s.CurrentHeight, s.Errored, true
	return renderWindow(s)
}

func renderWindow(s monitor.State) error {
	if formatter.IsJSON() {
		return formatter.Print(s)
	}

	w := formatter.Writer()
	if s.Errored {
		out(w, "node unreachable: %s\n", s.LastError)
		if s.CurrentHeight == 0 && len(s.Window) == 0 {
			return nil
		}
	}

	out(w, "tip %d (epoch %d)\n", s.CurrentHeight, datastore.EpochOf(s.CurrentHeight))
	table := output.NewTable("HEIGHT", "TXS", "PREV_BLOCK", "TX_ROOT")
	table.AlignRight(0, 1)
	for _, h := range s.Window {
		table.AddRow(
			strconv.FormatUint(uint64(h.Height), 10),
			strconv.FormatUint(uint64(h.TxCount), 10),
			chain.ShortHash(h.PrevBlock, 8),
			chain.ShortHash(h.TxRoot, 8),
		)
	}
	if err := table.Render(w); err != nil {
		return err
	}
	outln(w)
	return nil
}

// serveMetrics starts the Prometheus listener and returns the bound address
// and a shutdown func.
func serveMetrics(addr string, m *metrics.Metrics) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, scopeerr.WithDetails(scopeerr.WithCause(scopeerr.ErrInvalidInput, err), map[string]string{
			"metrics_listen": addr,
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: metricsShutdownTimeout}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener: %v", err)
		}
	}()

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
