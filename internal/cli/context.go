package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/chain/rpc"
	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/explorer"
	"github.com/mrz1836/blockscope/internal/metrics"
	"github.com/mrz1836/blockscope/internal/monitor"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// retryBaseDelay is the first backoff step of node retries.
const retryBaseDelay = 250 * time.Millisecond

func out(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func outln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}

// lookupTimeout bounds a one-shot lookup, which may page through several
// node calls with retries.
func lookupTimeout(c *config.Config) time.Duration {
	attempts := max(c.Node.RetryAttempts, 1)
	return c.NodeTimeout() * time.Duration(attempts) * 4
}

// newNodeClient builds the node RPC client from configuration.
func newNodeClient(c *config.Config, log *config.Logger) (*rpc.Client, error) {
	if err := config.ValidateNodeURL(c.Node.URL); err != nil {
		return nil, scopeerr.WithSuggestion(err, "set node.url or pass --node")
	}

	retry := chain.DefaultRetryConfig()
	if c.Node.RetryAttempts > 0 {
		retry.MaxAttempts = c.Node.RetryAttempts
		retry.BaseDelay = retryBaseDelay
	}

	return rpc.NewClient(c.Node.URL, &rpc.Options{
		Timeout: c.NodeTimeout(),
		Limiter: chain.NewRateLimiter(c.Node.RatePerSecond, c.Node.Burst),
		Retry:   &retry,
		Metrics: metrics.Global,
		Logger:  log,
	})
}

// newExplorer builds an Explorer over the configured node.
func newExplorer(c *config.Config, log *config.Logger) (*explorer.Explorer, error) {
	client, err := newNodeClient(c, log)
	if err != nil {
		return nil, err
	}

	return explorer.New(client, explorer.Options{
		Monitor: monitor.Options{
			Interval:         c.MonitorInterval(),
			Window:           c.Monitor.Window,
			FetchConcurrency: c.Monitor.FetchConcurrency,
		},
		DataStorePageSize: c.Explorer.DataStorePageSize,
		TxCacheSize:       c.Explorer.TxCacheSize,
		BalanceTTL:        c.BalanceTTL(),
		Logger:            log,
		Metrics:           metrics.Global,
	})
}

// parseCurveFlag parses the --curve flag value.
func parseCurveFlag(s string) (chain.Curve, error) {
	curve, ok := chain.ParseCurve(s)
	if !ok {
		return 0, scopeerr.WithSuggestion(
			scopeerr.WithDetails(scopeerr.ErrInvalidCurve, map[string]string{"curve": s}),
			"use secp256k1 (1) or bn256 (2)",
		)
	}
	return curve, nil
}

// parseHeight parses a block height argument.
func parseHeight(s string) (uint32, error) {
	h, err := strconv.ParseUint(s, 10, 32)
	if err != nil || h == 0 {
		return 0, scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
			"height": s,
			"reason": "must be a positive block number",
		})
	}
	return uint32(h), nil
}
