// Package rpc binds the node's REST RPC to the chain.Client contract.
// It is plumbing only: requests are posted as JSON to <url>/v1/<method>
// and responses are decoded into chain types.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/metrics"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// Node RPC method names.
const (
	MethodBlockNumber    = "get-block-number"
	MethodBlockHeader    = "get-block-header"
	MethodTxBlockNumber  = "get-tx-block-number"
	MethodMinedTx        = "get-mined-transaction"
	MethodValueForOwner  = "get-value-for-owner"
	MethodUTXO           = "get-utxo"
	MethodIterateNameSpc = "iterate-name-space"
)

const (
	defaultTimeout = 15 * time.Second

	// maxBodySize bounds how much of a response is read.
	maxBodySize = 8 << 20

	// maxErrorBodySize bounds how much of an error body is kept for details.
	maxErrorBodySize = 512
)

// ErrURLRequired indicates the node URL was not provided.
var ErrURLRequired = &scopeerr.ScopeError{
	Code:     "NODE_URL_REQUIRED",
	Message:  "node URL is required",
	ExitCode: scopeerr.ExitInput,
}

// Compile-time interface check
var _ chain.Client = (*Client)(nil)

// Options contains optional configuration for the client.
type Options struct {
	// Timeout bounds each HTTP attempt. Defaults to 15s.
	Timeout time.Duration
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Limiter throttles requests. Defaults to chain.DefaultRateLimiter.
	Limiter *chain.RateLimiter
	// Retry configures retries of transient failures.
	Retry *chain.RetryConfig
	// Metrics receives per-call measurements. Defaults to metrics.Global.
	Metrics *metrics.Metrics
	// Logger receives retry and failure lines. Defaults to a null logger.
	Logger *config.Logger
}

// Client is a node RPC client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *chain.RateLimiter
	retry      chain.RetryConfig
	metrics    *metrics.Metrics
	logger     *config.Logger
}

// NewClient creates a client for the node at baseURL.
func NewClient(baseURL string, opts *Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrURLRequired
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    chain.DefaultRateLimiter(),
		retry:      chain.DefaultRetryConfig(),
		metrics:    metrics.Global,
		logger:     config.NullLogger(),
	}

	if opts != nil {
		c.applyOptions(opts)
	}

	c.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Debug("retry %d in %s: %v", attempt, delay, err)
	}

	return c, nil
}

func (c *Client) applyOptions(opts *Options) {
	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	} else if opts.Timeout > 0 {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Limiter != nil {
		c.limiter = opts.Limiter
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	}
	if opts.Metrics != nil {
		c.metrics = opts.Metrics
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.Named("rpc")
	}
}

// URL returns the node base URL.
func (c *Client) URL() string {
	return c.baseURL
}

// call posts req to the method endpoint and decodes the response into resp.
// Transient failures are retried. Every returned error carries the RPC or
// not-found code.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return scopeerr.WithCause(scopeerr.ErrRPC, fmt.Errorf("marshaling %s request: %w", method, err))
	}

	_, err = chain.RetryWithConfig(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, body, resp)
	})
	if err == nil {
		return nil
	}

	c.logger.Error("%s failed: %v", method, err)
	if errors.Is(err, scopeerr.ErrNotFound) || errors.Is(err, scopeerr.ErrRPC) {
		return err
	}
	return scopeerr.WithDetails(scopeerr.WithCause(scopeerr.ErrRPC, err), map[string]string{"method": method})
}

func (c *Client) attempt(ctx context.Context, method string, body []byte, resp any) (err error) {
	if err := c.limiter.Wait(ctx, method); err != nil {
		return err
	}

	start := time.Now()
	defer func() { c.metrics.RecordRPCCall(method, time.Since(start), err) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return chain.WrapRetryable(fmt.Errorf("sending %s: %w", method, err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return chain.WrapRetryable(fmt.Errorf("reading %s response: %w", method, err))
	}

	if statusErr := chain.ClassifyStatus(httpResp.StatusCode, errorMessage(respBody)); statusErr != nil {
		return statusErr
	}

	if err := json.Unmarshal(respBody, resp); err != nil {
		return scopeerr.WithCause(scopeerr.ErrRPC, fmt.Errorf("decoding %s response: %w", method, err))
	}
	return nil
}

// errorMessage extracts the node's error text from a failed response body.
func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodySize {
		msg = msg[:maxErrorBodySize]
	}
	return msg
}

// CurrentHeight returns the chain tip height.
func (c *Client) CurrentHeight(ctx context.Context) (uint32, error) {
	var resp blockNumberResponse
	if err := c.call(ctx, MethodBlockNumber, emptyRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.BlockHeight, nil
}

// BlockHeader returns the header at height.
func (c *Client) BlockHeader(ctx context.Context, height uint32) (*chain.BlockHeader, error) {
	var resp blockHeaderResponse
	if err := c.call(ctx, MethodBlockHeader, heightRequest{Height: height}, &resp); err != nil {
		return nil, err
	}
	if resp.BlockHeader == nil {
		return nil, scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{
			"height": fmt.Sprint(height),
		})
	}
	return resp.BlockHeader.toHeader(), nil
}

// TxBlockHeight returns the height at which txHash was mined.
func (c *Client) TxBlockHeight(ctx context.Context, txHash string) (uint32, error) {
	var resp blockNumberResponse
	if err := c.call(ctx, MethodTxBlockNumber, txHashRequest{TxHash: chain.NormalizeHex(txHash)}, &resp); err != nil {
		return 0, err
	}
	return resp.BlockHeight, nil
}

// MinedTransaction returns the mined transaction txHash.
func (c *Client) MinedTransaction(ctx context.Context, txHash string) (*chain.Transaction, error) {
	var resp minedTxResponse
	if err := c.call(ctx, MethodMinedTx, txHashRequest{TxHash: chain.NormalizeHex(txHash)}, &resp); err != nil {
		return nil, err
	}
	if resp.Tx == nil {
		return nil, scopeerr.WithDetails(scopeerr.ErrNotFound, map[string]string{"tx_hash": txHash})
	}
	return resp.Tx.toTransaction(txHash)
}

// ValueStores returns one page of value-store ids owned by account.
func (c *Client) ValueStores(ctx context.Context, account string, curve chain.Curve, minValue *big.Int, cursor string) (*chain.ValuePage, error) {
	req := valueForOwnerRequest{
		CurveSpec:       uint8(curve),
		Account:         chain.NormalizeAddress(account),
		Minvalue:        strings.TrimPrefix(chain.BigToHex(minValue), "0x"),
		PaginationToken: cursor,
	}

	var resp valueForOwnerResponse
	if err := c.call(ctx, MethodValueForOwner, req, &resp); err != nil {
		return nil, err
	}

	total, err := chain.HexToBig(resp.TotalValue)
	if err != nil {
		return nil, scopeerr.WithCause(scopeerr.ErrRPC, err)
	}

	return &chain.ValuePage{
		UTXOIDs:    resp.UTXOIDs,
		TotalValue: total,
		Cursor:     resp.PaginationToken,
	}, nil
}

// UTXOs resolves output ids. The result is in the order the node returns it,
// with IDs filled from the request when the counts line up.
func (c *Client) UTXOs(ctx context.Context, ids []string) ([]chain.UTXO, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp utxoResponse
	if err := c.call(ctx, MethodUTXO, utxoRequest{UTXOIDs: ids}, &resp); err != nil {
		return nil, err
	}

	utxos := make([]chain.UTXO, 0, len(resp.UTXOs))
	for i, v := range resp.UTXOs {
		id := ""
		if len(resp.UTXOs) == len(ids) {
			id = ids[i]
		}
		u, err := v.toUTXO(id)
		if err != nil {
			return nil, scopeerr.WithCause(scopeerr.ErrRPC, err)
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

// DataStoreIndexes iterates the owner's data-store namespace.
func (c *Client) DataStoreIndexes(ctx context.Context, account string, curve chain.Curve, limit int, startIndex string) ([]chain.IndexedUTXO, error) {
	req := nameSpaceRequest{
		CurveSpec:  uint8(curve),
		Account:    chain.NormalizeAddress(account),
		Number:     limit,
		StartIndex: startIndex,
	}

	var resp nameSpaceResponse
	if err := c.call(ctx, MethodIterateNameSpc, req, &resp); err != nil {
		return nil, err
	}

	out := make([]chain.IndexedUTXO, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, chain.IndexedUTXO{Index: r.Index, UTXOID: r.UTXOID})
	}
	return out, nil
}
