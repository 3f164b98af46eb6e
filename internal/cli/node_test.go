package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const (
	testAccount = "1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a"
	testTxHash  = "7a3fd2c94e1b0a6f8d5c3b2a19e8f7d6c5b4a39281706f5e4d3c2b1a09f8e7d6"
)

// fakeNode is an in-memory node serving the REST RPC the client speaks.
// Tip 3000 falls in epoch 3.
type fakeNode struct {
	mu    sync.Mutex
	tip   uint32
	calls map[string]int
	down  bool
}

// Data stores owned by testAccount, in namespace order. Each payload is
// 4 bytes, so an epoch costs 380.
//
//nolint:gochecknoglobals // test fixture
var testDataStores = []struct {
	index, id, deposit string
	issuedAt           uint32
}{
	{"01", "d1", "11d0", 1}, // 12 epochs: expires at 11
	{"02", "d2", "474", 1},  // 3 epochs: expires at 2
	{"03", "d3", "2ef", 1},  // below two epochs
}

func newFakeNode(t *testing.T) (*fakeNode, string) {
	t.Helper()
	n := &fakeNode{tip: 3000, calls: map[string]int{}}
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	return n, srv.URL
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) setDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/v1/")
	n.mu.Lock()
	n.calls[method]++
	tip, down := n.tip, n.down
	n.mu.Unlock()

	if down {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"message":"node syncing"}`)
		return
	}

	var body map[string]any
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &body)

	var resp any
	switch method {
	case "get-block-number":
		resp = map[string]any{"BlockHeight": tip}
	case "get-block-header":
		h := uint32(body["Height"].(float64))
		resp = map[string]any{"BlockHeader": map[string]any{
			"BClaims": map[string]any{
				"ChainID":    42,
				"Height":     h,
				"TxCount":    1,
				"PrevBlock":  fmt.Sprintf("%064x", h-1),
				"TxRoot":     fmt.Sprintf("%064x", h*7),
				"StateRoot":  fmt.Sprintf("%064x", h*11),
				"HeaderRoot": fmt.Sprintf("%064x", h*13),
			},
			"TxHshLst": []string{testTxHash},
		}}
	case "get-tx-block-number":
		resp = map[string]any{"BlockHeight": 2999}
	case "get-mined-transaction":
		resp = map[string]any{"Tx": map[string]any{
			"Fee": "0a",
			"Vin": []any{map[string]any{
				"TXInLinker": map[string]any{
					"TXInPreImage": map[string]any{"ConsumedTxIdx": 0, "ConsumedTxHash": "ff"},
				},
			}},
			"Vout": []any{map[string]any{"ValueStore": map[string]any{
				"VSPreImage": map[string]any{"Value": "3e8", "Owner": "0101" + testAccount},
			}}},
		}}
	case "get-value-for-owner":
		if body["PaginationToken"] == "p2" {
			resp = map[string]any{"UTXOIDs": []string{"bb"}, "TotalValue": "c8"}
		} else {
			resp = map[string]any{"UTXOIDs": []string{"aa"}, "TotalValue": "64", "PaginationToken": "p2"}
		}
	case "iterate-name-space":
		resp = map[string]any{"Results": namespacePage(body)}
	case "get-utxo":
		resp = map[string]any{"UTXOs": dataStoreUTXOs(body)}
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"unknown method"}`)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// namespacePage returns up to Number entries starting at StartIndex inclusive.
func namespacePage(body map[string]any) []any {
	limit := int(body["Number"].(float64))
	start, _ := body["StartIndex"].(string)

	var out []any
	for _, ds := range testDataStores {
		if start != "" && ds.index < start {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, map[string]any{"UTXOID": ds.id, "Index": ds.index})
	}
	return out
}

func dataStoreUTXOs(body map[string]any) []any {
	ids, _ := body["UTXOIDs"].([]any)
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		for _, ds := range testDataStores {
			if ds.id != id {
				continue
			}
			out = append(out, map[string]any{"DataStore": map[string]any{
				"DSLinker": map[string]any{
					"DSPreImage": map[string]any{
						"Index":    ds.index,
						"IssuedAt": ds.issuedAt,
						"Deposit":  ds.deposit,
						"RawData":  "deadbeef",
						"Owner":    "0101" + testAccount,
					},
				},
			}})
		}
	}
	return out
}

// resetFlags restores every flag in the tree to its default, since the
// command tree is shared between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI with home as the data directory and returns stdout.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), err
}

// runJSON executes the CLI in JSON mode and decodes stdout into v.
func runJSON(t *testing.T, home string, v any, args ...string) {
	t.Helper()
	out, err := run(t, home, append([]string{"-o", "json"}, args...)...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}
