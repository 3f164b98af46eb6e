package cli

import (
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/explorer"
	"github.com/mrz1836/blockscope/internal/output"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// maxDataStorePages bounds --all against a node that always reports more.
const maxDataStorePages = 1000

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	dataStoresCurve string
	dataStoresPages int
	dataStoresAll   bool
	dataStoresTip   bool
)

// dataStoresCmd lists the data stores of an owner.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var dataStoresCmd = &cobra.Command{
	Use:     "datastores <address>",
	Aliases: []string{"ds"},
	Short:   "List the data stores of an account",
	Long: `List the data stores owned by an account, a page at a time, with the
epoch each one expires at.

With --tip (the default) the chain tip is read first so expired entries
and remaining epochs can be shown.

Example:
  blockscope datastores 0x2a7e...91
  blockscope datastores 0x2a7e...91 --pages 3
  blockscope datastores 0x2a7e...91 --all --tip=false -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runDataStores,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	dataStoresCmd.Flags().StringVar(&dataStoresCurve, "curve", "secp256k1", "owner curve: secp256k1 or bn256")
	dataStoresCmd.Flags().IntVar(&dataStoresPages, "pages", 1, "number of pages to load")
	dataStoresCmd.Flags().BoolVar(&dataStoresAll, "all", false, "load every page")
	dataStoresCmd.Flags().BoolVar(&dataStoresTip, "tip", true, "read the chain tip to flag expired entries")
	rootCmd.AddCommand(dataStoresCmd)
}

func runDataStores(cmd *cobra.Command, args []string) error {
	curve, err := parseCurveFlag(dataStoresCurve)
	if err != nil {
		return err
	}
	if dataStoresPages < 1 && !dataStoresAll {
		return scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
			"pages": strconv.Itoa(dataStoresPages),
		})
	}

	exp, err := newExplorer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, lookupTimeout(cfg))
	defer cancel()

	if dataStoresTip {
		// The tip is only known while the monitor runs.
		if err := exp.StartMonitor(ctx); err != nil {
			return err
		}
		defer func() { _ = exp.StopMonitor() }()
		if s := exp.Snapshot().Monitor; s.Errored {
			logger.Info("chain tip unavailable: %s", s.LastError)
			messenger.Warnf("chain tip unavailable, expiration status is unknown")
		}
	}

	var pages []*explorer.DataStorePage
	limit := dataStoresPages
	if dataStoresAll {
		limit = maxDataStorePages
	}
	for i := 0; i < limit; i++ {
		page, err := exp.FetchDataStores(ctx, args[0], curve, i > 0)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		if !page.HasMore {
			break
		}
	}

	if formatter.IsJSON() {
		return formatter.Print(pages)
	}
	return displayDataStoresText(pages)
}

func displayDataStoresText(pages []*explorer.DataStorePage) error {
	w := formatter.Writer()
	table := output.NewTable("PAGE", "INDEX", "UTXO", "ISSUED", "EXPIRES", "STATUS")
	table.AlignRight(0, 3, 4)

	for _, p := range pages {
		for _, r := range p.Records {
			table.AddRow(
				strconv.Itoa(p.Page),
				chain.ShortHash(r.Index, 8),
				chain.ShortHash(r.UTXOID, 8),
				issuedColumn(r),
				bigColumn(r.ExpiresAt),
				statusColumn(r),
			)
		}
	}

	if table.Len() == 0 {
		outln(w, "No data stores found.")
		return nil
	}
	if err := table.Render(w); err != nil {
		return err
	}

	var failed []explorer.DataStoreRecord
	for _, p := range pages {
		for _, r := range p.Records {
			if r.Failure != nil {
				failed = append(failed, r)
			}
		}
	}
	if len(failed) > 0 {
		outln(w)
		outln(w, "Failures:")
		for _, r := range failed {
			out(w, "  %s ", chain.ShortHash(r.Index, 8))
			if err := output.FormatFailure(w, r.Failure, output.FormatText); err != nil {
				return err
			}
		}
	}

	if last := pages[len(pages)-1]; last.HasMore {
		outln(w)
		out(w, "More entries follow; use --pages %d or --all.\n", last.Page+1)
	}
	return nil
}

func issuedColumn(r explorer.DataStoreRecord) string {
	if r.DataStore == nil {
		return ""
	}
	return strconv.FormatUint(uint64(r.DataStore.IssuedAt), 10)
}

func bigColumn(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func statusColumn(r explorer.DataStoreRecord) string {
	switch {
	case r.Failure != nil:
		return r.Failure.Code
	case r.Expired:
		return "expired"
	case r.RemainingEpochs == nil:
		return "unknown"
	default:
		return "alive (" + bigColumn(r.RemainingEpochs) + " left)"
	}
}
