package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/chain"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	balanceCurve     string
	balanceShowUTXOs bool
)

// balanceCmd sums the value stores of an owner.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the balance of an account",
	Long: `Sum every value store owned by an account on a curve.

The node returns value-store ids a page at a time; all pages are read.

Example:
  blockscope balance 0x2a7e...91
  blockscope balance 0x2a7e...91 --curve bn256 --utxos`,
	Args: cobra.ExactArgs(1),
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	balanceCmd.Flags().StringVar(&balanceCurve, "curve", "secp256k1", "owner curve: secp256k1 or bn256")
	balanceCmd.Flags().BoolVar(&balanceShowUTXOs, "utxos", false, "list the value-store ids")
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	curve, err := parseCurveFlag(balanceCurve)
	if err != nil {
		return err
	}

	exp, err := newExplorer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, lookupTimeout(cfg))
	defer cancel()

	bal, err := exp.FetchBalance(ctx, args[0], curve)
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return formatter.Print(bal)
	}

	err = formatter.KeyValues([][2]string{
		{"address", bal.Address},
		{"curve", bal.Curve.String()},
		{"balance", chain.FormatAmount(bal.Total)},
		{"outputs", strconv.Itoa(len(bal.UTXOIDs))},
	})
	if err != nil || !balanceShowUTXOs {
		return err
	}

	w := formatter.Writer()
	outln(w)
	for _, id := range bal.UTXOIDs {
		out(w, "  %s\n", id)
	}
	return nil
}
