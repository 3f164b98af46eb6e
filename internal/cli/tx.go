package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/output"
)

// txCmd looks up a mined transaction.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var txCmd = &cobra.Command{
	Use:   "tx <hash>",
	Short: "Look up a mined transaction",
	Long: `Look up a mined transaction by hash and show the block it was mined in,
the outputs it consumed and the outputs it created.

Example:
  blockscope tx 7a3fd2...e1
  blockscope tx 0x7a3fd2...e1 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runTx,
}

// TxResult is the JSON shape of a transaction lookup.
type TxResult struct {
	Height      uint32             `json:"height"`
	Transaction *chain.Transaction `json:"transaction"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(txCmd)
}

func runTx(cmd *cobra.Command, args []string) error {
	exp, err := newExplorer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, lookupTimeout(cfg))
	defer cancel()

	tx, height, err := exp.FetchTransaction(ctx, args[0])
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return formatter.Print(TxResult{Height: height, Transaction: tx})
	}
	return displayTxText(tx, height)
}

func displayTxText(tx *chain.Transaction, height uint32) error {
	err := formatter.KeyValues([][2]string{
		{"hash", tx.Hash},
		{"height", strconv.FormatUint(uint64(height), 10)},
		{"fee", chain.FormatAmount(tx.Fee)},
		{"inputs", strconv.Itoa(len(tx.Vin))},
		{"outputs", strconv.Itoa(len(tx.Vout))},
	})
	if err != nil {
		return err
	}

	w := formatter.Writer()
	if len(tx.Vin) > 0 {
		outln(w)
		outln(w, "Consumed:")
		for _, in := range tx.Vin {
			out(w, "  %s:%d\n", in.ConsumedTxHash, in.ConsumedTxIdx)
		}
	}

	if len(tx.Vout) == 0 {
		return nil
	}
	outln(w)
	table := output.NewTable("#", "KIND", "OWNER", "AMOUNT", "INDEX")
	table.AlignRight(0, 3)
	for i, u := range tx.Vout {
		table.AddRow(append([]string{strconv.Itoa(i)}, utxoColumns(u)...)...)
	}
	return table.Render(w)
}

// utxoColumns returns the kind, owner, amount and index cells of an output.
// The amount of a data store is its deposit.
func utxoColumns(u chain.UTXO) []string {
	switch {
	case u.ValueStore != nil:
		vs := u.ValueStore
		return []string{string(u.Kind), ownerString(vs.Owner), chain.FormatAmount(vs.Value), ""}
	case u.DataStore != nil:
		ds := u.DataStore
		return []string{string(u.Kind), ownerString(ds.Owner), chain.FormatAmount(ds.Deposit), chain.ShortHash(ds.Index, 8)}
	default:
		return []string{string(u.Kind), "", "", ""}
	}
}

func ownerString(o chain.Owner) string {
	if o.Account == "" {
		return ""
	}
	return o.Curve.String() + ":" + chain.ShortHash(o.Account, 8)
}
