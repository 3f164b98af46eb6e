package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/chain"
	"github.com/mrz1836/blockscope/internal/datastore"
)

// blockCmd shows a block header.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var blockCmd = &cobra.Command{
	Use:   "block <height>",
	Short: "Show a block header",
	Long: `Show the header of the block at the given height, including the hashes
of the transactions it contains.

Example:
  blockscope block 1024
  blockscope block 1024 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runBlock,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(blockCmd)
}

func runBlock(cmd *cobra.Command, args []string) error {
	height, err := parseHeight(args[0])
	if err != nil {
		return err
	}

	exp, err := newExplorer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, lookupTimeout(cfg))
	defer cancel()

	header, err := exp.FetchBlock(ctx, height)
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return formatter.Print(header)
	}
	return displayBlockText(header)
}

func displayBlockText(h *chain.BlockHeader) error {
	err := formatter.KeyValues([][2]string{
		{"height", strconv.FormatUint(uint64(h.Height), 10)},
		{"epoch", strconv.FormatUint(uint64(datastore.EpochOf(h.Height)), 10)},
		{"chain_id", strconv.FormatUint(uint64(h.ChainID), 10)},
		{"tx_count", strconv.FormatUint(uint64(h.TxCount), 10)},
		{"prev_block", h.PrevBlock},
		{"tx_root", h.TxRoot},
		{"state_root", h.StateRoot},
		{"header_root", h.HeaderRoot},
	})
	if err != nil || len(h.TxHashes) == 0 {
		return err
	}

	w := formatter.Writer()
	outln(w)
	outln(w, "Transactions:")
	for _, hash := range h.TxHashes {
		out(w, "  %s\n", hash)
	}
	return nil
}
