package cli

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/datastore"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	expirationPayload  string
	expirationDeposit  string
	expirationIssuedAt string
)

// expirationCmd computes when a data store expires. It needs no node.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var expirationCmd = &cobra.Command{
	Use:   "expiration",
	Short: "Compute the expiration epoch of a data store",
	Long: `Compute the last epoch a data store stays alive for, from its payload,
its deposit and the epoch it was issued at. No node is contacted.

Each epoch costs the payload size plus 376 units of deposit. The first two
paid epochs do not extend the lifetime, so the deposit must cover at least
two epochs. Payloads are limited to 2 MiB.

Example:
  blockscope expiration --payload deadbeef --deposit 0xed8 --issued-at 5
  blockscope expiration --payload "" --deposit 3e8`,
	Args: cobra.NoArgs,
	RunE: runExpiration,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	expirationCmd.Flags().StringVar(&expirationPayload, "payload", "", "payload as hex")
	expirationCmd.Flags().StringVar(&expirationDeposit, "deposit", "", "deposit as hex (required)")
	expirationCmd.Flags().StringVar(&expirationIssuedAt, "issued-at", "0", "epoch the data store was issued at, in decimal")
	_ = expirationCmd.MarkFlagRequired("deposit")
	rootCmd.AddCommand(expirationCmd)
}

func runExpiration(_ *cobra.Command, _ []string) error {
	issuedAt, ok := new(big.Int).SetString(strings.TrimSpace(expirationIssuedAt), 10)
	if !ok || issuedAt.Sign() < 0 {
		return scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
			"issued_at": expirationIssuedAt,
			"reason":    "must be a non-negative decimal integer",
		})
	}

	exp, err := datastore.ComputeExpirationHex(expirationPayload, expirationDeposit, issuedAt)
	if err != nil {
		return err
	}

	if formatter.IsJSON() {
		return formatter.Print(exp)
	}
	return formatter.KeyValues([][2]string{
		{"data_size", strconv.Itoa(exp.DataSize)},
		{"cost_per_epoch", exp.CostPerEpoch.String()},
		{"deposit", exp.Deposit.String()},
		{"epochs_paid", exp.Epochs.String()},
		{"issued_at", exp.IssuedAt.String()},
		{"expires_at", exp.ExpiresAt.String()},
	})
}
