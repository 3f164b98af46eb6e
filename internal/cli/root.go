// Package cli implements the blockscope command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/output"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	nodeURL      string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	messenger *output.Messenger
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "blockscope",
	Short: "A terminal block explorer for AliceNet-style nodes",
	Long: `Blockscope follows the chain tip of a node and looks up what is on it.

It keeps a rolling window of recent block headers, resolves mined
transactions, sums value-store balances and lists data stores with their
computed expiration epochs.

Example:
  blockscope monitor --window 10
  blockscope tx 7a3f...e1
  blockscope balance 0x2a7e...91 --curve secp256k1
  blockscope datastores 0x2a7e...91 --pages 2
  blockscope expiration --payload deadbeef --deposit 0xed8 --issued-at 5`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return scopeerr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		// No config file yet: run on defaults rooted at home.
		cfg = defaultsFor(home)
	}

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if nodeURL != "" {
		cfg.Node.URL = config.SanitizeURL(nodeURL)
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		logger = config.NullLogger()
	}

	format, err := output.ParseFormatStrict(cfg.Output.DefaultFormat)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format, cmd.OutOrStdout())
	messenger = output.NewMessenger(cmd.OutOrStdout(), cmd.ErrOrStderr(), formatter.IsJSON())

	return nil
}

// defaultsFor returns the default configuration rooted at home.
func defaultsFor(home string) *config.Config {
	c := config.Defaults()
	c.Home = home
	c.Logging.File = filepath.Join(home, "blockscope.log")
	return c
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "blockscope data directory (default: ~/.blockscope)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "", "node RPC URL (overrides node.url)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
