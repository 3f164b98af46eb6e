package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/version"
)

// versionCheckTimeout bounds the release lookup.
const versionCheckTimeout = 10 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	versionCheck bool

	// newReleaseClient is replaced in tests.
	newReleaseClient = func() *version.Client { return version.NewClient() }
)

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the blockscope version, commit and build date.

With --check the latest published release is looked up as well.

Example:
  blockscope version
  blockscope version --check -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

// VersionResult is the JSON shape of the version command.
type VersionResult struct {
	version.Build

	Check *version.Check `json:"check,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	res := VersionResult{Build: version.Current()}

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, versionCheckTimeout)
		defer cancel()

		check, err := newReleaseClient().CheckLatest(ctx, res.Version)
		if err != nil {
			return err
		}
		res.Check = check
	}

	if formatter.IsJSON() {
		return formatter.Print(res)
	}

	w := formatter.Writer()
	out(w, "blockscope %s\n", res.Build)
	out(w, "%s %s\n", res.GoVersion, res.Platform)
	if c := res.Check; c != nil {
		if c.Newer {
			out(w, "A newer release is available: %s\n", c.Latest)
			if c.URL != "" {
				out(w, "  %s\n", c.URL)
			}
		} else {
			out(w, "Up to date (latest release: %s)\n", c.Latest)
		}
	}
	return nil
}
