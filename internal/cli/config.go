package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mrz1836/blockscope/internal/config"
	"github.com/mrz1836/blockscope/internal/output"
	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 4

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify blockscope configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.blockscope/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  blockscope config init
  blockscope config init --force --node https://node.example.com`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, after environment and flag overrides.

Example:
  blockscope config show
  blockscope config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its dot-separated path.

Examples:
  blockscope config get node.url
  blockscope config get monitor.window`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its dot-separated path.

The value is validated and the configuration file is updated immediately.

Examples:
  blockscope config set node.url https://node.example.com
  blockscope config set monitor.window 25
  blockscope config set metrics.listen 127.0.0.1:9464`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	enrichParentLong(configCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configKey is one settable configuration path.
type configKey struct {
	path string
	get  func(c *config.Config) string
	set  func(c *config.Config, v string) error
}

//nolint:gochecknoglobals // static key table
var configKeys = []configKey{
	{"home", func(c *config.Config) string { return c.Home }, func(c *config.Config, v string) error { c.Home = v; return nil }},
	{"node.url", func(c *config.Config) string { return c.Node.URL }, func(c *config.Config, v string) error {
		c.Node.URL = config.SanitizeURL(v)
		return nil
	}},
	intKey("node.timeout_seconds", func(c *config.Config) *int { return &c.Node.TimeoutSeconds }),
	{"node.rate_per_second", func(c *config.Config) string {
		return strconv.FormatFloat(c.Node.RatePerSecond, 'f', -1, 64)
	}, func(c *config.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return invalidValue("node.rate_per_second", v, "a number")
		}
		c.Node.RatePerSecond = f
		return nil
	}},
	intKey("node.burst", func(c *config.Config) *int { return &c.Node.Burst }),
	intKey("node.retry_attempts", func(c *config.Config) *int { return &c.Node.RetryAttempts }),
	intKey("monitor.interval_seconds", func(c *config.Config) *int { return &c.Monitor.IntervalSeconds }),
	intKey("monitor.window", func(c *config.Config) *int { return &c.Monitor.Window }),
	intKey("monitor.fetch_concurrency", func(c *config.Config) *int { return &c.Monitor.FetchConcurrency }),
	intKey("explorer.datastore_page_size", func(c *config.Config) *int { return &c.Explorer.DataStorePageSize }),
	intKey("explorer.tx_cache_size", func(c *config.Config) *int { return &c.Explorer.TxCacheSize }),
	intKey("explorer.balance_ttl_seconds", func(c *config.Config) *int { return &c.Explorer.BalanceTTLSeconds }),
	{"metrics.listen", func(c *config.Config) string { return c.Metrics.Listen }, func(c *config.Config, v string) error {
		c.Metrics.Listen = strings.TrimSpace(v)
		return nil
	}},
	enumKey("output.default_format", func(c *config.Config) *string { return &c.Output.DefaultFormat }, "text", "json", "auto"),
	enumKey("output.color", func(c *config.Config) *string { return &c.Output.Color }, "auto", "always", "never"),
	{"output.verbose", func(c *config.Config) string { return strconv.FormatBool(c.Output.Verbose) }, func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalidValue("output.verbose", v, "true or false")
		}
		c.Output.Verbose = b
		return nil
	}},
	enumKey("logging.level", func(c *config.Config) *string { return &c.Logging.Level }, "off", "error", "info", "debug"),
	{"logging.file", func(c *config.Config) string { return c.Logging.File }, func(c *config.Config, v string) error { c.Logging.File = v; return nil }},
}

func intKey(path string, field func(c *config.Config) *int) configKey {
	return configKey{
		path: path,
		get:  func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return invalidValue(path, v, "an integer")
			}
			*field(c) = n
			return nil
		},
	}
}

func enumKey(path string, field func(c *config.Config) *string, valid ...string) configKey {
	return configKey{
		path: path,
		get:  func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			for _, ok := range valid {
				if v == ok {
					*field(c) = v
					return nil
				}
			}
			return invalidValue(path, v, strings.Join(valid, ", "))
		},
	}
}

func invalidValue(path, value, valid string) error {
	return scopeerr.WithDetails(scopeerr.ErrConfigInvalid, map[string]string{
		"key":   path,
		"value": value,
		"valid": valid,
	})
}

// lookupConfigKey finds path in the key table. Unknown paths get the
// closest known path as a suggestion.
func lookupConfigKey(path string) (configKey, error) {
	path = strings.ToLower(strings.TrimSpace(path))
	for _, k := range configKeys {
		if k.path == path {
			return k, nil
		}
	}

	err := scopeerr.WithDetails(scopeerr.ErrUnknownConfigKey, map[string]string{"key": path})
	if s := suggestConfigKey(path); s != "" {
		err = scopeerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	return configKey{}, err
}

func suggestConfigKey(path string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, k := range configKeys {
		if d := levenshtein.ComputeDistance(path, k.path); d < bestDist {
			best, bestDist = k.path, d
		}
	}
	return best
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	k, err := lookupConfigKey(path)
	if err != nil {
		return "", err
	}
	return k.get(c), nil
}

// setConfigValue sets a value in the config using dot notation and
// validates the result.
func setConfigValue(c *config.Config, path, value string) error {
	k, err := lookupConfigKey(path)
	if err != nil {
		return err
	}
	if err := k.set(c, value); err != nil {
		return err
	}
	return c.Validate()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return scopeerr.WithSuggestion(
			scopeerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := defaultsFor(cfg.Home)
	if nodeURL != "" {
		defaultCfg.Node.URL = cfg.Node.URL
	}

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	messenger.Successf("Configuration initialized at %s", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - node.url: Your node RPC endpoint")
	outln(w, "  - monitor.window: Number of recent block headers to keep")
	outln(w, "  - metrics.listen: Address for the Prometheus endpoint (optional)")
	outln(w, "  - logging.level: Log level (off/error/info/debug)")

	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if formatter.IsJSON() {
		values := make(map[string]string, len(configKeys))
		for _, k := range configKeys {
			values[k.path] = k.get(cfg)
		}
		return formatter.Print(values)
	}
	return displayConfigText(formatter.Writer(), cfg)
}

// runConfigGet reads the stored file, so flag and environment overrides of
// this run do not leak into the reported value.
func runConfigGet(cmd *cobra.Command, args []string) error {
	stored, err := config.Load(config.Path(cfg.Home))
	if err != nil {
		stored = defaultsFor(cfg.Home)
	}

	value, err := getConfigValue(stored, args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]

	configPath := config.Path(cfg.Home)
	currentCfg, err := config.Load(configPath)
	if err != nil {
		currentCfg = defaultsFor(cfg.Home)
	}

	if err := setConfigValue(currentCfg, path, value); err != nil {
		return err
	}

	if err := config.Save(currentCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	return output.FormatSuccess(cmd.OutOrStdout(), fmt.Sprintf("Set %s = %s", path, value), formatter.Format())
}

// displayConfigText shows the config grouped by section.
func displayConfigText(w io.Writer, c *config.Config) error {
	outln(w, "Configuration:")
	section := ""
	for _, k := range configKeys {
		head, key, found := strings.Cut(k.path, ".")
		if !found {
			out(w, "\n  %s: %s\n", head, k.get(c))
			continue
		}
		if head != section {
			section = head
			out(w, "\n  %s:\n", head)
		}
		value := k.get(c)
		if value == "" {
			value = "(not configured)"
		}
		out(w, "    %s: %s\n", key, value)
	}
	return nil
}
