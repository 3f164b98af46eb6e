package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome          = "BLOCKSCOPE_HOME"
	EnvNodeURL       = "BLOCKSCOPE_NODE_URL"
	EnvOutputFormat  = "BLOCKSCOPE_OUTPUT_FORMAT"
	EnvVerbose       = "BLOCKSCOPE_VERBOSE"
	EnvLogLevel      = "BLOCKSCOPE_LOG_LEVEL"
	EnvMonitorWindow = "BLOCKSCOPE_MONITOR_WINDOW"
	EnvMetricsListen = "BLOCKSCOPE_METRICS_LISTEN"
	EnvNoColor       = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvNodeURL); v != "" {
		cfg.Node.URL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvMonitorWindow); v != "" {
		if w, err := strconv.Atoi(v); err == nil && w > 0 {
			cfg.Monitor.Window = w
		}
	}

	if v := os.Getenv(EnvMetricsListen); v != "" {
		cfg.Metrics.Listen = strings.TrimSpace(v)
	}

	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// Node URLs are often pasted from dashboards with stray quotes or spaces.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
