package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	t.Parallel()
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"0", "false", "no", "garbage", ""} {
		assert.False(t, parseBool(v), v)
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean URL", "https://node.example.com/rpc", "https://node.example.com/rpc"},
		{"surrounding spaces", "  https://node.example.com/rpc  ", "https://node.example.com/rpc"},
		{"localhost with port", "http://localhost:8888", "http://localhost:8888"},
		{"loopback ip", "http://127.0.0.1:8888", "http://127.0.0.1:8888"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeURL(tc.input))
		})
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(EnvHome, "/tmp/bs-home")
	t.Setenv(EnvNodeURL, " http://10.0.0.5:8888 ")
	t.Setenv(EnvOutputFormat, "JSON")
	t.Setenv(EnvVerbose, "yes")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvMonitorWindow, "42")
	t.Setenv(EnvMetricsListen, " :9100 ")
	t.Setenv(EnvNoColor, "")

	cfg := Defaults()
	ApplyEnvironment(cfg)

	assert.Equal(t, "/tmp/bs-home", cfg.Home)
	assert.Equal(t, "http://10.0.0.5:8888", cfg.Node.URL)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Output.Verbose)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 42, cfg.Monitor.Window)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, "never", cfg.Output.Color)
}

func TestApplyEnvironment_InvalidWindowIgnored(t *testing.T) {
	for _, v := range []string{"0", "-3", "ten"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv(EnvMonitorWindow, v)
			cfg := Defaults()
			ApplyEnvironment(cfg)
			assert.Equal(t, 10, cfg.Monitor.Window)
		})
	}
}
