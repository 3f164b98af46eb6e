package config

// DefaultNodeURL is the node RPC endpoint used when nothing is configured.
const DefaultNodeURL = "http://localhost:8888"

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.blockscope",
		Node: NodeConfig{
			URL:            DefaultNodeURL,
			TimeoutSeconds: 15,
			RatePerSecond:  10,
			Burst:          20,
			RetryAttempts:  3,
		},
		Monitor: MonitorConfig{
			IntervalSeconds:  5,
			Window:           10,
			FetchConcurrency: 4,
		},
		Explorer: ExplorerConfig{
			DataStorePageSize: 20,
			TxCacheSize:       256,
			BalanceTTLSeconds: 30,
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.blockscope/blockscope.log",
		},
	}
}
