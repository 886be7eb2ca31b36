package config

import "time"

// DefaultRPCURL is the default execution-layer JSON-RPC endpoint.
// PublicNode requires no API key.
const DefaultRPCURL = "https://ethereum-rpc.publicnode.com"

// Defaults for the network and cache sections.
const (
	DefaultCacheFile      = "cache.json"
	DefaultBackend        = "file"
	DefaultFormat         = "json"
	DefaultMemoSize       = 1024
	DefaultRateLimit      = 10
	DefaultBurst          = 5
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 10 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.chaincache",
		Cache: CacheConfig{
			Path:     DefaultCacheFile,
			Backend:  DefaultBackend,
			Format:   DefaultFormat,
			MemoSize: DefaultMemoSize,
		},
		Network: NetworkConfig{
			RPC:            DefaultRPCURL,
			RateLimit:      DefaultRateLimit,
			Burst:          DefaultBurst,
			MaxAttempts:    DefaultMaxAttempts,
			BaseDelay:      DefaultBaseDelay,
			MaxDelay:       DefaultMaxDelay,
			RequestTimeout: DefaultRequestTimeout,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "",
		},
	}
}
