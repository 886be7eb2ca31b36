package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvHome         = "CHAINCACHE_HOME"
	EnvRPCURL       = "CHAINCACHE_RPC_URL"
	EnvBeaconURL    = "CHAINCACHE_BEACON_URL"
	EnvCachePath    = "CHAINCACHE_CACHE_PATH"
	EnvCacheBackend = "CHAINCACHE_CACHE_BACKEND"
	EnvCacheFormat  = "CHAINCACHE_CACHE_FORMAT"
	EnvOutputFormat = "CHAINCACHE_OUTPUT_FORMAT"
	EnvVerbose      = "CHAINCACHE_VERBOSE"
	EnvLogLevel     = "CHAINCACHE_LOG_LEVEL"
	EnvLogFile      = "CHAINCACHE_LOG_FILE"
	EnvRateLimit    = "CHAINCACHE_RATE_LIMIT"
)

const envFileName = ".env"

// LoadDotEnv loads .env files from the working directory and then from home.
// Variables already present in the environment are never overridden, and
// missing files are ignored. It returns the files that were loaded.
func LoadDotEnv(home string) ([]string, error) {
	dirs := []string{"."}
	if home != "" {
		expanded, err := ExpandPath(home)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, expanded)
	}

	var loaded []string
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		path := filepath.Join(dir, envFileName)
		abs, err := filepath.Abs(path)
		if err == nil {
			if seen[abs] {
				continue
			}
			seen[abs] = true
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPCURL); v != "" {
		cfg.Network.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvBeaconURL); v != "" {
		cfg.Network.Beacon = SanitizeURL(v)
	}

	if v := os.Getenv(EnvCachePath); v != "" {
		cfg.Cache.Path = v
	}

	if v := os.Getenv(EnvCacheBackend); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}

	if v := os.Getenv(EnvCacheFormat); v != "" {
		cfg.Cache.Format = strings.ToLower(v)
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

	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}

	// Unparseable rates are ignored rather than zeroing the limiter.
	if v := os.Getenv(EnvRateLimit); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Network.RateLimit = r
		}
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and drops control and invisible characters,
// which commonly sneak into copy-pasted RPC URLs.
func SanitizeURL(url string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.IsSpace(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(url))
}
