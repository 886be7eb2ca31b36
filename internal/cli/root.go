// Package cli implements the chaincache command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/config"
	"github.com/mrz1836/chaincache/internal/output"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// Command group IDs.
const (
	groupQuery   = "query"
	groupCache   = "cache"
	groupUtility = "utility"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	rpcURL       string
	beaconURL    string
	cachePath    string
	noSave       bool
	showStats    bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *zap.Logger
	formatter *output.Formatter
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chaincache",
	Short: "Query Ethereum chain data through a persistent local cache",
	Long: `chaincache answers chain data queries from a local cache and falls back to a
JSON-RPC node (and, for blob data, a beacon node) for anything not cached yet.

Every fetched result is added to the cache, and the cache is written back to
disk after each successful command unless --no-save is given. Cached results
are never expired: only query finalized blocks.`,
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
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(rootCmd.ErrOrStderr(), err, format)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return ccerr.ExitCode(err)
}

// initGlobals loads configuration (file, .env, environment, then flags) and
// initializes the logger and formatter.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	dotenvFiles, err := config.LoadDotEnv(home)
	if err != nil {
		return ccerr.WithCause(ccerr.WithDetails(ccerr.ErrConfigInvalid, map[string]string{"file": ".env"}), err)
	}

	configPath := config.Path(home)
	loaded, err := config.LoadOrDefault(configPath)
	if err != nil {
		return ccerr.WithCause(ccerr.WithDetails(ccerr.ErrConfigInvalid, map[string]string{"file": configPath}), err)
	}
	cfg = loaded
	cfg.Home = home

	config.ApplyEnvironment(cfg)
	applyFlags(cmd)

	logger, err = config.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		logger = zap.NewNop()
	}
	logger.Debug("configuration loaded",
		zap.String("home", cfg.Home),
		zap.String("config", configPath),
		zap.Strings("dotenv", dotenvFiles))

	explicitFormat := output.ParseFormat(cfg.Output.DefaultFormat)
	detectedFormat := output.DetectFormat(cmd.OutOrStdout(), explicitFormat)
	formatter = output.NewFormatter(detectedFormat, cmd.OutOrStdout())

	return nil
}

// applyFlags overrides configuration with explicitly set global flags.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		cfg.Output.DefaultFormat = outputFormat
	}
	if flags.Changed("rpc-url") {
		cfg.Network.RPC = config.SanitizeURL(rpcURL)
	}
	if flags.Changed("beacon-url") {
		cfg.Network.Beacon = config.SanitizeURL(beaconURL)
	}
	if flags.Changed("cache") {
		cfg.Cache.Path = cachePath
	}
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupQuery, Title: "Chain Queries:"},
		&cobra.Group{ID: groupCache, Title: "Cache:"},
		&cobra.Group{ID: groupUtility, Title: "Utilities:"},
	)
	rootCmd.SetHelpCommandGroupID(groupUtility)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&homeDir, "home", "", "chaincache data directory (default: ~/.chaincache)")
	pf.StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&rpcURL, "rpc-url", "", "execution-layer JSON-RPC endpoint")
	pf.StringVar(&beaconURL, "beacon-url", "", "beacon API endpoint for blob data")
	pf.StringVar(&cachePath, "cache", "", "cache file (or badger directory); relative paths resolve under --home")
	pf.BoolVar(&noSave, "no-save", false, "do not write fetched results back to the cache")
	pf.BoolVar(&showStats, "stats", false, "print cache hit/miss statistics to stderr")
}
