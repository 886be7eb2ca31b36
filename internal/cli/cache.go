package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/output"
	"github.com/mrz1836/chaincache/internal/store"
)

// cacheCmd groups commands that inspect the local cache.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var cacheCmd = &cobra.Command{
	Use:     "cache",
	Short:   "Inspect the local cache",
	Long:    `Inspect the local cache without touching the network.`,
	GroupID: groupCache,
}

// cacheStatsCmd reports per-kind entry counts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many entries of each kind are cached",
	Long: `Show the number of cached entries per query kind. A missing cache file is
reported as an empty cache.`,
	Example: `  chaincache cache stats
  chaincache cache stats --cache blocks.cbor -o json`,
	Args: cobra.NoArgs,
	RunE: runCacheStats,
}

// cachePathCmd prints the resolved cache location.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var cachePathCmd = &cobra.Command{
	Use:     "path",
	Short:   "Print the cache location",
	Long:    `Print the absolute location of the cache file (or badger directory).`,
	Example: `  chaincache cache path`,
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := cfg.CachePath()
		if err != nil {
			return err
		}
		if formatter.IsJSON() {
			return formatter.Print(map[string]string{"path": path})
		}
		return formatter.Print(path)
	},
}

// cacheStats is the JSON form of cache stats.
type cacheStats struct {
	Path    string         `json:"path"`
	Backend string         `json:"backend"`
	Format  string         `json:"format"`
	Entries map[string]int `json:"entries"`
	Total   int            `json:"total"`
}

// RenderText implements output.TextRenderer.
func (s cacheStats) RenderText(w io.Writer) error {
	_ = output.KeyValues(w,
		[2]string{"Path", s.Path},
		[2]string{"Backend", s.Backend},
		[2]string{"Format", s.Format},
	)
	_, _ = fmt.Fprintln(w)

	t := output.NewTable("KIND", "ENTRIES")
	for _, kind := range chaindata.Kinds() {
		t.AddRow(string(kind), fmt.Sprint(s.Entries[string(kind)]))
	}
	t.AddRow("total", fmt.Sprint(s.Total))
	return t.Render(w)
}

func runCacheStats(_ *cobra.Command, _ []string) error {
	cc := NewCommandContext(cfg, logger, formatter)
	path, err := cfg.CachePath()
	if err != nil {
		return err
	}

	opts := cc.StoreOptions()
	if err := opts.Validate(); err != nil {
		return err
	}
	s, err := store.Load(path, opts)
	switch {
	case errors.Is(err, store.ErrCacheFileNotFound):
		s = store.Empty(path, opts)
	case err != nil:
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			cc.Logger.Error("closing cache", zap.Error(closeErr))
		}
	}()

	stats := cacheStats{
		Path:    s.Path(),
		Backend: cfg.Cache.Backend,
		Format:  cfg.Cache.Format,
		Entries: make(map[string]int),
		Total:   s.Len(),
	}
	for kind, n := range s.Stats() {
		stats.Entries[string(kind)] = n
	}
	return cc.Formatter.Print(stats)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cachePathCmd)
	enrichParentLong(cacheCmd)
	rootCmd.AddCommand(cacheCmd)
}
