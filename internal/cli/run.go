package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/metrics"
	"github.com/mrz1836/chaincache/internal/output"
	"github.com/mrz1836/chaincache/internal/provider"
)

// fetchFunc runs one query against the provider and returns what to print.
type fetchFunc func(ctx context.Context, p provider.Provider) (view, error)

// runFetch opens the cached provider, runs fetch, prints the result and
// saves the cache unless --no-save was given. Nothing is saved when the
// query fails.
func runFetch(cmd *cobra.Command, fetch fetchFunc) error {
	cc := NewCommandContext(cfg, logger, formatter)
	p, err := cc.OpenProvider()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			cc.Logger.Error("closing cache", zap.Error(closeErr))
		}
	}()

	ctx, cancel := contextWithTimeout(cmd, commandTimeout(cc.Config.Network))
	defer cancel()

	result, err := fetch(ctx, p)
	if showStats {
		defer renderStats(cmd.ErrOrStderr(), cc.Metrics.Snapshot())
	}
	if err != nil {
		return err
	}

	if err := cc.Formatter.Print(result); err != nil {
		return err
	}

	if noSave {
		cc.Logger.Debug("cache not saved", zap.String("reason", "--no-save"))
		return nil
	}
	return p.Save()
}

// renderStats prints per-kind cache counters.
func renderStats(w io.Writer, snap metrics.Snapshot) {
	t := output.NewTable("KIND", "HITS", "MISSES", "REMOTE OK", "REMOTE ERRORS")
	for _, kind := range snap.SortedKinds() {
		k := snap.Kinds[kind]
		t.AddRow(kind, fmt.Sprint(k.Hits), fmt.Sprint(k.Misses), fmt.Sprint(k.RemoteOK), fmt.Sprint(k.RemoteErrors))
	}
	total := snap.Totals()
	t.AddRow("total", fmt.Sprint(total.Hits), fmt.Sprint(total.Misses), fmt.Sprint(total.RemoteOK), fmt.Sprint(total.RemoteErrors))
	_ = t.Render(w)
	_, _ = fmt.Fprintf(w, "hit rate: %.1f%%\n", snap.HitRate())
}
