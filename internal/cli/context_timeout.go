package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/chaincache/internal/config"
)

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}

// commandTimeout bounds one command: every attempt may take the full request
// timeout and wait up to the maximum backoff delay before the next one.
// GetTransaction can issue two remote lookups, hence the factor of two.
func commandTimeout(n config.NetworkConfig) time.Duration {
	attempts := time.Duration(max(n.MaxAttempts, 1))
	return 2 * attempts * (n.RequestTimeout + n.MaxDelay)
}
