package cli

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/chain"
	"github.com/mrz1836/chaincache/internal/config"
	"github.com/mrz1836/chaincache/internal/metrics"
	"github.com/mrz1836/chaincache/internal/output"
	"github.com/mrz1836/chaincache/internal/provider"
	"github.com/mrz1836/chaincache/internal/remote"
	"github.com/mrz1836/chaincache/internal/store"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *zap.Logger
	Formatter *output.Formatter
	Metrics   *metrics.Metrics
}

// NewCommandContext creates a context with the given dependencies and a
// private metrics registry.
func NewCommandContext(
	cfg *config.Config,
	logger *zap.Logger,
	formatter *output.Formatter,
) *CommandContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
		Metrics:   metrics.MustNew(prometheus.NewRegistry()),
	}
}

// StoreOptions translates the cache settings.
func (c *CommandContext) StoreOptions() *store.Options {
	return &store.Options{
		Backend:  store.BackendKind(c.Config.Cache.Backend),
		Format:   store.Format(c.Config.Cache.Format),
		MemoSize: c.Config.Cache.MemoSize,
		Logger:   c.Logger,
	}
}

// RemoteOptions translates the network settings.
func (c *CommandContext) RemoteOptions() *remote.Options {
	n := c.Config.Network
	return &remote.Options{
		HTTPClient: &http.Client{Timeout: n.RequestTimeout},
		Retry: &chain.RetryConfig{
			MaxAttempts: n.MaxAttempts,
			BaseDelay:   n.BaseDelay,
			MaxDelay:    n.MaxDelay,
		},
		RateLimiter: chain.NewRateLimiter(n.RateLimit, n.Burst),
		Logger:      c.Logger,
		Metrics:     c.Metrics,
	}
}

// OpenProvider validates the configuration and builds the cached provider.
func (c *CommandContext) OpenProvider() (*provider.CachedProvider, error) {
	if err := c.Config.Validate(); err != nil {
		return nil, err
	}
	path, err := c.Config.CachePath()
	if err != nil {
		return nil, err
	}
	return provider.New(path, c.Config.Network.RPC, c.Config.Network.Beacon, &provider.Options{
		Logger:  c.Logger,
		Metrics: c.Metrics,
		Store:   c.StoreOptions(),
		Remote:  c.RemoteOptions(),
	})
}
