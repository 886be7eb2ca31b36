package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/chaincache/internal/chain"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(10, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("test"), "should allow request %d in burst", i)
	}
	assert.False(t, rl.Allow("test"), "should deny request after burst exhausted")
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "test"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "test"))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_SeparateEndpoints(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(10, 2)

	assert.True(t, rl.Allow("endpoint1"))
	assert.True(t, rl.Allow("endpoint1"))
	assert.False(t, rl.Allow("endpoint1"))

	assert.True(t, rl.Allow("endpoint2"))
	assert.True(t, rl.Allow("endpoint2"))
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(1, 1)

	require.NoError(t, rl.Wait(context.Background(), "test"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, rl.Wait(ctx, "test"))
}

func TestEndpointKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      string
		expected string
	}{
		{"https://rpc.example.com/v1/key", "rpc.example.com"},
		{"http://127.0.0.1:8545", "127.0.0.1:8545"},
		{"not a url", "not a url"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, chain.EndpointKey(tt.raw))
		})
	}
}
