package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventhub/pkg/ratelimiter"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		cfg := ratelimiter.Config{Base: 10, Burst: 5, Rate: 10}
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, 15, cfg.Capacity())
	})

	t.Run("burst only is valid", func(t *testing.T) {
		cfg := ratelimiter.Config{Base: 0, Burst: 1, Rate: 0.5}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero capacity", func(t *testing.T) {
		cfg := ratelimiter.Config{Base: 0, Burst: 0, Rate: 1}
		assert.ErrorIs(t, cfg.Validate(), ratelimiter.ErrInvalidConfig)
	})

	t.Run("negative base", func(t *testing.T) {
		cfg := ratelimiter.Config{Base: -1, Burst: 5, Rate: 1}
		assert.ErrorIs(t, cfg.Validate(), ratelimiter.ErrInvalidConfig)
	})

	t.Run("zero rate", func(t *testing.T) {
		cfg := ratelimiter.Config{Base: 10, Burst: 0, Rate: 0}
		assert.ErrorIs(t, cfg.Validate(), ratelimiter.ErrInvalidConfig)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	def := ratelimiter.Config{Base: 10, Burst: 5, Rate: 10}

	t.Run("nil store", func(t *testing.T) {
		_, err := ratelimiter.New(nil, def)
		assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
	})

	t.Run("invalid default config", func(t *testing.T) {
		_, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{})
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("invalid kind config", func(t *testing.T) {
		_, err := ratelimiter.New(ratelimiter.NewMemoryStore(), def,
			ratelimiter.WithKind("broadcast", ratelimiter.Config{Base: 5, Burst: 0, Rate: -1}),
		)
		require.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "broadcast")
	})

	t.Run("kind overrides default", func(t *testing.T) {
		broadcast := ratelimiter.Config{Base: 2, Burst: 1, Rate: 1}
		limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), def,
			ratelimiter.WithKind("broadcast", broadcast),
		)
		require.NoError(t, err)

		assert.Equal(t, broadcast, limiter.ConfigFor("broadcast"))
		assert.Equal(t, def, limiter.ConfigFor("subscribe"))
	})
}

func TestLimiter_Check(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("uses kind config for registered kinds", func(t *testing.T) {
		limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(),
			ratelimiter.Config{Base: 100, Burst: 0, Rate: 100},
			ratelimiter.WithKind("broadcast", ratelimiter.Config{Base: 2, Burst: 0, Rate: 0.1}),
		)
		require.NoError(t, err)

		key := "user:1"
		for i := 0; i < 2; i++ {
			result, err := limiter.Check(ctx, key, "broadcast")
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		}

		result, err := limiter.Check(ctx, key, "broadcast")
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		// The generous default still applies to other kinds.
		result, err = limiter.Check(ctx, key, "subscribe")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("keys are isolated", func(t *testing.T) {
		limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(),
			ratelimiter.Config{Base: 1, Burst: 0, Rate: 0.1},
		)
		require.NoError(t, err)

		result, err := limiter.Check(ctx, "user:a", "ping")
		require.NoError(t, err)
		require.True(t, result.Allowed)

		result, err = limiter.Check(ctx, "user:a", "ping")
		require.NoError(t, err)
		require.False(t, result.Allowed)

		result, err = limiter.Check(ctx, "user:b", "ping")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("denied result reports retry hint", func(t *testing.T) {
		limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(),
			ratelimiter.Config{Base: 1, Burst: 0, Rate: 2},
		)
		require.NoError(t, err)

		_, err = limiter.Check(ctx, "user:c", "ping")
		require.NoError(t, err)

		result, err := limiter.Check(ctx, "user:c", "ping")
		require.NoError(t, err)
		require.False(t, result.Allowed)
		assert.Positive(t, result.RetryAfter)
		assert.LessOrEqual(t, result.RetryAfter, 500*time.Millisecond)
	})
}

func TestLimiter_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(),
		ratelimiter.Config{Base: 1, Burst: 0, Rate: 0.1},
	)
	require.NoError(t, err)

	key := "conn:abc"
	result, err := limiter.Check(ctx, key, "ping")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, key, "ping")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	result, err = limiter.Check(ctx, key, "ping")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
