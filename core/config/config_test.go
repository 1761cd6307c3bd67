package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventhub/core/config"
)

func TestLoad(t *testing.T) {
	t.Run("parses environment variables", func(t *testing.T) {
		type envConfig struct {
			QueueSize    int           `env:"TEST_QUEUE_SIZE" envDefault:"256"`
			PingInterval time.Duration `env:"TEST_PING_INTERVAL" envDefault:"30s"`
		}

		t.Setenv("TEST_QUEUE_SIZE", "512")

		var cfg envConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, 512, cfg.QueueSize)
		assert.Equal(t, 30*time.Second, cfg.PingInterval)
	})

	t.Run("applies defaults when unset", func(t *testing.T) {
		type defaultsConfig struct {
			MaxBuffered int `env:"TEST_MAX_BUFFERED" envDefault:"100"`
		}

		var cfg defaultsConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 100, cfg.MaxBuffered)
	})

	t.Run("fails on missing required variable", func(t *testing.T) {
		type requiredConfig struct {
			Secret string `env:"TEST_ABSENT_SECRET,required"`
		}

		var cfg requiredConfig
		assert.Error(t, config.Load(&cfg))
	})

	t.Run("caches per type", func(t *testing.T) {
		type cachedConfig struct {
			Value string `env:"TEST_CACHED_VALUE" envDefault:"first"`
		}

		t.Setenv("TEST_CACHED_VALUE", "first")
		var first cachedConfig
		require.NoError(t, config.Load(&first))

		// A later change to the environment does not reach the cached type.
		t.Setenv("TEST_CACHED_VALUE", "second")
		var second cachedConfig
		require.NoError(t, config.Load(&second))

		assert.Equal(t, first, second)
	})

	t.Run("nil target", func(t *testing.T) {
		var cfg *struct{}
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilConfig)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		type strictConfig struct {
			Token string `env:"TEST_ABSENT_TOKEN,required"`
		}

		assert.Panics(t, func() {
			var cfg strictConfig
			config.MustLoad(&cfg)
		})
	})

	t.Run("passes through on success", func(t *testing.T) {
		type relaxedConfig struct {
			Name string `env:"TEST_NAME" envDefault:"eventhub"`
		}

		var cfg relaxedConfig
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "eventhub", cfg.Name)
	})
}
