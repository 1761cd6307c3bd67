// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/eventhub/core/config"
//
//	type HubConfig struct {
//		MaxBufferedEvents int           `env:"HUB_MAX_BUFFERED" envDefault:"100"`
//		PingInterval      time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
//		RedisURL          string        `env:"REDIS_URL"`
//	}
//
//	func main() {
//		var cfg HubConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 HubConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 HubConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently:
//
//	type SessionConfig struct {
//		SendQueueSize int `env:"WS_SEND_QUEUE_SIZE" envDefault:"256"`
//	}
//
//	type LimitsConfig struct {
//		DefaultRate float64 `env:"RATE_LIMIT_DEFAULT,required"`
//	}
//
//	// Each type has its own cache entry
//	config.MustLoad(&SessionConfig{})
//	config.MustLoad(&LimitsConfig{})
package config
