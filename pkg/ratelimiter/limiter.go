package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Config describes the token bucket for one message kind. Capacity is
// Base+Burst: Base covers the sustained rate, Burst absorbs short spikes.
// Buckets refill continuously at Rate tokens per second, computed lazily at
// check time; there is no background refill timer.
type Config struct {
	Base  int
	Burst int
	Rate  float64
}

// Capacity returns the bucket ceiling.
func (c Config) Capacity() int {
	return c.Base + c.Burst
}

// Validate checks that the config describes a usable bucket.
func (c Config) Validate() error {
	if c.Base < 0 || c.Burst < 0 || c.Capacity() <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got base=%d burst=%d", ErrInvalidConfig, c.Base, c.Burst)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %v", ErrInvalidConfig, c.Rate)
	}
	return nil
}

// Result reports the outcome of a single check.
type Result struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// Store is the bucket state backend. Consume must be atomic per
// (key, kind) pair; concurrent checks for different keys must not interfere.
type Store interface {
	// Consume refills the bucket lazily and spends one token if available.
	Consume(ctx context.Context, key, kind string, cfg Config) (Result, error)
	// Reset drops all kind buckets for a key.
	Reset(ctx context.Context, key string) error
}

// Limiter applies per-(key, kind) token buckets with a distinct bucket shape
// per message kind and a default for unrecognized kinds.
type Limiter struct {
	store Store
	kinds map[string]Config
	def   Config
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithKind registers a dedicated bucket shape for a message kind.
func WithKind(kind string, cfg Config) LimiterOption {
	return func(l *Limiter) {
		l.kinds[kind] = cfg
	}
}

// New creates a Limiter backed by store. The default config applies to any
// kind without a dedicated one; every registered config is validated.
func New(store Store, def Config, opts ...LimiterOption) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		store: store,
		kinds: make(map[string]Config),
		def:   def,
	}
	for _, opt := range opts {
		opt(l)
	}

	for kind, cfg := range l.kinds {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("kind %q: %w", kind, err)
		}
	}
	return l, nil
}

// Check spends one token from the (key, kind) bucket. A denied result
// carries RetryAfter > 0, the wait until one token has accumulated.
func (l *Limiter) Check(ctx context.Context, key, kind string) (Result, error) {
	return l.store.Consume(ctx, key, kind, l.ConfigFor(kind))
}

// Reset clears every kind bucket for the key. Called when a connection-keyed
// client disconnects.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// ConfigFor returns the bucket shape used for a kind.
func (l *Limiter) ConfigFor(kind string) Config {
	if cfg, ok := l.kinds[kind]; ok {
		return cfg
	}
	return l.def
}
