// Package ratelimiter provides per-message-kind token bucket rate limiting
// with pluggable storage backends.
//
// Every (key, kind) pair owns an independent bucket, so a single client gets
// a separate budget for each kind of message it sends. Buckets refill
// continuously: tokens accumulate at Rate per second, computed lazily at
// check time, clamped at Base+Burst. A fresh bucket starts full.
//
// # Usage
//
// Basic limiter setup:
//
//	store := ratelimiter.NewMemoryStore()
//
//	limiter, err := ratelimiter.New(store,
//		ratelimiter.Config{Base: 10, Burst: 5, Rate: 10}, // default for unlisted kinds
//		ratelimiter.WithKind("broadcast", ratelimiter.Config{Base: 30, Burst: 10, Rate: 30}),
//		ratelimiter.WithKind("ping", ratelimiter.Config{Base: 60, Burst: 60, Rate: 1}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Checking a message:
//
//	result, err := limiter.Check(ctx, "user:123", "broadcast")
//	if err != nil {
//		log.Printf("rate limiter error: %v", err)
//		return
//	}
//	if !result.Allowed {
//		log.Printf("rate limited, retry after %v", result.RetryAfter)
//		return
//	}
//
// Clearing a client's budgets when its connection closes:
//
//	_ = limiter.Reset(ctx, "conn:"+connID)
//
// # Key selection
//
// Authenticated clients should be keyed by their stable identity so the
// budget follows them across reconnects. Anonymous clients are keyed by
// connection ID, and those keys should be Reset on disconnect.
//
// # Storage Backends
//
// MemoryStore keeps buckets in a mutex-guarded map with background cleanup
// of stale entries; suitable for a single instance. RedisStore runs the
// refill-and-consume step in a Lua script so checks stay atomic across
// multiple instances sharing one Redis.
//
// # Error Handling
//
// The package defines specific error types:
//   - ErrInvalidConfig: invalid bucket parameters
//   - ErrStoreUnavailable: nil or unreachable storage backend
//
// Storage backend errors are propagated as-is for handling by the application.
package ratelimiter
