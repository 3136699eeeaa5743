package domain

import (
	"context"
	"time"
)

// Cache is the result-cache interface. Implementations: local LRU
// (Community), Redis (Pro), or a two-phase combination. Keys are scoped by
// a namespace, conventionally the engine name; computed results are cached
// under a digest of (request, config revision) so a config replace
// naturally invalidates stale entries.
type Cache interface {
	// Get retrieves a value. Returns nil, nil on a miss.
	Get(ctx context.Context, namespace string, key string) ([]byte, error)

	// Set stores a value with expiration.
	Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, namespace string, key string) error

	// IncrementCounter atomically increments a windowed counter and returns
	// the new value. Used for per-engine compute-rate accounting.
	IncrementCounter(ctx context.Context, namespace string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     int // seconds

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // if true, check local first, then Redis
}
