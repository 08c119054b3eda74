package domain

import (
	"context"
	"time"
)

// MarketCache provides fast lookups of market records by address.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, address string) (Market, error)
	Invalidate(ctx context.Context, address string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of step events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter admits or rejects requests per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
