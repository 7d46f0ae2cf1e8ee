package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceCache provides short-TTL read-through caching of oracle reads.
// Cache failures must degrade to direct feed reads, never to stale data.
type PriceCache interface {
	SetPrice(ctx context.Context, token common.Address, price *big.Int, updatedAt time.Time) error
	GetPrice(ctx context.Context, token common.Address) (price *big.Int, updatedAt time.Time, err error)
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld
// when another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter tracks request counts per key over a sliding window.
// A failed backend should fail open at the call site.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventSink receives executed-rebalance and governance events for
// broadcast (websocket hub, notifiers). Implementations must not block.
type EventSink interface {
	RebalanceExecuted(rec RebalanceRecord)
	GovernanceChanged(oldGovernor, newGovernor common.Address)
}
