// Package oracle wraps price feed reads with the freshness check. A
// rebalance must never be decided from a price older than the configured
// tolerance, since an adversary could otherwise manipulate the pair
// against a frozen reference.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

// Price is a fresh oracle observation.
type Price struct {
	Value     *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// Guard resolves a token to its registered feed, reads it, and enforces
// the staleness tolerance.
type Guard struct {
	registry *registry.Registry
	reader   domain.FeedReader
	cache    domain.PriceCache
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes a Guard.
type Option func(*Guard)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithCache wires a short-TTL read-through price cache. Cache errors
// degrade to direct feed reads.
func WithCache(cache domain.PriceCache) Option {
	return func(g *Guard) { g.cache = cache }
}

// New creates a Guard over the registry's feed mappings.
func New(reg *registry.Registry, reader domain.FeedReader, logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		registry: reg,
		reader:   reader,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "oracle")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetFreshPrice returns the latest price for token, failing with
// domain.ErrUnknownFeed when no feed is registered and with
// domain.ErrStalePrice when the last update is older than the
// configured tolerance.
func (g *Guard) GetFreshPrice(ctx context.Context, token common.Address) (Price, error) {
	feed, err := g.registry.PriceFeed(token)
	if err != nil {
		return Price{}, err
	}

	value, updatedAt, err := g.readThrough(ctx, token, feed)
	if err != nil {
		return Price{}, fmt.Errorf("oracle: read feed %s: %w", feed.Hex(), err)
	}

	if age := g.now().Sub(updatedAt); age > g.registry.MaxStaleness() {
		g.logger.Warn("stale price",
			slog.String("token", token.Hex()),
			slog.Duration("age", age),
			slog.Duration("max_staleness", g.registry.MaxStaleness()),
		)
		return Price{}, domain.ErrStalePrice
	}

	decimals, err := g.reader.FeedDecimals(ctx, feed)
	if err != nil {
		return Price{}, fmt.Errorf("oracle: feed decimals %s: %w", feed.Hex(), err)
	}

	return Price{Value: value, Decimals: decimals, UpdatedAt: updatedAt}, nil
}

func (g *Guard) readThrough(ctx context.Context, token, feed common.Address) (*big.Int, time.Time, error) {
	if g.cache != nil {
		if value, updatedAt, err := g.cache.GetPrice(ctx, token); err == nil {
			return value, updatedAt, nil
		}
	}

	value, updatedAt, err := g.reader.LatestPrice(ctx, feed)
	if err != nil {
		return nil, time.Time{}, err
	}

	if g.cache != nil {
		if err := g.cache.SetPrice(ctx, token, value, updatedAt); err != nil {
			g.logger.Debug("price cache write failed", slog.String("error", err.Error()))
		}
	}
	return value, updatedAt, nil
}
