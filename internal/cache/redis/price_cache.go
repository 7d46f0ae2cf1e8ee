package redis

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// DefaultPriceTTL bounds how long a feed read is served from cache.
// Kept well below any sane staleness tolerance so the cache can never
// mask a stale feed.
const DefaultPriceTTL = 10 * time.Second

// PriceCache implements domain.PriceCache using Redis hashes. Each
// token's latest oracle read is stored at "price:{token}" with fields
// "value" (decimal string) and "updated" (Unix nanoseconds), expiring
// after the TTL.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. A
// non-positive ttl falls back to DefaultPriceTTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(token common.Address) string {
	return "price:" + token.Hex()
}

// SetPrice stores the latest oracle read for a token.
func (pc *PriceCache) SetPrice(ctx context.Context, token common.Address, price *big.Int, updatedAt time.Time) error {
	key := priceKey(token)
	fields := map[string]interface{}{
		"value":   price.String(),
		"updated": strconv.FormatInt(updatedAt.UnixNano(), 10),
	}
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", token.Hex(), err)
	}
	return nil
}

// GetPrice retrieves the cached oracle read for a token. It returns
// domain.ErrNotFound when the key is missing or expired.
func (pc *PriceCache) GetPrice(ctx context.Context, token common.Address) (*big.Int, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(token)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get price %s: %w", token.Hex(), err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	valueStr, ok := vals["value"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("redis: parse price %s: %q", token.Hex(), valueStr)
	}

	updatedStr, ok := vals["updated"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	updatedNano, err := strconv.ParseInt(updatedStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse updated %s: %w", token.Hex(), err)
	}

	return value, time.Unix(0, updatedNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
