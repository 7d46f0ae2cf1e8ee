package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

var (
	governor = common.HexToAddress("0x0000000000000000000000000000000000000001")
	token    = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	feed     = common.HexToAddress("0xAB594600376Ec9fD91F8e885dADF0CE036862dE0")
)

type fakeFeed struct {
	price     *big.Int
	updatedAt time.Time
	decimals  uint8
	reads     int
}

func (f *fakeFeed) LatestPrice(context.Context, common.Address) (*big.Int, time.Time, error) {
	f.reads++
	return f.price, f.updatedAt, nil
}

func (f *fakeFeed) FeedDecimals(context.Context, common.Address) (uint8, error) {
	return f.decimals, nil
}

type memCache struct {
	price     *big.Int
	updatedAt time.Time
	has       bool
	failing   bool
}

func (c *memCache) SetPrice(_ context.Context, _ common.Address, price *big.Int, updatedAt time.Time) error {
	if c.failing {
		return errors.New("cache down")
	}
	c.price, c.updatedAt, c.has = price, updatedAt, true
	return nil
}

func (c *memCache) GetPrice(context.Context, common.Address) (*big.Int, time.Time, error) {
	if c.failing || !c.has {
		return nil, time.Time{}, domain.ErrNotFound
	}
	return c.price, c.updatedAt, nil
}

func setup(t *testing.T, opts ...Option) (*Guard, *fakeFeed, *time.Time) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governance.New(governor, time.Minute, logger)
	reg := registry.New(gov, logger)
	require.NoError(t, reg.SetPriceFeeds(governor, []common.Address{token}, []common.Address{feed}))
	require.NoError(t, reg.SetMaxStaleness(governor, time.Hour))

	now := time.Unix(1_700_000_000, 0)
	reader := &fakeFeed{price: big.NewInt(85_000_000), updatedAt: now, decimals: 8}
	opts = append(opts, WithClock(func() time.Time { return now }))
	guard := New(reg, reader, logger, opts...)
	return guard, reader, &now
}

func TestGetFreshPrice(t *testing.T) {
	guard, _, _ := setup(t)
	price, err := guard.GetFreshPrice(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(85_000_000), price.Value)
	assert.Equal(t, uint8(8), price.Decimals)
}

func TestUnknownFeed(t *testing.T) {
	guard, _, _ := setup(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	_, err := guard.GetFreshPrice(context.Background(), other)
	require.ErrorIs(t, err, domain.ErrUnknownFeed)
}

func TestStalePrice(t *testing.T) {
	guard, _, now := setup(t)

	// Advance time past maxStaleness without a feed update.
	*now = now.Add(time.Hour + time.Second)
	_, err := guard.GetFreshPrice(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrStalePrice)
}

func TestCacheReadThrough(t *testing.T) {
	cache := &memCache{}
	guard, reader, _ := setup(t, WithCache(cache))

	_, err := guard.GetFreshPrice(context.Background(), token)
	require.NoError(t, err)
	_, err = guard.GetFreshPrice(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.reads, "second read should come from cache")
}

func TestCacheFailureDegradesToFeed(t *testing.T) {
	cache := &memCache{failing: true}
	guard, reader, _ := setup(t, WithCache(cache))

	price, err := guard.GetFreshPrice(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(85_000_000), price.Value)
	assert.Equal(t, 1, reader.reads)
}
