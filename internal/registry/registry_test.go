package registry

import (
	"context"
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
)

var (
	governor = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000002")
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	feedA    = common.HexToAddress("0x00000000000000000000000000000000000000fa")
)

type nopQuoter struct{}

func (nopQuoter) Quote(context.Context, domain.QuoteRequest) (*big.Int, error) {
	return big.NewInt(0), nil
}

type nopRouter struct{}

func (nopRouter) Swap(context.Context, domain.SwapParams) (*big.Int, error) {
	return big.NewInt(0), nil
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governance.New(governor, time.Minute, logger)
	return New(gov, logger)
}

func TestSetPriceFeedsGovernorOnly(t *testing.T) {
	r := newRegistry(t)

	err := r.SetPriceFeeds(bob, []common.Address{tokenA}, []common.Address{feedA})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	_, err = r.PriceFeed(tokenA)
	require.ErrorIs(t, err, domain.ErrUnknownFeed)

	require.NoError(t, r.SetPriceFeeds(governor, []common.Address{tokenA}, []common.Address{feedA}))
	feed, err := r.PriceFeed(tokenA)
	require.NoError(t, err)
	assert.Equal(t, feedA, feed)
}

func TestSetPriceFeedsLengthMismatch(t *testing.T) {
	r := newRegistry(t)
	err := r.SetPriceFeeds(governor, []common.Address{tokenA, feedA}, []common.Address{feedA})
	require.ErrorIs(t, err, domain.ErrLengthMismatch)
	_, err = r.PriceFeed(tokenA)
	require.ErrorIs(t, err, domain.ErrUnknownFeed)
}

func TestSetPriceFeedsOverwrites(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.SetPriceFeeds(governor, []common.Address{tokenA}, []common.Address{feedA}))
	require.NoError(t, r.SetPriceFeeds(governor, []common.Address{tokenA}, []common.Address{bob}))
	feed, err := r.PriceFeed(tokenA)
	require.NoError(t, err)
	assert.Equal(t, bob, feed)
}

func TestSetQuotersAndRouters(t *testing.T) {
	r := newRegistry(t)

	err := r.SetQuoters(bob, []domain.PoolType{domain.PoolTypeConstantProduct}, []domain.PoolQuoter{nopQuoter{}})
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	require.NoError(t, r.SetQuoters(governor,
		[]domain.PoolType{domain.PoolTypeConstantProduct, domain.PoolTypeConcentratedV3},
		[]domain.PoolQuoter{nopQuoter{}, nopQuoter{}},
	))
	_, err = r.Quoter(domain.PoolTypeConstantProduct)
	require.NoError(t, err)
	_, err = r.Quoter(domain.PoolTypeConcentratedKyber)
	require.ErrorIs(t, err, domain.ErrUnknownQuoter)

	pool := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	require.NoError(t, r.SetRouters(governor, []common.Address{pool}, []domain.SwapRouter{nopRouter{}}))
	_, err = r.Router(pool)
	require.NoError(t, err)
	_, err = r.Router(bob)
	require.ErrorIs(t, err, domain.ErrUnknownRouter)
}

func TestSetMaxStaleness(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, DefaultMaxStaleness, r.MaxStaleness())

	require.ErrorIs(t, r.SetMaxStaleness(bob, time.Hour), domain.ErrNotAuthorized)
	require.NoError(t, r.SetMaxStaleness(governor, time.Hour))
	assert.Equal(t, time.Hour, r.MaxStaleness())
}

func TestSetTokensDecimals(t *testing.T) {
	r := newRegistry(t)
	pair := common.HexToAddress("0x00000000000000000000000000000000000000dd")

	_, ok := r.Decimals(pair)
	assert.False(t, ok)

	require.NoError(t, r.SetTokensDecimals(governor, pair, 18, 6))
	dec, ok := r.Decimals(pair)
	require.True(t, ok)
	assert.Equal(t, uint8(18), dec.Token0)
	assert.Equal(t, uint8(6), dec.Token1)
}
