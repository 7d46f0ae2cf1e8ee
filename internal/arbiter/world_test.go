package arbiter

// Test doubles: a constant-product fake pair under manager-capability
// control, fake external venues with per-type fee handling, and a trade
// executor that applies the whole corrective trade atomically or not at
// all, mirroring a transaction revert.

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/oracle"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

var (
	governor    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	devAddr     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	arbiterAddr = common.HexToAddress("0x00000000000000000000000000000000000000ab")

	pairAddr = common.HexToAddress("0x0C9580eC848bd48EBfCB85A4aE1f0354377315fD")
	token0   = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270") // 18 decimals
	token1   = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174") // 6 decimals
	feed0    = common.HexToAddress("0xAB594600376Ec9fD91F8e885dADF0CE036862dE0")
	feed1    = common.HexToAddress("0xfE4A8cc5b5B2366C1B58Bea3858e81843581b2F7")

	poolV2      = common.HexToAddress("0x6e7a5FAFcec6BB1e78bAE2A1F0B612012BF14827")
	poolV3      = common.HexToAddress("0xA374094527e1673A86dE625aa59517c5dE346d32")
	poolAlgebra = common.HexToAddress("0xAE81FAc689A1b4b1e06e7ef4a2ab4CD8aC0A087D")
	poolKyber   = common.HexToAddress("0x50FEEdF7fB2F511112287091819F21eb0F3Ce498")
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func e6(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

// fakePair is the managed pair: constant-product reserves plus the
// mutually exclusive manager designation.
type fakePair struct {
	reserve0 *big.Int
	reserve1 *big.Int
	manager  common.Address
}

func (p *fakePair) Token0(context.Context, common.Address) (common.Address, error) {
	return token0, nil
}

func (p *fakePair) Token1(context.Context, common.Address) (common.Address, error) {
	return token1, nil
}

func (p *fakePair) Decimals(_ context.Context, token common.Address) (uint8, error) {
	if token == token1 {
		return 6, nil
	}
	return 18, nil
}

func (p *fakePair) Reserves(context.Context, common.Address) (*big.Int, *big.Int, error) {
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1), nil
}

func (p *fakePair) Manager(context.Context, common.Address) (common.Address, error) {
	return p.manager, nil
}

// fakeVenue is one external pool quoted and traded with x*y=k plus a
// per-type fee: constant-product fees are a 1e4 retention factor,
// concentrated fees a tier in hundredths of a bip.
type fakeVenue struct {
	reserves map[common.Address]*big.Int
	broken   bool
}

func venueRetention(pool domain.PoolConfig) (num, den *big.Int) {
	if pool.PoolType == domain.PoolTypeConstantProduct {
		return big.NewInt(int64(pool.PoolFee)), big.NewInt(10_000)
	}
	return big.NewInt(1_000_000 - int64(pool.PoolFee)), big.NewInt(1_000_000)
}

func (v *fakeVenue) quoteOut(pool domain.PoolConfig, tokenIn, tokenOut common.Address, amountIn *big.Int) *big.Int {
	num, den := venueRetention(pool)
	inWithFee := new(big.Int).Mul(amountIn, num)
	inWithFee.Quo(inWithFee, den)
	rIn := v.reserves[tokenIn]
	rOut := v.reserves[tokenOut]
	out := new(big.Int).Mul(rOut, inWithFee)
	return out.Quo(out, new(big.Int).Add(rIn, inWithFee))
}

// fakeQuoter serves one venue type, resolving pools from the world map.
type fakeQuoter struct {
	venues map[common.Address]*fakeVenue
}

func (q *fakeQuoter) Quote(_ context.Context, req domain.QuoteRequest) (*big.Int, error) {
	venue, ok := q.venues[req.Pool.PoolAddr]
	if !ok || venue.broken {
		return nil, domain.ErrSwapFailed
	}
	return venue.quoteOut(req.Pool, req.TokenIn, req.TokenOut, req.AmountIn), nil
}

// fakeRouter swaps against the venue, mutating its reserves.
type fakeRouter struct {
	venues map[common.Address]*fakeVenue
}

func (r *fakeRouter) Swap(_ context.Context, params domain.SwapParams) (*big.Int, error) {
	venue, ok := r.venues[params.Pool.PoolAddr]
	if !ok || venue.broken {
		return nil, domain.ErrSwapFailed
	}
	out := venue.quoteOut(params.Pool, params.TokenIn, params.TokenOut, params.AmountIn)
	if out.Cmp(params.MinAmountOut) < 0 {
		return nil, domain.ErrInsufficientOutput
	}
	venue.reserves[params.TokenIn] = new(big.Int).Add(venue.reserves[params.TokenIn], params.AmountIn)
	venue.reserves[params.TokenOut] = new(big.Int).Sub(venue.reserves[params.TokenOut], out)
	return out, nil
}

// fakeExecutor performs the pull/swap/settle sequence with rollback on
// failure, the way the on-chain transaction would revert as a whole.
type fakeExecutor struct {
	pair    *fakePair
	profits map[common.Address]*big.Int
}

func (x *fakeExecutor) ExecuteRebalance(ctx context.Context, order domain.RebalanceOrder) (domain.RebalanceResult, error) {
	if x.pair.manager != arbiterAddr {
		return domain.RebalanceResult{}, domain.ErrNotPairManager
	}

	out, err := order.Router.Swap(ctx, domain.SwapParams{
		Pool:         order.Pool,
		TokenIn:      order.TokenIn,
		TokenOut:     order.TokenOut,
		AmountIn:     order.AmountIn,
		MinAmountOut: order.AmountOwed,
		Recipient:    arbiterAddr,
		Deadline:     order.Deadline,
	})
	if err != nil {
		// Nothing was pulled yet: the whole action is a no-op.
		return domain.RebalanceResult{}, err
	}

	if order.TokenIn == token0 {
		x.pair.reserve0.Sub(x.pair.reserve0, order.AmountIn)
		x.pair.reserve1.Add(x.pair.reserve1, order.AmountOwed)
	} else {
		x.pair.reserve1.Sub(x.pair.reserve1, order.AmountIn)
		x.pair.reserve0.Add(x.pair.reserve0, order.AmountOwed)
	}

	profit := new(big.Int).Sub(out, order.AmountOwed)
	if prev, ok := x.profits[order.ProfitTo]; ok {
		profit = profit.Add(profit, prev)
	}
	x.profits[order.ProfitTo] = profit
	return domain.RebalanceResult{AmountOut: out, Profit: new(big.Int).Sub(out, order.AmountOwed)}, nil
}

type fakeFeed struct {
	prices  map[common.Address]*big.Int
	updated map[common.Address]time.Time
}

func (f *fakeFeed) LatestPrice(_ context.Context, feed common.Address) (*big.Int, time.Time, error) {
	return new(big.Int).Set(f.prices[feed]), f.updated[feed], nil
}

func (f *fakeFeed) FeedDecimals(context.Context, common.Address) (uint8, error) {
	return 8, nil
}

// world bundles the whole fixture.
type world struct {
	gov      *governance.Governance
	registry *registry.Registry
	jobs     *jobs.Store
	guard    *oracle.Guard
	pair     *fakePair
	venues   map[common.Address]*fakeVenue
	feed     *fakeFeed
	executor *fakeExecutor
	engine   *Engine
	now      time.Time
	clock    func() time.Time
}

func (w *world) advance(d time.Duration) { w.now = w.now.Add(d) }

// newWorld builds a fixture at oracle parity: the pair and every venue
// hold token0/token1 at the oracle price of 0.85, with deep venue
// liquidity. Tests skew the pair reserves to create opportunities.
func newWorld(t *testing.T, opts ...Option) *world {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := &world{now: time.Unix(1_700_000_000, 0)}
	w.clock = func() time.Time { return w.now }

	w.gov = governance.New(governor, time.Minute, logger)
	w.registry = registry.New(w.gov, logger)
	w.jobs = jobs.New(w.gov, logger)

	w.feed = &fakeFeed{
		prices: map[common.Address]*big.Int{
			feed0: big.NewInt(85_000_000),  // 0.85 USD, 8 decimals
			feed1: big.NewInt(100_000_000), // 1.00 USD
		},
		updated: map[common.Address]time.Time{
			feed0: w.now,
			feed1: w.now,
		},
	}
	require.NoError(t, w.registry.SetPriceFeeds(governor,
		[]common.Address{token0, token1},
		[]common.Address{feed0, feed1},
	))
	require.NoError(t, w.registry.SetMaxStaleness(governor, time.Hour))

	w.guard = oracle.New(w.registry, w.feed, logger, oracle.WithClock(w.clock))

	w.pair = &fakePair{
		reserve0: e18(1_000_000),
		reserve1: e6(850_000),
		manager:  arbiterAddr,
	}

	w.venues = make(map[common.Address]*fakeVenue)
	for _, addr := range []common.Address{poolV2, poolV3, poolAlgebra, poolKyber} {
		w.venues[addr] = &fakeVenue{reserves: map[common.Address]*big.Int{
			token0: e18(10_000_000),
			token1: e6(8_500_000),
		}}
	}

	quoter := &fakeQuoter{venues: w.venues}
	require.NoError(t, w.registry.SetQuoters(governor,
		[]domain.PoolType{
			domain.PoolTypeConstantProduct,
			domain.PoolTypeConcentratedV3,
			domain.PoolTypeConcentratedAlgebra,
			domain.PoolTypeConcentratedKyber,
		},
		[]domain.PoolQuoter{quoter, quoter, quoter, quoter},
	))

	router := &fakeRouter{venues: w.venues}
	require.NoError(t, w.registry.SetRouters(governor,
		[]common.Address{poolV2, poolV3, poolAlgebra, poolKyber},
		[]domain.SwapRouter{router, router, router, router},
	))

	w.executor = &fakeExecutor{pair: w.pair, profits: make(map[common.Address]*big.Int)}

	opts = append(opts, WithClock(w.clock))
	w.engine = New(w.jobs, w.registry, w.guard, w.pair, w.executor, arbiterAddr, logger, opts...)
	return w
}

// skewToken0Surplus moves the pair off parity by loading it with extra
// token0, holding the constant product, as an external swap would.
func (w *world) skewToken0Surplus(t *testing.T) {
	t.Helper()
	k := new(big.Int).Mul(w.pair.reserve0, w.pair.reserve1)
	w.pair.reserve0 = e18(1_050_000)
	w.pair.reserve1 = new(big.Int).Quo(k, w.pair.reserve0)
}

// skewToken1Surplus is the mirrored skew: extra token1 in the pair.
func (w *world) skewToken1Surplus(t *testing.T) {
	t.Helper()
	k := new(big.Int).Mul(w.pair.reserve0, w.pair.reserve1)
	w.pair.reserve1 = e6(900_000)
	w.pair.reserve0 = new(big.Int).Quo(k, w.pair.reserve1)
}

func allPools() []domain.PoolConfig {
	return []domain.PoolConfig{
		{PoolAddr: poolV2, PoolType: domain.PoolTypeConstantProduct, PoolFee: 9970},
		{PoolAddr: poolV3, PoolType: domain.PoolTypeConcentratedV3, PoolFee: 500},
		{PoolAddr: poolAlgebra, PoolType: domain.PoolTypeConcentratedAlgebra, PoolFee: 350},
		{PoolAddr: poolKyber, PoolType: domain.PoolTypeConcentratedKyber, PoolFee: 1000},
	}
}

func (w *world) pushJob(t *testing.T, pools []domain.PoolConfig) uint64 {
	t.Helper()
	index, err := w.jobs.Push(context.Background(), governor, domain.ArbiterJob{
		DevAddress:           devAddr,
		PairAddress:          pairAddr,
		AdjustmentFactor:     1000,
		ReserveToProfitRatio: 5_000_000,
		IsActive:             true,
		Pools:                pools,
	})
	require.NoError(t, err)
	return index
}
