package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// evaluation is the re-derivable view of a job's current state: reserves
// and prices normalized to 1e18, the corrective direction, and the
// trade sized to move the pair back to oracle parity.
type evaluation struct {
	job        domain.ArbiterJob
	token0     common.Address
	token1     common.Address
	actionable bool

	direction domain.Direction
	tokenIn   common.Address
	tokenOut  common.Address
	decIn     uint8
	decOut    uint8

	// amountIn is in raw input-token units; amountOwedN and
	// reserveOutN stay on the normalized scale.
	amountIn    *big.Int
	amountOwedN *big.Int
	reserveOutN *big.Int
}

// CheckUpkeep is the decision phase entry point for automation callers:
// checkData is an ABI-encoded job index, performData the opaque payload
// to submit back when shouldAct is true. It is a pure function of
// current registry, pair, and oracle state and may be called
// arbitrarily often.
func (e *Engine) CheckUpkeep(ctx context.Context, checkData []byte) (shouldAct bool, performData []byte, err error) {
	jobIndex, err := DecodeCheckData(checkData)
	if err != nil {
		return false, nil, err
	}
	return e.CheckJob(ctx, jobIndex)
}

// CheckJob evaluates one job by index. Oracle staleness resolves to "no
// action" rather than an error: staleness is transient and the caller
// is expected to re-poll.
func (e *Engine) CheckJob(ctx context.Context, jobIndex uint64) (bool, []byte, error) {
	job, err := e.jobs.Get(jobIndex)
	if err != nil {
		return false, nil, err
	}
	if !job.IsActive {
		return false, nil, nil
	}

	ev, err := e.evaluate(ctx, job)
	if err != nil {
		if errors.Is(err, domain.ErrStalePrice) {
			e.logger.Debug("skipping job on stale price", slog.Uint64("job", jobIndex))
			return false, nil, nil
		}
		return false, nil, err
	}
	if !ev.actionable {
		return false, nil, nil
	}

	best, err := e.bestQuote(ctx, ev, job.Pools)
	if err != nil {
		return false, nil, err
	}
	if best == nil {
		return false, nil, nil
	}

	profitN, ok := e.clearsProfitGate(ev, best.AmountOut)
	if !ok {
		return false, nil, nil
	}

	decision := domain.Decision{
		JobIndex:  jobIndex,
		Direction: ev.direction,
		PoolIndex: best.PoolIndex,
		AmountIn:  ev.amountIn,
		Stamp:     uint64(e.now().Unix()),
	}
	payload, err := EncodeDecision(decision)
	if err != nil {
		return false, nil, err
	}

	e.logger.Info("rebalance opportunity",
		slog.Uint64("job", jobIndex),
		slog.String("direction", ev.direction.String()),
		slog.String("pool", best.Pool.PoolAddr.Hex()),
		slog.String("amount_in", ev.amountIn.String()),
		slog.String("expected_profit", profitN.String()),
	)
	return true, payload, nil
}

// evaluate reads reserves, decimals, and fresh oracle prices, then
// derives direction and trade size. A deviation inside the tolerance
// band yields actionable=false.
func (e *Engine) evaluate(ctx context.Context, job domain.ArbiterJob) (*evaluation, error) {
	token0, err := e.pair.Token0(ctx, job.PairAddress)
	if err != nil {
		return nil, fmt.Errorf("arbiter: token0: %w", err)
	}
	token1, err := e.pair.Token1(ctx, job.PairAddress)
	if err != nil {
		return nil, fmt.Errorf("arbiter: token1: %w", err)
	}

	price0, err := e.guard.GetFreshPrice(ctx, token0)
	if err != nil {
		return nil, err
	}
	price1, err := e.guard.GetFreshPrice(ctx, token1)
	if err != nil {
		return nil, err
	}

	reserve0, reserve1, err := e.pair.Reserves(ctx, job.PairAddress)
	if err != nil {
		return nil, fmt.Errorf("arbiter: reserves: %w", err)
	}
	dec0, dec1, err := e.tokenDecimals(ctx, job, token0, token1)
	if err != nil {
		return nil, err
	}

	reserve0N := normalize(reserve0, dec0)
	reserve1N := normalize(reserve1, dec1)
	if reserve0N.Sign() == 0 || reserve1N.Sign() == 0 {
		return &evaluation{job: job, token0: token0, token1: token1}, nil
	}

	// Pair-implied price of token0 in token1 vs the oracle-implied one,
	// both on the 1e18 scale.
	pairPrice := mulDiv(reserve1N, oneE18, reserve0N)
	price0N := normalize(price0.Value, price0.Decimals)
	price1N := normalize(price1.Value, price1.Decimals)
	if price1N.Sign() == 0 {
		return nil, fmt.Errorf("arbiter: %w: zero oracle price", domain.ErrBadPayload)
	}
	oraclePrice := mulDiv(price0N, oneE18, price1N)

	ev := &evaluation{job: job, token0: token0, token1: token1}

	// Tolerance band: only a deviation beyond adjustmentFactor is
	// actionable, so feed rounding and noise never trigger a trade.
	diff := new(big.Int).Sub(pairPrice, oraclePrice)
	absDiff := new(big.Int).Abs(diff)
	band := new(big.Int).Mul(oraclePrice, new(big.Int).SetUint64(job.AdjustmentFactor))
	threshold := new(big.Int).Mul(absDiff, big.NewInt(domain.AdjustmentFactorDenominator))
	if threshold.Cmp(band) <= 0 {
		return ev, nil
	}

	// Size the corrective trade to restore oracle parity while holding
	// the pair's constant product: the target reserves are
	// sqrt(K/price) and sqrt(K*price) on the normalized scale.
	k := new(big.Int).Mul(reserve0N, reserve1N)
	target0 := new(big.Int).Sqrt(mulDiv(k, oneE18, oraclePrice))
	target1 := new(big.Int).Sqrt(mulDiv(k, oraclePrice, oneE18))

	ev.actionable = true
	if pairPrice.Cmp(oraclePrice) < 0 {
		// Token0 is priced too cheaply by the pair: pull the surplus
		// token0, sell it externally, settle token1 back.
		ev.direction = domain.DirectionToken0In
		ev.tokenIn, ev.tokenOut = token0, token1
		ev.decIn, ev.decOut = dec0, dec1
		amountInN := new(big.Int).Sub(reserve0N, target0)
		ev.amountIn = denormalize(amountInN, dec0)
		ev.amountOwedN = new(big.Int).Sub(target1, reserve1N)
		ev.reserveOutN = reserve1N
	} else {
		ev.direction = domain.DirectionToken1In
		ev.tokenIn, ev.tokenOut = token1, token0
		ev.decIn, ev.decOut = dec1, dec0
		amountInN := new(big.Int).Sub(reserve1N, target1)
		ev.amountIn = denormalize(amountInN, dec1)
		ev.amountOwedN = new(big.Int).Sub(target0, reserve0N)
		ev.reserveOutN = reserve0N
	}
	if ev.amountIn.Sign() <= 0 || ev.amountOwedN.Sign() <= 0 {
		ev.actionable = false
	}
	return ev, nil
}

// tokenDecimals resolves decimals in precedence order: job override,
// registry override, token contract.
func (e *Engine) tokenDecimals(ctx context.Context, job domain.ArbiterJob, token0, token1 common.Address) (uint8, uint8, error) {
	dec0, dec1 := job.Token0Decimals, job.Token1Decimals
	if dec0 == 0 || dec1 == 0 {
		if override, ok := e.registry.Decimals(job.PairAddress); ok {
			if dec0 == 0 {
				dec0 = override.Token0
			}
			if dec1 == 0 {
				dec1 = override.Token1
			}
		}
	}
	var err error
	if dec0 == 0 {
		if dec0, err = e.pair.Decimals(ctx, token0); err != nil {
			return 0, 0, fmt.Errorf("arbiter: token0 decimals: %w", err)
		}
	}
	if dec1 == 0 {
		if dec1, err = e.pair.Decimals(ctx, token1); err != nil {
			return 0, 0, fmt.Errorf("arbiter: token1 decimals: %w", err)
		}
	}
	return dec0, dec1, nil
}

// bestQuote fans out the corrective trade to every configured venue and
// picks the highest output; ties break to the earliest pool index so
// equal quotes stay deterministic. Venues without a registered quoter
// are skipped.
func (e *Engine) bestQuote(ctx context.Context, ev *evaluation, pools []domain.PoolConfig) (*domain.Quote, error) {
	if len(pools) == 0 {
		return nil, nil
	}

	quotes := make([]*domain.Quote, len(pools))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, pool := range pools {
		quoter, err := e.registry.Quoter(pool.PoolType)
		if err != nil {
			e.logger.Warn("no quoter for pool, skipping",
				slog.String("pool", pool.PoolAddr.Hex()),
				slog.String("type", pool.PoolType.String()),
			)
			continue
		}
		g.Go(func() error {
			out, err := quoter.Quote(gctx, domain.QuoteRequest{
				Pool:     pool,
				TokenIn:  ev.tokenIn,
				TokenOut: ev.tokenOut,
				AmountIn: ev.amountIn,
			})
			if err != nil {
				// A single venue failing to quote does not kill the
				// decision; the venue is just not a candidate this round.
				e.logger.Warn("quote failed",
					slog.String("pool", pool.PoolAddr.Hex()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			quotes[i] = &domain.Quote{PoolIndex: uint64(i), Pool: pool, AmountOut: out}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *domain.Quote
	for _, q := range quotes {
		if q == nil || q.AmountOut.Sign() <= 0 {
			continue
		}
		if best == nil || q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}
	return best, nil
}

// clearsProfitGate computes the captured profit (venue output minus the
// amount owed back to the pair, normalized) and applies the
// reserve-to-profit threshold. This is the anti-dust gate: acting on a
// profit that is negligible next to the reserves never justifies gas.
func (e *Engine) clearsProfitGate(ev *evaluation, amountOut *big.Int) (*big.Int, bool) {
	outN := normalize(amountOut, ev.decOut)
	profitN := new(big.Int).Sub(outN, ev.amountOwedN)
	if profitN.Sign() <= 0 {
		return nil, false
	}
	if ev.job.ReserveToProfitRatio == 0 {
		return profitN, true
	}
	scaled := new(big.Int).Mul(profitN, new(big.Int).SetUint64(ev.job.ReserveToProfitRatio))
	if scaled.Cmp(ev.reserveOutN) < 0 {
		return nil, false
	}
	return profitN, true
}
