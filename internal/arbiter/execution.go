package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// PerformUpkeep is the execution phase entry point. The payload is
// trust-but-verify: it may be stale or adversarially resubmitted, so
// everything except the chosen direction and venue is re-derived from
// current state before any reserve moves. A payload that no longer
// clears the profitability gate exits cleanly with
// domain.ErrNoLongerProfitable and no mutation.
func (e *Engine) PerformUpkeep(ctx context.Context, performData []byte) (domain.RebalanceRecord, error) {
	decision, err := DecodeDecision(performData)
	if err != nil {
		return domain.RebalanceRecord{}, err
	}

	job, err := e.jobs.Get(decision.JobIndex)
	if err != nil {
		return domain.RebalanceRecord{}, domain.ErrJobNotFound
	}
	if !job.IsActive {
		return domain.RebalanceRecord{}, domain.ErrJobInactive
	}

	if age := e.now().Sub(time.Unix(int64(decision.Stamp), 0)); age > e.maxPayloadAge {
		return domain.RebalanceRecord{}, domain.ErrStalePayload
	}

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, fmt.Sprintf("rebalance:job:%d", decision.JobIndex), executionLockTTL)
		if err != nil {
			return domain.RebalanceRecord{}, err
		}
		defer unlock()
	}

	return e.execute(ctx, decision, job)
}

func (e *Engine) execute(ctx context.Context, decision domain.Decision, job domain.ArbiterJob) (domain.RebalanceRecord, error) {
	// Re-derive the whole decision from current state; the payload's
	// economic conclusion is never trusted. If the deviation healed or
	// flipped direction since decision time, there is nothing to do.
	ev, err := e.evaluate(ctx, job)
	if err != nil {
		return domain.RebalanceRecord{}, err
	}
	if !ev.actionable || ev.direction != decision.Direction {
		return domain.RebalanceRecord{}, domain.ErrNoLongerProfitable
	}

	// The chosen venue is a hint: it must still exist and still clear
	// the profit gate at the freshly derived trade size.
	if decision.PoolIndex >= uint64(len(job.Pools)) {
		return domain.RebalanceRecord{}, domain.ErrNoLongerProfitable
	}
	pool := job.Pools[decision.PoolIndex]
	quoter, err := e.registry.Quoter(pool.PoolType)
	if err != nil {
		return domain.RebalanceRecord{}, err
	}
	amountOut, err := quoter.Quote(ctx, domain.QuoteRequest{
		Pool:     pool,
		TokenIn:  ev.tokenIn,
		TokenOut: ev.tokenOut,
		AmountIn: ev.amountIn,
	})
	if err != nil {
		return domain.RebalanceRecord{}, fmt.Errorf("arbiter: revalidation quote: %w", err)
	}
	if _, ok := e.clearsProfitGate(ev, amountOut); !ok {
		return domain.RebalanceRecord{}, domain.ErrNoLongerProfitable
	}

	// Moving reserves requires the pair-manager capability; losing the
	// designation disables execution without disabling decisions.
	manager, err := e.pair.Manager(ctx, job.PairAddress)
	if err != nil {
		return domain.RebalanceRecord{}, fmt.Errorf("arbiter: pair manager: %w", err)
	}
	if manager != e.self {
		return domain.RebalanceRecord{}, domain.ErrNotPairManager
	}

	router, err := e.registry.Router(pool.PoolAddr)
	if err != nil {
		return domain.RebalanceRecord{}, err
	}

	order := domain.RebalanceOrder{
		Pair:       job.PairAddress,
		Pool:       pool,
		Router:     router,
		TokenIn:    ev.tokenIn,
		TokenOut:   ev.tokenOut,
		AmountIn:   ev.amountIn,
		AmountOwed: denormalize(ev.amountOwedN, ev.decOut),
		ProfitTo:   job.DevAddress,
		Deadline:   e.now().Add(e.swapDeadline),
	}
	result, err := e.executor.ExecuteRebalance(ctx, order)
	if err != nil {
		e.logger.Error("rebalance execution failed",
			slog.Uint64("job", decision.JobIndex),
			slog.String("pool", pool.PoolAddr.Hex()),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrInsufficientOutput) || errors.Is(err, domain.ErrSwapFailed) {
			return domain.RebalanceRecord{}, err
		}
		return domain.RebalanceRecord{}, fmt.Errorf("%w: %v", domain.ErrSwapFailed, err)
	}

	record := domain.RebalanceRecord{
		ID:          uuid.New().String(),
		JobIndex:    decision.JobIndex,
		PairAddress: job.PairAddress,
		PoolAddr:    pool.PoolAddr,
		PoolType:    pool.PoolType,
		Direction:   ev.direction,
		AmountIn:    ev.amountIn,
		AmountOut:   result.AmountOut,
		Profit:      result.Profit,
		DevAddress:  job.DevAddress,
		ExecutedAt:  e.now(),
	}
	if e.records != nil {
		if err := e.records.Insert(ctx, record); err != nil {
			e.logger.Error("rebalance record insert failed", slog.String("error", err.Error()))
		}
	}
	if e.sink != nil {
		e.sink.RebalanceExecuted(record)
	}
	e.logger.Info("rebalance executed",
		slog.Uint64("job", decision.JobIndex),
		slog.String("pair", job.PairAddress.Hex()),
		slog.String("pool", pool.PoolAddr.Hex()),
		slog.String("direction", ev.direction.String()),
		slog.String("amount_in", ev.amountIn.String()),
		slog.String("amount_out", result.AmountOut.String()),
		slog.String("profit", result.Profit.String()),
	)
	return record, nil
}
