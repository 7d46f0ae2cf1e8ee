// Package keeper is the in-process automation caller: it sweeps every
// registered job on an interval, runs the read-only check phase and
// submits the execution phase for whatever comes back actionable. It
// fills the role an external automation network would otherwise play.
package keeper

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/arbiter"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
)

// DefaultInterval is the sweep interval when none is configured.
const DefaultInterval = 30 * time.Second

// Keeper drives the two-phase engine over every job on a fixed
// interval.
type Keeper struct {
	engine *arbiter.Engine
	jobs   *jobs.Store

	interval    time.Duration
	concurrency int

	// Optional subscription funding: when station is set and the
	// balance drops under minBalance, the keeper tops up by topUpAmount.
	station    domain.StationClient
	minBalance *big.Int
	topUp      *big.Int

	logger *slog.Logger
}

// Option customizes a Keeper.
type Option func(*Keeper)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(k *Keeper) { k.interval = d }
}

// WithConcurrency bounds how many jobs are checked in parallel.
func WithConcurrency(n int) Option {
	return func(k *Keeper) { k.concurrency = n }
}

// WithStation enables opportunistic subscription funding.
func WithStation(station domain.StationClient, minBalance, topUp *big.Int) Option {
	return func(k *Keeper) {
		k.station = station
		k.minBalance = minBalance
		k.topUp = topUp
	}
}

// New creates a Keeper.
func New(engine *arbiter.Engine, jobStore *jobs.Store, logger *slog.Logger, opts ...Option) *Keeper {
	k := &Keeper{
		engine:      engine,
		jobs:        jobStore,
		interval:    DefaultInterval,
		concurrency: 4,
		logger:      logger.With(slog.String("component", "keeper")),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run sweeps until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.Info("keeper starting",
		slog.Duration("interval", k.interval),
		slog.Int("concurrency", k.concurrency),
	)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopping")
			return ctx.Err()
		case <-ticker.C:
			k.Sweep(ctx)
		}
	}
}

// Sweep runs one check/perform pass over every job. Per-job failures
// are logged and never abort the sweep; at most one execution per job
// per sweep.
func (k *Keeper) Sweep(ctx context.Context) {
	n := k.jobs.Len()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.concurrency)
	for i := 0; i < n; i++ {
		jobIndex := uint64(i)
		g.Go(func() error {
			k.runJob(gctx, jobIndex)
			return nil
		})
	}
	_ = g.Wait()

	if k.station != nil {
		k.checkStation(ctx)
	}
}

func (k *Keeper) runJob(ctx context.Context, jobIndex uint64) {
	logger := k.logger.With(slog.Uint64("job", jobIndex))

	shouldAct, performData, err := k.engine.CheckJob(ctx, jobIndex)
	if err != nil {
		// The job may have been swapped out mid-sweep.
		if !errors.Is(err, domain.ErrJobNotFound) {
			logger.Error("check failed", slog.String("error", err.Error()))
		}
		return
	}
	if !shouldAct {
		return
	}

	rec, err := k.engine.PerformUpkeep(ctx, performData)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoLongerProfitable),
			errors.Is(err, domain.ErrLockHeld),
			errors.Is(err, domain.ErrJobInactive),
			errors.Is(err, domain.ErrJobNotFound),
			errors.Is(err, domain.ErrStalePayload):
			logger.Info("execution skipped", slog.String("reason", err.Error()))
		default:
			logger.Error("execution failed", slog.String("error", err.Error()))
		}
		return
	}

	logger.Info("rebalance executed",
		slog.String("id", rec.ID),
		slog.String("pair", rec.PairAddress.Hex()),
		slog.String("pool", rec.PoolAddr.Hex()),
		slog.String("amount_in", rec.AmountIn.String()),
		slog.String("amount_out", rec.AmountOut.String()),
		slog.String("profit", rec.Profit.String()),
	)
}

// checkStation tops up the automation subscription when its balance
// drops under the floor.
func (k *Keeper) checkStation(ctx context.Context) {
	balance, err := k.station.SubscriptionBalance(ctx)
	if err != nil {
		k.logger.Error("station balance check failed", slog.String("error", err.Error()))
		return
	}
	if balance.Cmp(k.minBalance) >= 0 {
		return
	}

	k.logger.Info("station balance under floor, topping up",
		slog.String("balance", balance.String()),
		slog.String("floor", k.minBalance.String()),
		slog.String("top_up", k.topUp.String()),
	)
	if err := k.station.TopUp(ctx, k.topUp); err != nil {
		k.logger.Error("station top-up failed", slog.String("error", err.Error()))
	}
}
