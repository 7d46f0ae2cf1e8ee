// Package arbiter implements the two-phase rebalancing protocol: a
// cheap, read-only decision phase (CheckUpkeep) that detects a
// profitable price correction on a managed pair, and a state-changing
// execution phase (PerformUpkeep) that re-validates and performs the
// trade. The two phases share no in-memory state; everything round-trips
// through the ABI-encoded payload.
package arbiter

import (
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/oracle"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

const (
	// DefaultMaxPayloadAge bounds the gap between decision and
	// execution. Re-validation closes the economic gap; the age bound
	// keeps obviously dead payloads from reaching the venue at all.
	DefaultMaxPayloadAge = 5 * time.Minute

	// DefaultSwapDeadline is how long a submitted swap stays valid.
	DefaultSwapDeadline = 2 * time.Minute

	executionLockTTL = 30 * time.Second
)

// Engine is the arbitrage decision and execution engine.
type Engine struct {
	jobs     *jobs.Store
	registry *registry.Registry
	guard    *oracle.Guard
	pair     domain.PairClient
	executor domain.TradeExecutor

	// self is the identity holding the pair-manager capability.
	self common.Address

	locks   domain.LockManager
	records domain.RebalanceStore
	sink    domain.EventSink

	now           func() time.Time
	maxPayloadAge time.Duration
	swapDeadline  time.Duration
	logger        *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLockManager serializes execution per job across keeper replicas.
func WithLockManager(locks domain.LockManager) Option {
	return func(e *Engine) { e.locks = locks }
}

// WithRebalanceStore persists executed rebalance records.
func WithRebalanceStore(records domain.RebalanceStore) Option {
	return func(e *Engine) { e.records = records }
}

// WithEventSink broadcasts executed rebalances.
func WithEventSink(sink domain.EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMaxPayloadAge overrides the decision-to-execution age bound.
func WithMaxPayloadAge(d time.Duration) Option {
	return func(e *Engine) { e.maxPayloadAge = d }
}

// New creates an Engine. self is the identity expected to hold the
// pair-manager capability at execution time.
func New(
	jobStore *jobs.Store,
	reg *registry.Registry,
	guard *oracle.Guard,
	pair domain.PairClient,
	executor domain.TradeExecutor,
	self common.Address,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		jobs:          jobStore,
		registry:      reg,
		guard:         guard,
		pair:          pair,
		executor:      executor,
		self:          self,
		now:           time.Now,
		maxPayloadAge: DefaultMaxPayloadAge,
		swapDeadline:  DefaultSwapDeadline,
		logger:        logger.With(slog.String("component", "arbiter")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
