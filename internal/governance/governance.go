// Package governance implements the timelocked two-step transfer of the
// privileged governor role. Every mutating surface of the arbiter is
// gated through RequireGovernor.
package governance

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// Governance is a minimal none -> pending -> active state machine
// guarded by elapsed time. The delay gives observers a window to react
// to a governor-key change before it takes effect.
type Governance struct {
	mu              sync.RWMutex
	governor        common.Address
	pendingGovernor common.Address
	requestAt       time.Time
	delay           time.Duration

	now    func() time.Time
	sink   domain.EventSink
	logger *slog.Logger
}

// Option customizes a Governance instance.
type Option func(*Governance)

// WithClock overrides the monotonic clock read, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governance) { g.now = now }
}

// WithEventSink wires an observer for completed transfers.
func WithEventSink(sink domain.EventSink) Option {
	return func(g *Governance) { g.sink = sink }
}

// New creates a Governance with the given initial governor and transfer
// delay.
func New(governor common.Address, delay time.Duration, logger *slog.Logger, opts ...Option) *Governance {
	g := &Governance{
		governor: governor,
		delay:    delay,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "governance")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Governor returns the current governor.
func (g *Governance) Governor() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.governor
}

// PendingGovernor returns the pending governor, or the zero address if
// no transfer has been requested.
func (g *Governance) PendingGovernor() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pendingGovernor
}

// RequireGovernor returns domain.ErrNotAuthorized unless caller is the
// current governor.
func (g *Governance) RequireGovernor(caller common.Address) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if caller != g.governor {
		return domain.ErrNotAuthorized
	}
	return nil
}

// SetPendingGovernor records candidate as the pending governor and
// starts the transfer delay. Only the current governor may call it, and
// the zero address is rejected.
func (g *Governance) SetPendingGovernor(caller, candidate common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.governor {
		return domain.ErrNotAuthorized
	}
	if candidate == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	g.pendingGovernor = candidate
	g.requestAt = g.now()
	g.logger.Info("pending governor set",
		slog.String("candidate", candidate.Hex()),
		slog.Duration("delay", g.delay),
	)
	return nil
}

// TransferGovernance completes a pending transfer once the delay has
// elapsed. It succeeds exactly once per request and clears the pending
// state.
func (g *Governance) TransferGovernance(caller common.Address) error {
	g.mu.Lock()
	if caller != g.governor {
		g.mu.Unlock()
		return domain.ErrNotAuthorized
	}
	if g.pendingGovernor == (common.Address{}) {
		g.mu.Unlock()
		return domain.ErrNoPendingGovernor
	}
	if g.now().Sub(g.requestAt) < g.delay {
		g.mu.Unlock()
		return domain.ErrTooEarly
	}
	old := g.governor
	g.governor = g.pendingGovernor
	g.pendingGovernor = common.Address{}
	g.requestAt = time.Time{}
	next, sink := g.governor, g.sink
	g.mu.Unlock()

	g.logger.Info("governance transferred",
		slog.String("old", old.Hex()),
		slog.String("new", next.Hex()),
	)
	if sink != nil {
		sink.GovernanceChanged(old, next)
	}
	return nil
}
