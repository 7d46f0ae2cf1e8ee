package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// Event type identifiers used for filtering.
const (
	EventRebalanceExecuted = "rebalance_executed"
	EventGovernanceChanged = "governance_changed"
)

const sendTimeout = 15 * time.Second

// Events adapts a Notifier to domain.EventSink. Deliveries happen on a
// background goroutine so event emission never blocks the engine.
type Events struct {
	notifier *Notifier
}

// NewEvents wraps the given Notifier as an event sink.
func NewEvents(n *Notifier) *Events {
	return &Events{notifier: n}
}

// RebalanceExecuted notifies operators of a completed rebalance.
func (e *Events) RebalanceExecuted(rec domain.RebalanceRecord) {
	message := fmt.Sprintf(
		"Pair: %s\nPool: %s (%s)\nDirection: %s\nAmount in: %s\nAmount out: %s\nProfit: %s",
		rec.PairAddress.Hex(),
		rec.PoolAddr.Hex(),
		rec.PoolType,
		rec.Direction,
		rec.AmountIn,
		rec.AmountOut,
		rec.Profit,
	)
	e.deliver(EventRebalanceExecuted, "Rebalance executed", message)
}

// GovernanceChanged notifies operators of a completed governance transfer.
func (e *Events) GovernanceChanged(oldGovernor, newGovernor common.Address) {
	message := fmt.Sprintf("Old governor: %s\nNew governor: %s",
		oldGovernor.Hex(), newGovernor.Hex())
	e.deliver(EventGovernanceChanged, "Governance transferred", message)
}

func (e *Events) deliver(event, title, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		// Sender failures are already logged by the notifier.
		_ = e.notifier.Notify(ctx, event, title, message)
	}()
}

// Compile-time interface check.
var _ domain.EventSink = (*Events)(nil)
