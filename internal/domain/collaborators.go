package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PairClient exposes the managed liquidity pair. Reserve mutation is
// gated on-chain by the pair-manager capability: only the designated
// manager may move reserves, and the designation is a mutually
// exclusive assignment rather than a lock acquired per call.
type PairClient interface {
	Token0(ctx context.Context, pair common.Address) (common.Address, error)
	Token1(ctx context.Context, pair common.Address) (common.Address, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Reserves(ctx context.Context, pair common.Address) (reserve0, reserve1 *big.Int, err error)
	Manager(ctx context.Context, pair common.Address) (common.Address, error)
}

// FeedReader reads one oracle price feed (Chainlink aggregator shape).
type FeedReader interface {
	LatestPrice(ctx context.Context, feed common.Address) (price *big.Int, updatedAt time.Time, err error)
	FeedDecimals(ctx context.Context, feed common.Address) (uint8, error)
}

// QuoteRequest carries everything a venue quoter needs to price the
// corrective trade. Venue-specific parameters (fee tier, tick spacing)
// travel in Pool.
type QuoteRequest struct {
	Pool     PoolConfig
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
}

// PoolQuoter prices a trade against one venue type. Implementations are
// registered per PoolType and dispatched through the quoter registry.
type PoolQuoter interface {
	Quote(ctx context.Context, req QuoteRequest) (amountOut *big.Int, err error)
}

// SwapParams carries everything a router needs to execute the trade.
type SwapParams struct {
	Pool         PoolConfig
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Recipient    common.Address
	Deadline     time.Time
}

// SwapRouter executes a trade against one venue. A failed or
// under-output swap must leave no partial state behind.
type SwapRouter interface {
	Swap(ctx context.Context, params SwapParams) (amountOut *big.Int, err error)
}

// RebalanceOrder is the fully resolved corrective trade handed to the
// trade executor: pull AmountIn of TokenIn from the pair, swap it on
// the venue through Router, settle AmountOwed of TokenOut back into the
// pair, and route the surplus to ProfitTo.
type RebalanceOrder struct {
	Pair       common.Address
	Pool       PoolConfig
	Router     SwapRouter
	TokenIn    common.Address
	TokenOut   common.Address
	AmountIn   *big.Int
	AmountOwed *big.Int
	ProfitTo   common.Address
	Deadline   time.Time
}

// RebalanceResult reports the realized amounts of an executed order.
type RebalanceResult struct {
	AmountOut *big.Int
	Profit    *big.Int
}

// TradeExecutor performs the whole corrective trade as one atomic
// action. Pulling reserves requires the pair-manager capability; a
// venue revert or an output below AmountOwed must leave the pair and
// every balance exactly as before the call.
type TradeExecutor interface {
	ExecuteRebalance(ctx context.Context, order RebalanceOrder) (RebalanceResult, error)
}

// StationClient is the interface boundary of the external automation
// funding subsystem: simple balance/threshold bookkeeping consumed
// opportunistically by the keeper, never by the decision core.
type StationClient interface {
	SubscriptionBalance(ctx context.Context) (*big.Int, error)
	TopUp(ctx context.Context, amount *big.Int) error
}
