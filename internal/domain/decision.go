package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Direction is the side of the corrective trade: which pair token is
// pulled and sold on the external venue.
type Direction uint8

const (
	// DirectionToken0In sells token0 (pulled from the pair) for token1.
	DirectionToken0In Direction = iota
	// DirectionToken1In sells token1 (pulled from the pair) for token0.
	DirectionToken1In
)

func (d Direction) String() string {
	if d == DirectionToken0In {
		return "token0_in"
	}
	return "token1_in"
}

// Decision is the outcome of the read-only check phase. Everything the
// execution phase needs round-trips through the ABI-encoded payload;
// the two phases share no in-memory state.
type Decision struct {
	JobIndex  uint64
	Direction Direction
	PoolIndex uint64
	// AmountIn is the corrective trade size in input-token units.
	AmountIn *big.Int
	// Stamp is the unix second the decision was derived at; the
	// execution phase bounds payload age against it.
	Stamp uint64
}

// Quote is a single venue's answer for the corrective trade.
type Quote struct {
	PoolIndex uint64
	Pool      PoolConfig
	AmountOut *big.Int
}

// RebalanceRecord is the auditable trace of one executed rebalance.
type RebalanceRecord struct {
	ID          string
	JobIndex    uint64
	PairAddress common.Address
	PoolAddr    common.Address
	PoolType    PoolType
	Direction   Direction
	AmountIn    *big.Int
	AmountOut   *big.Int
	Profit      *big.Int
	DevAddress  common.Address
	ExecutedAt  time.Time
}
