package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PoolType identifies the AMM dialect of an external liquidity venue.
// The numeric values are part of the governance call surface and must
// not be reordered.
type PoolType uint8

const (
	PoolTypeConstantProduct PoolType = iota // fee-tiered x*y=k pool
	PoolTypeConcentratedV3                  // Uniswap v3 style
	PoolTypeConcentratedAlgebra
	PoolTypeConcentratedKyber
)

// String returns a human-readable venue type name for logs and events.
func (pt PoolType) String() string {
	switch pt {
	case PoolTypeConstantProduct:
		return "constant_product"
	case PoolTypeConcentratedV3:
		return "concentrated_v3"
	case PoolTypeConcentratedAlgebra:
		return "concentrated_algebra"
	case PoolTypeConcentratedKyber:
		return "concentrated_kyber"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(pt))
	}
}

// Valid reports whether pt is one of the four supported venue kinds.
func (pt PoolType) Valid() bool {
	return pt <= PoolTypeConcentratedKyber
}

// PoolConfig describes one candidate external venue of a job. PoolFee is
// interpreted per venue type: a 1e4-scaled retention factor for
// constant-product pools (9970 = 0.3% fee) and a fee tier in hundredths
// of a bip for the concentrated variants (500 = 0.05%).
type PoolConfig struct {
	PoolAddr common.Address `json:"poolAddr"`
	PoolType PoolType       `json:"poolType"`
	PoolFee  uint32         `json:"poolFee"`
}

// ArbiterJob binds one managed pair to a set of candidate venues and the
// risk parameters gating when a rebalance is worth executing.
//
// AdjustmentFactor widens the tolerance band around the oracle price
// (scaled by 1e5: 1000 means the pair price must deviate more than 1%
// before the job is actionable). ReserveToProfitRatio is the maximum
// accepted reserve/profit quotient: a decision only clears when
// profit * ReserveToProfitRatio >= output-side reserve.
type ArbiterJob struct {
	DevAddress           common.Address `json:"devAddress"`
	PairAddress          common.Address `json:"pairAddress"`
	AdjustmentFactor     uint64         `json:"adjustmentFactor"`
	ReserveToProfitRatio uint64         `json:"reserveToProfitRatio"`
	IsActive             bool           `json:"isActive"`
	Pools                []PoolConfig   `json:"pools"`

	// Optional per-job decimal overrides for the pair's two tokens.
	// Zero means "read from the token contract".
	Token0Decimals uint8 `json:"token0Decimals,omitempty"`
	Token1Decimals uint8 `json:"token1Decimals,omitempty"`
}

// AdjustmentFactorDenominator scales ArbiterJob.AdjustmentFactor.
const AdjustmentFactorDenominator = 100_000

// Clone returns a deep copy of the job; the pool list is not shared.
func (j ArbiterJob) Clone() ArbiterJob {
	cp := j
	cp.Pools = make([]PoolConfig, len(j.Pools))
	copy(cp.Pools, j.Pools)
	return cp
}
