package arbiter

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// The check and perform payloads are ABI-encoded so they stay
// byte-compatible with generic automation callers: checkData is a
// single uint256 job index, performData is the full decision tuple.
var (
	checkArgs   abi.Arguments
	performArgs abi.Arguments
)

func init() {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	uint8Ty, err := abi.NewType("uint8", "", nil)
	if err != nil {
		panic(err)
	}
	checkArgs = abi.Arguments{
		{Name: "jobIndex", Type: uint256Ty},
	}
	performArgs = abi.Arguments{
		{Name: "jobIndex", Type: uint256Ty},
		{Name: "direction", Type: uint8Ty},
		{Name: "poolIndex", Type: uint256Ty},
		{Name: "amountIn", Type: uint256Ty},
		{Name: "stamp", Type: uint256Ty},
	}
}

// EncodeCheckData encodes a job index as checkUpkeep calldata.
func EncodeCheckData(jobIndex uint64) []byte {
	data, err := checkArgs.Pack(new(big.Int).SetUint64(jobIndex))
	if err != nil {
		// Packing a uint256 cannot fail.
		panic(err)
	}
	return data
}

// DecodeCheckData extracts the job index from checkUpkeep calldata.
func DecodeCheckData(data []byte) (uint64, error) {
	vals, err := checkArgs.Unpack(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	index, ok := vals[0].(*big.Int)
	if !ok || !index.IsUint64() {
		return 0, domain.ErrBadPayload
	}
	return index.Uint64(), nil
}

// EncodeDecision packs a decision into the opaque perform payload.
func EncodeDecision(d domain.Decision) ([]byte, error) {
	data, err := performArgs.Pack(
		new(big.Int).SetUint64(d.JobIndex),
		uint8(d.Direction),
		new(big.Int).SetUint64(d.PoolIndex),
		d.AmountIn,
		new(big.Int).SetUint64(d.Stamp),
	)
	if err != nil {
		return nil, fmt.Errorf("arbiter: encode decision: %w", err)
	}
	return data, nil
}

// DecodeDecision unpacks a perform payload. The payload may be stale or
// adversarially resubmitted; only its shape is validated here, the
// economics are re-derived at execution time.
func DecodeDecision(data []byte) (domain.Decision, error) {
	vals, err := performArgs.Unpack(data)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}

	jobIndex, ok0 := vals[0].(*big.Int)
	direction, ok1 := vals[1].(uint8)
	poolIndex, ok2 := vals[2].(*big.Int)
	amountIn, ok3 := vals[3].(*big.Int)
	stamp, ok4 := vals[4].(*big.Int)
	if !ok0 || !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.Decision{}, domain.ErrBadPayload
	}
	if direction > uint8(domain.DirectionToken1In) {
		return domain.Decision{}, domain.ErrBadPayload
	}
	if !jobIndex.IsUint64() || !poolIndex.IsUint64() || !stamp.IsUint64() {
		return domain.Decision{}, domain.ErrBadPayload
	}
	if amountIn.Sign() <= 0 {
		return domain.Decision{}, domain.ErrBadPayload
	}

	return domain.Decision{
		JobIndex:  jobIndex.Uint64(),
		Direction: domain.Direction(direction),
		PoolIndex: poolIndex.Uint64(),
		AmountIn:  amountIn,
		Stamp:     stamp.Uint64(),
	}, nil
}
