package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// CalldataBuilder is implemented by routers that can hand their swap to
// the on-chain rebalance helper as an embedded call instead of a
// standalone transaction.
type CalldataBuilder interface {
	Target() common.Address
	SwapCalldata(params domain.SwapParams) ([]byte, error)
}

// Router executes swaps against one deployed venue router. The dialect
// decides which router ABI the parameters are packed with.
type Router struct {
	transactor *Transactor
	target     common.Address
	dialect    domain.PoolType
}

// NewRouter creates a Router bound to the given router contract.
func NewRouter(transactor *Transactor, target common.Address, dialect domain.PoolType) (*Router, error) {
	if !dialect.Valid() {
		return nil, fmt.Errorf("evm: unknown pool type %s", dialect)
	}
	return &Router{transactor: transactor, target: target, dialect: dialect}, nil
}

// Target returns the router contract address.
func (r *Router) Target() common.Address {
	return r.target
}

type v3SwapParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type algebraSwapParams struct {
	TokenIn          common.Address
	TokenOut         common.Address
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	LimitSqrtPrice   *big.Int
}

type kyberSwapParams struct {
	TokenIn      common.Address
	TokenOut     common.Address
	Fee          *big.Int
	Recipient    common.Address
	Deadline     *big.Int
	AmountIn     *big.Int
	MinAmountOut *big.Int
	LimitSqrtP   *big.Int
}

// SwapCalldata packs the venue-specific swap call for params.
func (r *Router) SwapCalldata(params domain.SwapParams) ([]byte, error) {
	deadline := big.NewInt(params.Deadline.Unix())
	fee := big.NewInt(int64(params.Pool.PoolFee))
	noLimit := new(big.Int)

	var (
		contractABI abi.ABI
		method      string
		args        []interface{}
	)
	switch r.dialect {
	case domain.PoolTypeConstantProduct:
		contractABI = parsedRouterV2
		method = "swapExactTokensForTokens"
		args = []interface{}{
			params.AmountIn,
			params.MinAmountOut,
			[]common.Address{params.TokenIn, params.TokenOut},
			params.Recipient,
			deadline,
		}
	case domain.PoolTypeConcentratedV3:
		contractABI = parsedRouterV3
		method = "exactInputSingle"
		args = []interface{}{v3SwapParams{
			TokenIn:           params.TokenIn,
			TokenOut:          params.TokenOut,
			Fee:               fee,
			Recipient:         params.Recipient,
			Deadline:          deadline,
			AmountIn:          params.AmountIn,
			AmountOutMinimum:  params.MinAmountOut,
			SqrtPriceLimitX96: noLimit,
		}}
	case domain.PoolTypeConcentratedAlgebra:
		contractABI = parsedRouterAlgebra
		method = "exactInputSingle"
		args = []interface{}{algebraSwapParams{
			TokenIn:          params.TokenIn,
			TokenOut:         params.TokenOut,
			Recipient:        params.Recipient,
			Deadline:         deadline,
			AmountIn:         params.AmountIn,
			AmountOutMinimum: params.MinAmountOut,
			LimitSqrtPrice:   noLimit,
		}}
	case domain.PoolTypeConcentratedKyber:
		contractABI = parsedRouterKyber
		method = "swapExactInputSingle"
		args = []interface{}{kyberSwapParams{
			TokenIn:      params.TokenIn,
			TokenOut:     params.TokenOut,
			Fee:          fee,
			Recipient:    params.Recipient,
			Deadline:     deadline,
			AmountIn:     params.AmountIn,
			MinAmountOut: params.MinAmountOut,
			LimitSqrtP:   noLimit,
		}}
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("evm: packing %s swap: %w", r.dialect, err)
	}
	return data, nil
}

// Swap submits the trade as a standalone transaction and waits for it
// to be mined. The realized output is read from the TokenOut transfer
// to the recipient in the receipt logs.
func (r *Router) Swap(ctx context.Context, params domain.SwapParams) (*big.Int, error) {
	data, err := r.SwapCalldata(params)
	if err != nil {
		return nil, err
	}
	receipt, err := r.transactor.SendAndWait(ctx, r.target, data)
	if err != nil {
		return nil, err
	}

	amountOut := transferredAmount(receipt, params.TokenOut, params.Recipient)
	if amountOut == nil {
		// Non-standard token without a terminal Transfer log; the
		// on-chain minimum still held.
		return new(big.Int).Set(params.MinAmountOut), nil
	}
	return amountOut, nil
}

// transferredAmount finds the last TokenOut transfer to recipient in
// the receipt logs and returns its amount.
func transferredAmount(receipt *types.Receipt, token, recipient common.Address) *big.Int {
	for i := len(receipt.Logs) - 1; i >= 0; i-- {
		lg := receipt.Logs[i]
		if lg.Address != token || len(lg.Topics) != 3 || lg.Topics[0] != erc20TransferTopic {
			continue
		}
		if common.BytesToAddress(lg.Topics[2].Bytes()) != recipient {
			continue
		}
		return new(big.Int).SetBytes(lg.Data)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ domain.SwapRouter = (*Router)(nil)
	_ CalldataBuilder   = (*Router)(nil)
)
