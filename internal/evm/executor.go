package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// Executor performs rebalances through the on-chain execution helper.
// The helper holds the pair-manager capability: one transaction pulls
// the input reserve, runs the embedded venue swap, settles the owed
// amount back into the pair and forwards the surplus. Any failure
// reverts the whole transaction, so a failed attempt leaves no partial
// state behind.
type Executor struct {
	transactor *Transactor
	rebalancer common.Address
}

// NewExecutor creates an Executor bound to the deployed helper.
func NewExecutor(transactor *Transactor, rebalancer common.Address) *Executor {
	return &Executor{transactor: transactor, rebalancer: rebalancer}
}

// Rebalancer returns the helper contract address. This is the identity
// that must hold the pair-manager capability.
func (e *Executor) Rebalancer() common.Address {
	return e.rebalancer
}

// ExecuteRebalance submits the corrective trade and reports the
// realized amounts from the helper's event log.
func (e *Executor) ExecuteRebalance(ctx context.Context, order domain.RebalanceOrder) (domain.RebalanceResult, error) {
	builder, ok := order.Router.(CalldataBuilder)
	if !ok {
		return domain.RebalanceResult{}, fmt.Errorf("evm: router %T cannot build an embedded swap", order.Router)
	}
	swapData, err := builder.SwapCalldata(domain.SwapParams{
		Pool:         order.Pool,
		TokenIn:      order.TokenIn,
		TokenOut:     order.TokenOut,
		AmountIn:     order.AmountIn,
		MinAmountOut: order.AmountOwed,
		Recipient:    e.rebalancer,
		Deadline:     order.Deadline,
	})
	if err != nil {
		return domain.RebalanceResult{}, err
	}

	data, err := parsedRebalancer.Pack("executeRebalance",
		order.Pair,
		builder.Target(),
		swapData,
		order.TokenIn,
		order.TokenOut,
		order.AmountIn,
		order.AmountOwed,
		order.AmountOwed,
		order.ProfitTo,
		big.NewInt(order.Deadline.Unix()),
	)
	if err != nil {
		return domain.RebalanceResult{}, fmt.Errorf("evm: packing executeRebalance: %w", err)
	}

	receipt, err := e.transactor.SendAndWait(ctx, e.rebalancer, data)
	if err != nil {
		return domain.RebalanceResult{}, err
	}

	amountOut, profit, err := e.executedAmounts(receipt)
	if err != nil {
		return domain.RebalanceResult{}, err
	}
	return domain.RebalanceResult{AmountOut: amountOut, Profit: profit}, nil
}

// executedAmounts decodes the RebalanceExecuted event from the receipt.
func (e *Executor) executedAmounts(receipt *types.Receipt) (*big.Int, *big.Int, error) {
	topic := parsedRebalancer.Events["RebalanceExecuted"].ID
	for _, lg := range receipt.Logs {
		if lg.Address != e.rebalancer || len(lg.Topics) == 0 || lg.Topics[0] != topic {
			continue
		}
		values, err := parsedRebalancer.Unpack("RebalanceExecuted", lg.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("evm: decoding RebalanceExecuted: %w", err)
		}
		return values[1].(*big.Int), values[2].(*big.Int), nil
	}
	return nil, nil, fmt.Errorf("evm: tx %s mined without a RebalanceExecuted event", receipt.TxHash.Hex())
}

// Compile-time interface check.
var _ domain.TradeExecutor = (*Executor)(nil)
