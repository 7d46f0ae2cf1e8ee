package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// ConstantProductQuoter prices a trade against a v2-style pool from its
// on-chain reserves. PoolFee is the 1e4-scaled retention factor (9970
// keeps 99.7% of the input).
type ConstantProductQuoter struct {
	client *Client

	mu      sync.RWMutex
	token0s map[common.Address]common.Address
}

// NewConstantProductQuoter creates a ConstantProductQuoter.
func NewConstantProductQuoter(client *Client) *ConstantProductQuoter {
	return &ConstantProductQuoter{
		client:  client,
		token0s: make(map[common.Address]common.Address),
	}
}

func (q *ConstantProductQuoter) poolToken0(ctx context.Context, pool common.Address) (common.Address, error) {
	q.mu.RLock()
	cached, ok := q.token0s[pool]
	q.mu.RUnlock()
	if ok {
		return cached, nil
	}

	c := bind.NewBoundContract(pool, parsedPair, q.client.eth, q.client.eth, q.client.eth)
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "token0"); err != nil {
		return common.Address{}, fmt.Errorf("evm: token0 of pool %s: %w", pool.Hex(), err)
	}
	addr := out[0].(common.Address)

	q.mu.Lock()
	q.token0s[pool] = addr
	q.mu.Unlock()
	return addr, nil
}

// Quote computes the x*y=k output for the trade.
func (q *ConstantProductQuoter) Quote(ctx context.Context, req domain.QuoteRequest) (*big.Int, error) {
	pool := req.Pool.PoolAddr
	c := bind.NewBoundContract(pool, parsedPair, q.client.eth, q.client.eth, q.client.eth)

	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, fmt.Errorf("evm: reserves of pool %s: %w", pool.Hex(), err)
	}
	reserve0 := out[0].(*big.Int)
	reserve1 := out[1].(*big.Int)

	token0, err := q.poolToken0(ctx, pool)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut := reserve0, reserve1
	if req.TokenIn != token0 {
		reserveIn, reserveOut = reserve1, reserve0
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, fmt.Errorf("evm: pool %s has empty reserves", pool.Hex())
	}

	// out = (in * fee * rOut) / (rIn * 1e4 + in * fee)
	inWithFee := new(big.Int).Mul(req.AmountIn, big.NewInt(int64(req.Pool.PoolFee)))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10_000))
	denominator.Add(denominator, inWithFee)
	return numerator.Quo(numerator, denominator), nil
}

// ConcentratedQuoter prices a trade by eth_call against a deployed
// quoter contract. The three concentrated dialects share the transport
// but differ in call shape; dialect selects the ABI.
type ConcentratedQuoter struct {
	client  *Client
	quoter  common.Address
	dialect domain.PoolType
}

// NewConcentratedQuoter creates a quoter bound to the given quoter
// contract for one of the concentrated pool types.
func NewConcentratedQuoter(client *Client, quoter common.Address, dialect domain.PoolType) (*ConcentratedQuoter, error) {
	switch dialect {
	case domain.PoolTypeConcentratedV3, domain.PoolTypeConcentratedAlgebra, domain.PoolTypeConcentratedKyber:
	default:
		return nil, fmt.Errorf("evm: pool type %s has no quoter contract", dialect)
	}
	return &ConcentratedQuoter{client: client, quoter: quoter, dialect: dialect}, nil
}

type v3QuoteParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type kyberQuoteParams struct {
	TokenIn    common.Address
	TokenOut   common.Address
	AmountIn   *big.Int
	FeeUnits   *big.Int
	LimitSqrtP *big.Int
}

// Quote asks the quoter contract for the trade's output amount.
func (q *ConcentratedQuoter) Quote(ctx context.Context, req domain.QuoteRequest) (*big.Int, error) {
	var (
		contractABI = parsedQuoterV3
		args        []interface{}
		outIndex    int
	)
	fee := big.NewInt(int64(req.Pool.PoolFee))
	noLimit := new(big.Int)

	switch q.dialect {
	case domain.PoolTypeConcentratedV3:
		args = []interface{}{v3QuoteParams{
			TokenIn:           req.TokenIn,
			TokenOut:          req.TokenOut,
			AmountIn:          req.AmountIn,
			Fee:               fee,
			SqrtPriceLimitX96: noLimit,
		}}
	case domain.PoolTypeConcentratedAlgebra:
		contractABI = parsedQuoterAlgebra
		args = []interface{}{req.TokenIn, req.TokenOut, req.AmountIn, noLimit}
	case domain.PoolTypeConcentratedKyber:
		contractABI = parsedQuoterKyber
		outIndex = 1 // returnedAmount
		args = []interface{}{kyberQuoteParams{
			TokenIn:    req.TokenIn,
			TokenOut:   req.TokenOut,
			AmountIn:   req.AmountIn,
			FeeUnits:   fee,
			LimitSqrtP: noLimit,
		}}
	}

	c := bind.NewBoundContract(q.quoter, contractABI, q.client.eth, q.client.eth, q.client.eth)
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactInputSingle", args...); err != nil {
		return nil, fmt.Errorf("evm: quoting %s via %s: %w", req.Pool.PoolAddr.Hex(), q.quoter.Hex(), err)
	}
	return out[outIndex].(*big.Int), nil
}

// Compile-time interface checks.
var (
	_ domain.PoolQuoter = (*ConstantProductQuoter)(nil)
	_ domain.PoolQuoter = (*ConcentratedQuoter)(nil)
)
