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

// PairClient reads managed pairs over JSON-RPC. Token addresses and
// decimals are immutable on-chain and cached after the first read;
// reserves and the manager assignment are always read fresh.
type PairClient struct {
	client *Client

	mu       sync.RWMutex
	token0s  map[common.Address]common.Address
	token1s  map[common.Address]common.Address
	decimals map[common.Address]uint8
}

// NewPairClient creates a PairClient.
func NewPairClient(client *Client) *PairClient {
	return &PairClient{
		client:   client,
		token0s:  make(map[common.Address]common.Address),
		token1s:  make(map[common.Address]common.Address),
		decimals: make(map[common.Address]uint8),
	}
}

func (p *PairClient) contract(addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, parsedPair, p.client.eth, p.client.eth, p.client.eth)
}

// Token0 returns the pair's first token.
func (p *PairClient) Token0(ctx context.Context, pair common.Address) (common.Address, error) {
	p.mu.RLock()
	cached, ok := p.token0s[pair]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var out []interface{}
	if err := p.contract(pair).Call(&bind.CallOpts{Context: ctx}, &out, "token0"); err != nil {
		return common.Address{}, fmt.Errorf("evm: token0 of %s: %w", pair.Hex(), err)
	}
	addr := out[0].(common.Address)

	p.mu.Lock()
	p.token0s[pair] = addr
	p.mu.Unlock()
	return addr, nil
}

// Token1 returns the pair's second token.
func (p *PairClient) Token1(ctx context.Context, pair common.Address) (common.Address, error) {
	p.mu.RLock()
	cached, ok := p.token1s[pair]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var out []interface{}
	if err := p.contract(pair).Call(&bind.CallOpts{Context: ctx}, &out, "token1"); err != nil {
		return common.Address{}, fmt.Errorf("evm: token1 of %s: %w", pair.Hex(), err)
	}
	addr := out[0].(common.Address)

	p.mu.Lock()
	p.token1s[pair] = addr
	p.mu.Unlock()
	return addr, nil
}

// Decimals returns an ERC-20 token's decimals.
func (p *PairClient) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	p.mu.RLock()
	cached, ok := p.decimals[token]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	c := bind.NewBoundContract(token, parsedERC20, p.client.eth, p.client.eth, p.client.eth)
	var out []interface{}
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("evm: decimals of %s: %w", token.Hex(), err)
	}
	dec := out[0].(uint8)

	p.mu.Lock()
	p.decimals[token] = dec
	p.mu.Unlock()
	return dec, nil
}

// Reserves returns the pair's current reserves.
func (p *PairClient) Reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	var out []interface{}
	if err := p.contract(pair).Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, nil, fmt.Errorf("evm: reserves of %s: %w", pair.Hex(), err)
	}
	return out[0].(*big.Int), out[1].(*big.Int), nil
}

// Manager returns the current holder of the pair-manager capability.
func (p *PairClient) Manager(ctx context.Context, pair common.Address) (common.Address, error) {
	var out []interface{}
	if err := p.contract(pair).Call(&bind.CallOpts{Context: ctx}, &out, "manager"); err != nil {
		return common.Address{}, fmt.Errorf("evm: manager of %s: %w", pair.Hex(), err)
	}
	return out[0].(common.Address), nil
}

// Compile-time interface check.
var _ domain.PairClient = (*PairClient)(nil)
