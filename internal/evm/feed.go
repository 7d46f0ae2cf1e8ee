package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// FeedReader reads Chainlink aggregator feeds. Feed decimals never
// change for a deployed aggregator and are cached.
type FeedReader struct {
	client *Client

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// NewFeedReader creates a FeedReader.
func NewFeedReader(client *Client) *FeedReader {
	return &FeedReader{
		client:   client,
		decimals: make(map[common.Address]uint8),
	}
}

func (f *FeedReader) contract(feed common.Address) *bind.BoundContract {
	return bind.NewBoundContract(feed, parsedAggregator, f.client.eth, f.client.eth, f.client.eth)
}

// LatestPrice returns the feed's latest answer and its update time.
func (f *FeedReader) LatestPrice(ctx context.Context, feed common.Address) (*big.Int, time.Time, error) {
	var out []interface{}
	if err := f.contract(feed).Call(&bind.CallOpts{Context: ctx}, &out, "latestRoundData"); err != nil {
		return nil, time.Time{}, fmt.Errorf("evm: latestRoundData of %s: %w", feed.Hex(), err)
	}
	answer := out[1].(*big.Int)
	updatedAt := out[3].(*big.Int)
	if answer.Sign() <= 0 {
		return nil, time.Time{}, fmt.Errorf("evm: feed %s reported non-positive answer", feed.Hex())
	}
	return answer, time.Unix(updatedAt.Int64(), 0), nil
}

// FeedDecimals returns the feed's answer decimals.
func (f *FeedReader) FeedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	f.mu.RLock()
	cached, ok := f.decimals[feed]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var out []interface{}
	if err := f.contract(feed).Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("evm: feed decimals of %s: %w", feed.Hex(), err)
	}
	dec := out[0].(uint8)

	f.mu.Lock()
	f.decimals[feed] = dec
	f.mu.Unlock()
	return dec, nil
}

// Compile-time interface check.
var _ domain.FeedReader = (*FeedReader)(nil)
