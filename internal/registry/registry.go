// Package registry stores the governed mappings the arbiter depends on:
// token -> price feed, venue type -> quoter, venue -> router, plus the
// oracle staleness tolerance and per-pair decimal overrides. A venue
// lacking a registered quoter or router cannot be evaluated or executed.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
)

// DefaultMaxStaleness is used until the governor configures one.
const DefaultMaxStaleness = 6 * time.Hour

// TokenDecimals is a per-pair decimal override pair.
type TokenDecimals struct {
	Token0 uint8
	Token1 uint8
}

// Registry is the governed configuration store. Every mutator checks the
// governor gate and validates its whole input before writing anything,
// so a failed call leaves the registry exactly as before.
type Registry struct {
	mu           sync.RWMutex
	priceFeeds   map[common.Address]common.Address
	quoters      map[domain.PoolType]domain.PoolQuoter
	routers      map[common.Address]domain.SwapRouter
	maxStaleness time.Duration
	decimals     map[common.Address]TokenDecimals

	gov    *governance.Governance
	logger *slog.Logger
}

// New creates an empty Registry gated by gov.
func New(gov *governance.Governance, logger *slog.Logger) *Registry {
	return &Registry{
		priceFeeds:   make(map[common.Address]common.Address),
		quoters:      make(map[domain.PoolType]domain.PoolQuoter),
		routers:      make(map[common.Address]domain.SwapRouter),
		maxStaleness: DefaultMaxStaleness,
		decimals:     make(map[common.Address]TokenDecimals),
		gov:          gov,
		logger:       logger.With(slog.String("component", "registry")),
	}
}

// SetPriceFeeds maps each token to its oracle feed. Pairwise arrays of
// equal length; each entry fully replaces the previous mapping.
func (r *Registry) SetPriceFeeds(caller common.Address, tokens, feeds []common.Address) error {
	if err := r.gov.RequireGovernor(caller); err != nil {
		return err
	}
	if len(tokens) != len(feeds) {
		return domain.ErrLengthMismatch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, token := range tokens {
		r.priceFeeds[token] = feeds[i]
	}
	r.logger.Info("price feeds updated", slog.Int("count", len(tokens)))
	return nil
}

// SetQuoters maps each venue type to its quoting service.
func (r *Registry) SetQuoters(caller common.Address, types []domain.PoolType, quoters []domain.PoolQuoter) error {
	if err := r.gov.RequireGovernor(caller); err != nil {
		return err
	}
	if len(types) != len(quoters) {
		return domain.ErrLengthMismatch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, pt := range types {
		r.quoters[pt] = quoters[i]
	}
	r.logger.Info("quoters updated", slog.Int("count", len(types)))
	return nil
}

// SetRouters maps each venue address to its execution router.
func (r *Registry) SetRouters(caller common.Address, pools []common.Address, routers []domain.SwapRouter) error {
	if err := r.gov.RequireGovernor(caller); err != nil {
		return err
	}
	if len(pools) != len(routers) {
		return domain.ErrLengthMismatch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, pool := range pools {
		r.routers[pool] = routers[i]
	}
	r.logger.Info("routers updated", slog.Int("count", len(pools)))
	return nil
}

// SetMaxStaleness sets the oracle freshness tolerance.
func (r *Registry) SetMaxStaleness(caller common.Address, d time.Duration) error {
	if err := r.gov.RequireGovernor(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxStaleness = d
	r.logger.Info("max staleness updated", slog.Duration("max_staleness", d))
	return nil
}

// SetTokensDecimals overrides the decimals of a managed pair's tokens.
func (r *Registry) SetTokensDecimals(caller, pair common.Address, dec0, dec1 uint8) error {
	if err := r.gov.RequireGovernor(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decimals[pair] = TokenDecimals{Token0: dec0, Token1: dec1}
	return nil
}

// PriceFeed returns the feed registered for token.
func (r *Registry) PriceFeed(token common.Address) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	feed, ok := r.priceFeeds[token]
	if !ok {
		return common.Address{}, domain.ErrUnknownFeed
	}
	return feed, nil
}

// Quoter returns the quoting service registered for the venue type.
func (r *Registry) Quoter(pt domain.PoolType) (domain.PoolQuoter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quoters[pt]
	if !ok {
		return nil, domain.ErrUnknownQuoter
	}
	return q, nil
}

// Router returns the execution router registered for the venue.
func (r *Registry) Router(pool common.Address) (domain.SwapRouter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routers[pool]
	if !ok {
		return nil, domain.ErrUnknownRouter
	}
	return rt, nil
}

// MaxStaleness returns the oracle freshness tolerance.
func (r *Registry) MaxStaleness() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxStaleness
}

// Decimals returns the configured decimal overrides for pair, if any.
func (r *Registry) Decimals(pair common.Address) (TokenDecimals, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dec, ok := r.decimals[pair]
	return dec, ok
}
