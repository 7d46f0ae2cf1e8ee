package arbiter

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// priceGap returns |pairPrice - oraclePrice| on the 1e18 scale, with
// the oracle fixed at 0.85.
func priceGap(w *world) *big.Int {
	r0n := normalize(w.pair.reserve0, 18)
	r1n := normalize(w.pair.reserve1, 6)
	pairPrice := mulDiv(r1n, oneE18, r0n)
	oraclePrice := new(big.Int).Quo(new(big.Int).Mul(big.NewInt(85), oneE18), big.NewInt(100))
	return new(big.Int).Abs(new(big.Int).Sub(pairPrice, oraclePrice))
}

func checkAndPerform(t *testing.T, w *world, index uint64) domain.RebalanceRecord {
	t.Helper()
	ctx := context.Background()
	act, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)
	require.True(t, act)
	record, err := w.engine.PerformUpkeep(ctx, payload)
	require.NoError(t, err)
	return record
}

func TestPerformNarrowsPriceGap(t *testing.T) {
	w := newWorld(t)
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	before := priceGap(w)
	reserve0Before := new(big.Int).Set(w.pair.reserve0)

	record := checkAndPerform(t, w, index)

	after := priceGap(w)
	assert.True(t, after.Cmp(before) < 0, "price gap must strictly shrink: %s -> %s", before, after)

	// The pair's input-side reserve changed by exactly the trade amount.
	moved := new(big.Int).Sub(reserve0Before, w.pair.reserve0)
	assert.Equal(t, record.AmountIn, moved)

	// Profit landed with the dev address and is positive.
	assert.Positive(t, record.Profit.Sign())
	assert.Equal(t, record.Profit, w.executor.profits[devAddr])
}

func TestPerformToken1Direction(t *testing.T) {
	w := newWorld(t)
	index := w.pushJob(t, allPools())
	w.skewToken1Surplus(t)

	reserve1Before := new(big.Int).Set(w.pair.reserve1)
	record := checkAndPerform(t, w, index)

	assert.Equal(t, domain.DirectionToken1In, record.Direction)
	moved := new(big.Int).Sub(reserve1Before, w.pair.reserve1)
	assert.Equal(t, record.AmountIn, moved)
}

func TestPerformEachVenueType(t *testing.T) {
	for _, pool := range allPools() {
		t.Run(pool.PoolType.String(), func(t *testing.T) {
			w := newWorld(t)
			index := w.pushJob(t, []domain.PoolConfig{pool})
			w.skewToken0Surplus(t)

			record := checkAndPerform(t, w, index)
			assert.Equal(t, pool.PoolAddr, record.PoolAddr)
			assert.Equal(t, pool.PoolType, record.PoolType)
			assert.Positive(t, record.Profit.Sign())
		})
	}
}

func TestPerformReplayIsNoOp(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	act, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)
	require.True(t, act)

	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.NoError(t, err)

	reserve0 := new(big.Int).Set(w.pair.reserve0)
	reserve1 := new(big.Int).Set(w.pair.reserve1)

	// The state was already corrected: a resubmitted payload finds no
	// remaining deviation and must not move reserves a second time.
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.ErrorIs(t, err, domain.ErrNoLongerProfitable)
	assert.Equal(t, reserve0, w.pair.reserve0)
	assert.Equal(t, reserve1, w.pair.reserve1)
}

func TestPerformJobRemovedSinceDecision(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	_, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)

	require.NoError(t, w.jobs.Remove(ctx, governor, index))
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestPerformJobDeactivatedSinceDecision(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	_, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)

	require.NoError(t, w.jobs.SetActive(ctx, governor, index, false))
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.ErrorIs(t, err, domain.ErrJobInactive)
}

func TestPerformStalePayload(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	_, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)

	w.advance(DefaultMaxPayloadAge + time.Second)
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.ErrorIs(t, err, domain.ErrStalePayload)
}

func TestPerformWithoutManagerCapability(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	// The decision phase still works without the capability...
	act, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)
	require.True(t, act)

	// ...but execution is disabled until the designation returns.
	w.pair.manager = common.Address{}
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.ErrorIs(t, err, domain.ErrNotPairManager)

	w.pair.manager = arbiterAddr
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.NoError(t, err)
}

func TestPerformVenueFailureRollsBack(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	// Single-venue job so the failure cannot be routed around.
	index := w.pushJob(t, []domain.PoolConfig{
		{PoolAddr: poolV2, PoolType: domain.PoolTypeConstantProduct, PoolFee: 9970},
	})
	w.skewToken0Surplus(t)

	_, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)

	reserve0 := new(big.Int).Set(w.pair.reserve0)
	reserve1 := new(big.Int).Set(w.pair.reserve1)

	w.venues[poolV2].broken = true
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.Error(t, err)
	assert.Equal(t, reserve0, w.pair.reserve0, "failed execution must not move reserves")
	assert.Equal(t, reserve1, w.pair.reserve1)
}

func TestPerformGarbagePayload(t *testing.T) {
	w := newWorld(t)
	_, err := w.engine.PerformUpkeep(context.Background(), []byte("not a payload"))
	require.ErrorIs(t, err, domain.ErrBadPayload)
}

func TestPerformHoldsExecutionLock(t *testing.T) {
	held := &heldLock{}
	w := newWorld(t, WithLockManager(held))
	ctx := context.Background()
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	_, payload, err := w.engine.CheckJob(ctx, index)
	require.NoError(t, err)
	_, err = w.engine.PerformUpkeep(ctx, payload)
	require.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestPerformRecordsAndBroadcasts(t *testing.T) {
	store := &memRebalanceStore{}
	sink := &memSink{}
	w := newWorld(t, WithRebalanceStore(store), WithEventSink(sink))
	index := w.pushJob(t, allPools())
	w.skewToken0Surplus(t)

	record := checkAndPerform(t, w, index)

	require.Len(t, store.records, 1)
	assert.Equal(t, record.ID, store.records[0].ID)
	require.Len(t, sink.records, 1)
	assert.Equal(t, record.Profit, sink.records[0].Profit)
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

type memRebalanceStore struct {
	records []domain.RebalanceRecord
}

func (m *memRebalanceStore) Insert(_ context.Context, rec domain.RebalanceRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memRebalanceStore) ListRecent(_ context.Context, limit int) ([]domain.RebalanceRecord, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[len(m.records)-limit:], nil
}

type memSink struct {
	records []domain.RebalanceRecord
}

func (s *memSink) RebalanceExecuted(rec domain.RebalanceRecord) { s.records = append(s.records, rec) }
func (s *memSink) GovernanceChanged(_, _ common.Address)        {}
