package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
)

var (
	governor = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000002")
	dev      = common.HexToAddress("0x0000000000000000000000000000000000000003")
	pair     = common.HexToAddress("0x0C9580eC848bd48EBfCB85A4aE1f0354377315fD")
	poolV2   = common.HexToAddress("0x6e7a5FAFcec6BB1e78bAE2A1F0B612012BF14827")
	poolV3   = common.HexToAddress("0xA374094527e1673A86dE625aa59517c5dE346d32")
)

func newStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governance.New(governor, time.Minute, logger)
	return New(gov, logger)
}

func testJob(dev common.Address) domain.ArbiterJob {
	return domain.ArbiterJob{
		DevAddress:           dev,
		PairAddress:          pair,
		AdjustmentFactor:     1000,
		ReserveToProfitRatio: 5_000_000,
		IsActive:             true,
	}
}

func TestPushGovernorOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Push(ctx, bob, testJob(dev))
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, 0, s.Len())

	index, err := s.Push(ctx, governor, testJob(dev))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), index)
	assert.Equal(t, 1, s.Len())
}

func TestPushRejectsZeroAddresses(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	job := testJob(dev)
	job.PairAddress = common.Address{}
	_, err := s.Push(ctx, governor, job)
	require.ErrorIs(t, err, domain.ErrZeroAddress)

	job = testJob(common.Address{})
	_, err = s.Push(ctx, governor, job)
	require.ErrorIs(t, err, domain.ErrZeroAddress)
}

func TestRemoveSwapsWithLast(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	devA := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	devB := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	devC := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	for _, d := range []common.Address{devA, devB, devC} {
		_, err := s.Push(ctx, governor, testJob(d))
		require.NoError(t, err)
	}

	require.ErrorIs(t, s.Remove(ctx, bob, 0), domain.ErrNotAuthorized)
	require.NoError(t, s.Remove(ctx, governor, 0))

	// The formerly-last job now occupies index 0.
	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, devC, got.DevAddress)
	assert.Equal(t, 2, s.Len())

	// Removing the same index twice never removes two jobs per call.
	require.NoError(t, s.Remove(ctx, governor, 0))
	require.NoError(t, s.Remove(ctx, governor, 0))
	assert.Equal(t, 0, s.Len())
	require.ErrorIs(t, s.Remove(ctx, governor, 0), domain.ErrIndexOutOfRange)
}

func TestPoolPushRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Push(ctx, governor, testJob(dev))
	require.NoError(t, err)

	v2 := domain.PoolConfig{PoolAddr: poolV2, PoolType: domain.PoolTypeConstantProduct, PoolFee: 9970}
	v3 := domain.PoolConfig{PoolAddr: poolV3, PoolType: domain.PoolTypeConcentratedV3, PoolFee: 500}

	require.ErrorIs(t, s.PushPool(ctx, bob, 0, v2), domain.ErrNotAuthorized)
	require.NoError(t, s.PushPool(ctx, governor, 0, v2))
	require.NoError(t, s.PushPool(ctx, governor, 0, v3))
	require.ErrorIs(t, s.PushPool(ctx, governor, 7, v2), domain.ErrIndexOutOfRange)

	job, err := s.Get(0)
	require.NoError(t, err)
	require.Len(t, job.Pools, 2)

	require.ErrorIs(t, s.RemovePool(ctx, bob, 0, 0), domain.ErrNotAuthorized)
	require.NoError(t, s.RemovePool(ctx, governor, 0, 0))

	job, err = s.Get(0)
	require.NoError(t, err)
	require.Len(t, job.Pools, 1)
	assert.Equal(t, poolV3, job.Pools[0].PoolAddr)

	require.ErrorIs(t, s.RemovePool(ctx, governor, 0, 5), domain.ErrIndexOutOfRange)
}

func TestGetReturnsCopy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	job := testJob(dev)
	job.Pools = []domain.PoolConfig{{PoolAddr: poolV2, PoolType: domain.PoolTypeConstantProduct, PoolFee: 9970}}
	_, err := s.Push(ctx, governor, job)
	require.NoError(t, err)

	got, err := s.Get(0)
	require.NoError(t, err)
	got.Pools[0].PoolFee = 1

	again, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(9970), again.Pools[0].PoolFee)
}

func TestSetActive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Push(ctx, governor, testJob(dev))
	require.NoError(t, err)

	require.ErrorIs(t, s.SetActive(ctx, bob, 0, false), domain.ErrNotAuthorized)
	require.NoError(t, s.SetActive(ctx, governor, 0, false))
	job, err := s.Get(0)
	require.NoError(t, err)
	assert.False(t, job.IsActive)
}

func TestRestoreAndSnapshotRepository(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governance.New(governor, time.Minute, logger)
	repo := &memRepo{}
	s := New(gov, logger, WithRepository(repo))
	ctx := context.Background()

	_, err := s.Push(ctx, governor, testJob(dev))
	require.NoError(t, err)
	require.Len(t, repo.saved, 1)

	fresh := New(gov, logger, WithRepository(repo))
	require.NoError(t, fresh.Restore(ctx))
	assert.Equal(t, 1, fresh.Len())
}

type memRepo struct {
	saved []domain.ArbiterJob
}

func (m *memRepo) SaveAll(_ context.Context, jobs []domain.ArbiterJob) error {
	m.saved = jobs
	return nil
}

func (m *memRepo) LoadAll(context.Context) ([]domain.ArbiterJob, error) {
	return m.saved, nil
}
