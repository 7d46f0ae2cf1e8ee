// Package jobs holds the ordered collection of rebalancing jobs. Job
// indices are dense handles: removal swaps the last job into the freed
// slot, so callers must not cache indices across removals.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
)

// Store is the in-memory authoritative job list. Mutation is governor
// gated; the decision and execution engines only read. An optional
// repository receives a write-through snapshot after every successful
// mutation.
type Store struct {
	mu   sync.RWMutex
	jobs []domain.ArbiterJob

	gov    *governance.Governance
	repo   domain.JobRepository
	logger *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithRepository wires a persistence backend. Snapshots are best-effort:
// a failed save is logged but does not roll back the in-memory mutation.
func WithRepository(repo domain.JobRepository) Option {
	return func(s *Store) { s.repo = repo }
}

// New creates an empty Store gated by gov.
func New(gov *governance.Governance, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		gov:    gov,
		logger: logger.With(slog.String("component", "jobs")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads persisted jobs into the store. Intended for boot, before
// any traffic; it replaces the current list.
func (s *Store) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	loaded, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("jobs: restore: %w", err)
	}
	s.mu.Lock()
	s.jobs = loaded
	s.mu.Unlock()
	s.logger.Info("jobs restored", slog.Int("count", len(loaded)))
	return nil
}

// Push appends a new job and returns its index.
func (s *Store) Push(ctx context.Context, caller common.Address, job domain.ArbiterJob) (uint64, error) {
	if err := s.gov.RequireGovernor(caller); err != nil {
		return 0, err
	}
	if job.PairAddress == (common.Address{}) || job.DevAddress == (common.Address{}) {
		return 0, domain.ErrZeroAddress
	}
	for _, pool := range job.Pools {
		if !pool.PoolType.Valid() {
			return 0, fmt.Errorf("jobs: %w: pool type %d", domain.ErrBadPayload, pool.PoolType)
		}
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job.Clone())
	index := uint64(len(s.jobs) - 1)
	s.mu.Unlock()

	s.logger.Info("job pushed",
		slog.Uint64("index", index),
		slog.String("pair", job.PairAddress.Hex()),
		slog.Int("pools", len(job.Pools)),
	)
	s.snapshot(ctx)
	return index, nil
}

// Remove deletes the job at index by swapping the last job into its
// slot. The formerly-last job takes over the removed index.
func (s *Store) Remove(ctx context.Context, caller common.Address, index uint64) error {
	if err := s.gov.RequireGovernor(caller); err != nil {
		return err
	}
	s.mu.Lock()
	if index >= uint64(len(s.jobs)) {
		s.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	last := len(s.jobs) - 1
	s.jobs[index] = s.jobs[last]
	s.jobs[last] = domain.ArbiterJob{}
	s.jobs = s.jobs[:last]
	s.mu.Unlock()

	s.logger.Info("job removed", slog.Uint64("index", index))
	s.snapshot(ctx)
	return nil
}

// PushPool appends a candidate venue to the job's pool list.
func (s *Store) PushPool(ctx context.Context, caller common.Address, jobIndex uint64, pool domain.PoolConfig) error {
	if err := s.gov.RequireGovernor(caller); err != nil {
		return err
	}
	if !pool.PoolType.Valid() {
		return fmt.Errorf("jobs: %w: pool type %d", domain.ErrBadPayload, pool.PoolType)
	}
	s.mu.Lock()
	if jobIndex >= uint64(len(s.jobs)) {
		s.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	s.jobs[jobIndex].Pools = append(s.jobs[jobIndex].Pools, pool)
	s.mu.Unlock()

	s.logger.Info("pool pushed to job",
		slog.Uint64("job", jobIndex),
		slog.String("pool", pool.PoolAddr.Hex()),
		slog.String("type", pool.PoolType.String()),
	)
	s.snapshot(ctx)
	return nil
}

// RemovePool deletes a venue from the job's pool list, swap-with-last.
func (s *Store) RemovePool(ctx context.Context, caller common.Address, jobIndex, poolIndex uint64) error {
	if err := s.gov.RequireGovernor(caller); err != nil {
		return err
	}
	s.mu.Lock()
	if jobIndex >= uint64(len(s.jobs)) {
		s.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	pools := s.jobs[jobIndex].Pools
	if poolIndex >= uint64(len(pools)) {
		s.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	last := len(pools) - 1
	pools[poolIndex] = pools[last]
	s.jobs[jobIndex].Pools = pools[:last]
	s.mu.Unlock()

	s.logger.Info("pool removed from job",
		slog.Uint64("job", jobIndex),
		slog.Uint64("pool_index", poolIndex),
	)
	s.snapshot(ctx)
	return nil
}

// SetActive flips the job's isActive gate.
func (s *Store) SetActive(ctx context.Context, caller common.Address, jobIndex uint64, active bool) error {
	if err := s.gov.RequireGovernor(caller); err != nil {
		return err
	}
	s.mu.Lock()
	if jobIndex >= uint64(len(s.jobs)) {
		s.mu.Unlock()
		return domain.ErrIndexOutOfRange
	}
	s.jobs[jobIndex].IsActive = active
	s.mu.Unlock()

	s.logger.Info("job active flag set", slog.Uint64("job", jobIndex), slog.Bool("active", active))
	s.snapshot(ctx)
	return nil
}

// Get returns a deep copy of the job at index.
func (s *Store) Get(index uint64) (domain.ArbiterJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index >= uint64(len(s.jobs)) {
		return domain.ArbiterJob{}, domain.ErrJobNotFound
	}
	return s.jobs[index].Clone(), nil
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Snapshot returns a deep copy of the whole job list.
func (s *Store) Snapshot() []domain.ArbiterJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ArbiterJob, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Clone()
	}
	return out
}

func (s *Store) snapshot(ctx context.Context) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveAll(ctx, s.Snapshot()); err != nil {
		s.logger.Error("job snapshot failed", slog.String("error", err.Error()))
	}
}
