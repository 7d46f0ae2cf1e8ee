package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// JobStore implements domain.JobRepository using PostgreSQL. The whole
// job list is replaced per snapshot: job indices are dense positional
// handles, so row-level diffing would fight the swap-removal contract.
type JobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a new JobStore.
func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

// SaveAll replaces the persisted job list with the given snapshot.
func (s *JobStore) SaveAll(ctx context.Context, jobs []domain.ArbiterJob) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM arbiter_jobs`); err != nil {
		return fmt.Errorf("postgres: clear arbiter_jobs: %w", err)
	}

	for i, job := range jobs {
		pools, err := json.Marshal(job.Pools)
		if err != nil {
			return fmt.Errorf("postgres: marshal pools for job %d: %w", i, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO arbiter_jobs (job_index, dev_address, pair_address, adjustment_factor, reserve_profit_ratio, is_active, token0_decimals, token1_decimals, pools, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
			int64(i), job.DevAddress.Hex(), job.PairAddress.Hex(),
			int64(job.AdjustmentFactor), int64(job.ReserveToProfitRatio), job.IsActive,
			int16(job.Token0Decimals), int16(job.Token1Decimals), pools,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert job %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadAll returns the persisted job list in index order.
func (s *JobStore) LoadAll(ctx context.Context) ([]domain.ArbiterJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dev_address, pair_address, adjustment_factor, reserve_profit_ratio, is_active, token0_decimals, token1_decimals, pools
		FROM arbiter_jobs ORDER BY job_index`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ArbiterJob
	for rows.Next() {
		var (
			devAddr, pairAddr string
			adjFactor, ratio  int64
			isActive          bool
			dec0, dec1        int16
			pools             []byte
		)
		if err := rows.Scan(&devAddr, &pairAddr, &adjFactor, &ratio, &isActive, &dec0, &dec1, &pools); err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		job := domain.ArbiterJob{
			DevAddress:           common.HexToAddress(devAddr),
			PairAddress:          common.HexToAddress(pairAddr),
			AdjustmentFactor:     uint64(adjFactor),
			ReserveToProfitRatio: uint64(ratio),
			IsActive:             isActive,
			Token0Decimals:       uint8(dec0),
			Token1Decimals:       uint8(dec1),
		}
		if err := json.Unmarshal(pools, &job.Pools); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal pools: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}

// Compile-time interface check.
var _ domain.JobRepository = (*JobStore)(nil)
