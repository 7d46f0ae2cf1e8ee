package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// RebalanceStore implements domain.RebalanceStore using PostgreSQL.
// Amounts are stored as NUMERIC(78,0) so full uint256 values survive
// the round trip.
type RebalanceStore struct {
	pool *pgxpool.Pool
}

// NewRebalanceStore creates a new RebalanceStore.
func NewRebalanceStore(pool *pgxpool.Pool) *RebalanceStore {
	return &RebalanceStore{pool: pool}
}

// Insert persists an executed rebalance record.
func (s *RebalanceStore) Insert(ctx context.Context, rec domain.RebalanceRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rebalances (id, job_index, pair_address, pool_address, pool_type, direction, amount_in, amount_out, profit, dev_address, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, int64(rec.JobIndex), rec.PairAddress.Hex(), rec.PoolAddr.Hex(),
		int16(rec.PoolType), int16(rec.Direction),
		rec.AmountIn.String(), rec.AmountOut.String(), rec.Profit.String(),
		rec.DevAddress.Hex(), rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert rebalance: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, most recent first.
func (s *RebalanceStore) ListRecent(ctx context.Context, limit int) ([]domain.RebalanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_index, pair_address, pool_address, pool_type, direction, amount_in, amount_out, profit, dev_address, executed_at
		FROM rebalances ORDER BY executed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rebalances: %w", err)
	}
	defer rows.Close()

	var recs []domain.RebalanceRecord
	for rows.Next() {
		var (
			id, pairAddr, poolAddr, devAddr string
			jobIndex                        int64
			poolType, direction             int16
			amountIn, amountOut, profit     string
			executedAt                      time.Time
		)
		if err := rows.Scan(&id, &jobIndex, &pairAddr, &poolAddr, &poolType, &direction, &amountIn, &amountOut, &profit, &devAddr, &executedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan rebalance: %w", err)
		}
		rec := domain.RebalanceRecord{
			ID:          id,
			JobIndex:    uint64(jobIndex),
			PairAddress: common.HexToAddress(pairAddr),
			PoolAddr:    common.HexToAddress(poolAddr),
			PoolType:    domain.PoolType(poolType),
			Direction:   domain.Direction(direction),
			DevAddress:  common.HexToAddress(devAddr),
			ExecutedAt:  executedAt,
		}
		var ok bool
		if rec.AmountIn, ok = new(big.Int).SetString(amountIn, 10); !ok {
			return nil, fmt.Errorf("postgres: parse amount_in %q", amountIn)
		}
		if rec.AmountOut, ok = new(big.Int).SetString(amountOut, 10); !ok {
			return nil, fmt.Errorf("postgres: parse amount_out %q", amountOut)
		}
		if rec.Profit, ok = new(big.Int).SetString(profit, 10); !ok {
			return nil, fmt.Errorf("postgres: parse profit %q", profit)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rebalances: %w", err)
	}
	return recs, nil
}

// Compile-time interface check.
var _ domain.RebalanceStore = (*RebalanceStore)(nil)
