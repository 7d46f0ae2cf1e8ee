package domain

import "context"

// JobRepository persists job configurations so the registry survives a
// restart. The in-memory job store is authoritative; the repository is
// a write-through snapshot.
type JobRepository interface {
	SaveAll(ctx context.Context, jobs []ArbiterJob) error
	LoadAll(ctx context.Context) ([]ArbiterJob, error)
}

// RebalanceStore persists executed rebalance records for audit.
type RebalanceStore interface {
	Insert(ctx context.Context, rec RebalanceRecord) error
	ListRecent(ctx context.Context, limit int) ([]RebalanceRecord, error)
}
