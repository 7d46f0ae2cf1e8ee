package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// RebalancesHandler serves the executed-rebalance audit trail.
type RebalancesHandler struct {
	records domain.RebalanceStore
	logger  *slog.Logger
}

// NewRebalancesHandler creates a RebalancesHandler.
func NewRebalancesHandler(records domain.RebalanceStore, logger *slog.Logger) *RebalancesHandler {
	return &RebalancesHandler{records: records, logger: logger}
}

type rebalanceJSON struct {
	ID         string `json:"id"`
	JobIndex   uint64 `json:"job_index"`
	Pair       string `json:"pair"`
	Pool       string `json:"pool"`
	PoolType   string `json:"pool_type"`
	Direction  string `json:"direction"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
	Profit     string `json:"profit"`
	Dev        string `json:"dev"`
	ExecutedAt string `json:"executed_at"`
}

// ListRecent returns the most recent rebalances, newest first.
// GET /api/rebalances
func (h *RebalancesHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeJSON(w, http.StatusOK, []rebalanceJSON{})
		return
	}

	recs, err := h.records.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]rebalanceJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rebalanceJSON{
			ID:         rec.ID,
			JobIndex:   rec.JobIndex,
			Pair:       rec.PairAddress.Hex(),
			Pool:       rec.PoolAddr.Hex(),
			PoolType:   rec.PoolType.String(),
			Direction:  rec.Direction.String(),
			AmountIn:   rec.AmountIn.String(),
			AmountOut:  rec.AmountOut.String(),
			Profit:     rec.Profit.String(),
			Dev:        rec.DevAddress.Hex(),
			ExecutedAt: rec.ExecutedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
