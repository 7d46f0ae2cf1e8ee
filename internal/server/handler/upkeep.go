package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/arbiter"
)

// UpkeepHandler exposes the two engine phases for manual triggering and
// for external automation callers that poll over HTTP.
type UpkeepHandler struct {
	engine *arbiter.Engine
	logger *slog.Logger
}

// NewUpkeepHandler creates an UpkeepHandler.
func NewUpkeepHandler(engine *arbiter.Engine, logger *slog.Logger) *UpkeepHandler {
	return &UpkeepHandler{engine: engine, logger: logger}
}

type checkRequest struct {
	JobIndex uint64 `json:"job_index"`
}

// Check runs the read-only decision phase for one job. The returned
// perform_data is opaque; feed it back to Perform unchanged.
// POST /api/upkeep/check
func (h *UpkeepHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	shouldAct, performData, err := h.engine.CheckJob(r.Context(), req.JobIndex)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{"should_act": shouldAct}
	if shouldAct {
		resp["perform_data"] = hexutil.Encode(performData)
	}
	writeJSON(w, http.StatusOK, resp)
}

type performRequest struct {
	PerformData string `json:"perform_data"`
}

// Perform re-validates and executes a decision payload.
// POST /api/upkeep/perform
func (h *UpkeepHandler) Perform(w http.ResponseWriter, r *http.Request) {
	var req performRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	performData, err := hexutil.Decode(req.PerformData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "perform_data must be 0x-prefixed hex")
		return
	}

	rec, err := h.engine.PerformUpkeep(r.Context(), performData)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("rebalance executed via api",
		slog.String("id", rec.ID),
		slog.Uint64("job", rec.JobIndex),
	)
	writeJSON(w, http.StatusOK, rebalanceJSON{
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
