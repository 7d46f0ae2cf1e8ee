package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

// StatusHandler reports the service's governance state and job summary.
type StatusHandler struct {
	gov       *governance.Governance
	jobs      *jobs.Store
	registry  *registry.Registry
	mode      string
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(gov *governance.Governance, jobStore *jobs.Store, reg *registry.Registry, mode string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		gov:       gov,
		jobs:      jobStore,
		registry:  reg,
		mode:      mode,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// Status reports runtime state.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	active := 0
	snapshot := h.jobs.Snapshot()
	for _, job := range snapshot {
		if job.IsActive {
			active++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":             h.mode,
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"governor":         h.gov.Governor().Hex(),
		"pending_governor": h.gov.PendingGovernor().Hex(),
		"jobs_total":       len(snapshot),
		"jobs_active":      active,
		"max_staleness":    h.registry.MaxStaleness().String(),
	})
}
