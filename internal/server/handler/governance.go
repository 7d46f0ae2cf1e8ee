package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
)

// GovernanceHandler exposes the timelocked governance transfer.
type GovernanceHandler struct {
	gov    *governance.Governance
	actor  common.Address
	logger *slog.Logger
}

// NewGovernanceHandler creates a GovernanceHandler.
func NewGovernanceHandler(gov *governance.Governance, actor common.Address, logger *slog.Logger) *GovernanceHandler {
	return &GovernanceHandler{gov: gov, actor: actor, logger: logger}
}

// State reports the current and pending governor.
// GET /api/governance
func (h *GovernanceHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"governor":         h.gov.Governor().Hex(),
		"pending_governor": h.gov.PendingGovernor().Hex(),
	})
}

type setPendingRequest struct {
	Candidate string `json:"candidate"`
}

// SetPending proposes a governor candidate and starts the timelock.
// POST /api/governance/pending
func (h *GovernanceHandler) SetPending(w http.ResponseWriter, r *http.Request) {
	var req setPendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	candidate := common.HexToAddress(req.Candidate)
	if err := h.gov.SetPendingGovernor(h.actor, candidate); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("governor candidate proposed", slog.String("candidate", candidate.Hex()))
	writeJSON(w, http.StatusAccepted, map[string]string{"pending_governor": candidate.Hex()})
}

// Transfer completes a pending governance transfer after the timelock.
// POST /api/governance/transfer
func (h *GovernanceHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	if err := h.gov.TransferGovernance(h.actor); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"governor": h.gov.Governor().Hex()})
}
