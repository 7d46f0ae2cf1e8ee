package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

// RegistryHandler exposes the governed registry scalars and the
// token-to-feed mapping over HTTP.
type RegistryHandler struct {
	registry *registry.Registry
	actor    common.Address
	logger   *slog.Logger
}

// NewRegistryHandler creates a RegistryHandler.
func NewRegistryHandler(reg *registry.Registry, actor common.Address, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: reg, actor: actor, logger: logger}
}

type setFeedsRequest struct {
	Tokens []string `json:"tokens"`
	Feeds  []string `json:"feeds"`
}

// SetFeeds maps tokens to their oracle feeds. Both lists must have the
// same length; the whole batch applies or none of it does.
// PUT /api/registry/feeds
func (h *RegistryHandler) SetFeeds(w http.ResponseWriter, r *http.Request) {
	var req setFeedsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tokens := make([]common.Address, len(req.Tokens))
	for i, t := range req.Tokens {
		tokens[i] = common.HexToAddress(t)
	}
	feeds := make([]common.Address, len(req.Feeds))
	for i, f := range req.Feeds {
		feeds[i] = common.HexToAddress(f)
	}

	if err := h.registry.SetPriceFeeds(h.actor, tokens, feeds); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("price feeds updated", slog.Int("count", len(tokens)))
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(tokens)})
}

type setStalenessRequest struct {
	MaxStaleness string `json:"max_staleness"`
}

// SetStaleness updates the oracle staleness bound.
// PUT /api/registry/staleness
func (h *RegistryHandler) SetStaleness(w http.ResponseWriter, r *http.Request) {
	var req setStalenessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.MaxStaleness)
	if err != nil || d <= 0 {
		writeError(w, http.StatusBadRequest, "max_staleness must be a positive duration")
		return
	}
	if err := h.registry.SetMaxStaleness(h.actor, d); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"max_staleness": d.String()})
}

type setDecimalsRequest struct {
	Pair           string `json:"pair"`
	Token0Decimals uint8  `json:"token0_decimals"`
	Token1Decimals uint8  `json:"token1_decimals"`
}

// SetDecimals overrides the token decimals used for a pair, bypassing
// on-chain decimals lookups.
// PUT /api/registry/decimals
func (h *RegistryHandler) SetDecimals(w http.ResponseWriter, r *http.Request) {
	var req setDecimalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	pair := common.HexToAddress(req.Pair)
	if err := h.registry.SetTokensDecimals(h.actor, pair, req.Token0Decimals, req.Token1Decimals); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pair": pair.Hex()})
}
