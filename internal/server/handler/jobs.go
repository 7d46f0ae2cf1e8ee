package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
)

// PoolBinder registers venue routers for newly added pools. It is
// called after a job or pool mutation succeeds so pools added at
// runtime become executable without a restart.
type PoolBinder func(pools []domain.PoolConfig) error

// JobsHandler exposes the job registry over HTTP. Mutations act with
// the governor identity the server was configured with.
type JobsHandler struct {
	store  *jobs.Store
	actor  common.Address
	bind   PoolBinder // may be nil
	logger *slog.Logger
}

// NewJobsHandler creates a JobsHandler. bind may be nil.
func NewJobsHandler(store *jobs.Store, actor common.Address, bind PoolBinder, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{store: store, actor: actor, bind: bind, logger: logger}
}

func (h *JobsHandler) bindPools(pools []domain.PoolConfig) {
	if h.bind == nil {
		return
	}
	if err := h.bind(pools); err != nil {
		h.logger.Warn("router binding failed, pools stay unroutable",
			slog.String("error", err.Error()),
		)
	}
}

type poolJSON struct {
	PoolAddr string `json:"pool_addr"`
	PoolType uint8  `json:"pool_type"`
	PoolFee  uint32 `json:"pool_fee"`
}

type jobJSON struct {
	Index                uint64     `json:"index"`
	DevAddress           string     `json:"dev_address"`
	PairAddress          string     `json:"pair_address"`
	AdjustmentFactor     uint64     `json:"adjustment_factor"`
	ReserveToProfitRatio uint64     `json:"reserve_to_profit_ratio"`
	IsActive             bool       `json:"is_active"`
	Token0Decimals       uint8      `json:"token0_decimals,omitempty"`
	Token1Decimals       uint8      `json:"token1_decimals,omitempty"`
	Pools                []poolJSON `json:"pools"`
}

func jobToJSON(index uint64, job domain.ArbiterJob) jobJSON {
	out := jobJSON{
		Index:                index,
		DevAddress:           job.DevAddress.Hex(),
		PairAddress:          job.PairAddress.Hex(),
		AdjustmentFactor:     job.AdjustmentFactor,
		ReserveToProfitRatio: job.ReserveToProfitRatio,
		IsActive:             job.IsActive,
		Token0Decimals:       job.Token0Decimals,
		Token1Decimals:       job.Token1Decimals,
		Pools:                make([]poolJSON, 0, len(job.Pools)),
	}
	for _, pool := range job.Pools {
		out.Pools = append(out.Pools, poolJSON{
			PoolAddr: pool.PoolAddr.Hex(),
			PoolType: uint8(pool.PoolType),
			PoolFee:  pool.PoolFee,
		})
	}
	return out
}

// List returns every registered job with its current index.
// GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()
	out := make([]jobJSON, 0, len(snapshot))
	for i, job := range snapshot {
		out = append(out, jobToJSON(uint64(i), job))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one job.
// GET /api/jobs/{index}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job index")
		return
	}
	job, err := h.store.Get(index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToJSON(index, job))
}

type pushJobRequest struct {
	DevAddress           string     `json:"dev_address"`
	PairAddress          string     `json:"pair_address"`
	AdjustmentFactor     uint64     `json:"adjustment_factor"`
	ReserveToProfitRatio uint64     `json:"reserve_to_profit_ratio"`
	IsActive             bool       `json:"is_active"`
	Token0Decimals       uint8      `json:"token0_decimals"`
	Token1Decimals       uint8      `json:"token1_decimals"`
	Pools                []poolJSON `json:"pools"`
}

// Push registers a new job and returns its index.
// POST /api/jobs
func (h *JobsHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	job := domain.ArbiterJob{
		DevAddress:           common.HexToAddress(req.DevAddress),
		PairAddress:          common.HexToAddress(req.PairAddress),
		AdjustmentFactor:     req.AdjustmentFactor,
		ReserveToProfitRatio: req.ReserveToProfitRatio,
		IsActive:             req.IsActive,
		Token0Decimals:       req.Token0Decimals,
		Token1Decimals:       req.Token1Decimals,
	}
	for _, pool := range req.Pools {
		job.Pools = append(job.Pools, domain.PoolConfig{
			PoolAddr: common.HexToAddress(pool.PoolAddr),
			PoolType: domain.PoolType(pool.PoolType),
			PoolFee:  pool.PoolFee,
		})
	}

	index, err := h.store.Push(r.Context(), h.actor, job)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.bindPools(job.Pools)
	h.logger.Info("job registered",
		slog.Uint64("index", index),
		slog.String("pair", job.PairAddress.Hex()),
	)
	writeJSON(w, http.StatusCreated, map[string]uint64{"index": index})
}

// Remove drops a job. The last job takes the freed index.
// DELETE /api/jobs/{index}
func (h *JobsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job index")
		return
	}
	if err := h.store.Remove(r.Context(), h.actor, index); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive toggles a job's active flag.
// PUT /api/jobs/{index}/active
func (h *JobsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job index")
		return
	}
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.store.SetActive(r.Context(), h.actor, index, req.Active); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// PushPool appends a candidate venue to a job.
// POST /api/jobs/{index}/pools
func (h *JobsHandler) PushPool(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job index")
		return
	}
	var req poolJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	pool := domain.PoolConfig{
		PoolAddr: common.HexToAddress(req.PoolAddr),
		PoolType: domain.PoolType(req.PoolType),
		PoolFee:  req.PoolFee,
	}
	if err := h.store.PushPool(r.Context(), h.actor, index, pool); err != nil {
		writeDomainError(w, err)
		return
	}
	h.bindPools([]domain.PoolConfig{pool})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// RemovePool drops a candidate venue from a job. The last pool takes
// the freed slot.
// DELETE /api/jobs/{index}/pools/{poolIndex}
func (h *JobsHandler) RemovePool(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job index")
		return
	}
	poolIndex, err := pathIndex(r, "poolIndex")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool index")
		return
	}
	if err := h.store.RemovePool(r.Context(), h.actor, index, poolIndex); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
