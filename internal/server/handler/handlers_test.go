package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/governance"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/jobs"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/registry"
)

var testGovernor = common.HexToAddress("0x0000000000000000000000000000000000000001")

type apiFixture struct {
	mux   *http.ServeMux
	gov   *governance.Governance
	store *jobs.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governance.New(testGovernor, time.Hour, logger)
	reg := registry.New(gov, logger)
	store := jobs.New(gov, logger)

	jh := NewJobsHandler(store, testGovernor, nil, logger)
	gh := NewGovernanceHandler(gov, testGovernor, logger)
	sh := NewStatusHandler(gov, store, reg, "serve", logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", sh.Status)
	mux.HandleFunc("GET /api/jobs", jh.List)
	mux.HandleFunc("POST /api/jobs", jh.Push)
	mux.HandleFunc("GET /api/jobs/{index}", jh.Get)
	mux.HandleFunc("DELETE /api/jobs/{index}", jh.Remove)
	mux.HandleFunc("PUT /api/jobs/{index}/active", jh.SetActive)
	mux.HandleFunc("GET /api/governance", gh.State)
	mux.HandleFunc("POST /api/governance/pending", gh.SetPending)
	mux.HandleFunc("POST /api/governance/transfer", gh.Transfer)

	return &apiFixture{mux: mux, gov: gov, store: store}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func sampleJobRequest() map[string]any {
	return map[string]any{
		"dev_address":             "0x00000000000000000000000000000000000000dd",
		"pair_address":            "0x00000000000000000000000000000000000000ee",
		"adjustment_factor":       1000,
		"reserve_to_profit_ratio": 200,
		"is_active":               true,
		"pools": []map[string]any{
			{"pool_addr": "0x00000000000000000000000000000000000000aa", "pool_type": 0, "pool_fee": 9970},
		},
	}
}

func TestPushAndListJobs(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/jobs", sampleJobRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]uint64
	decodeBody(t, rec, &created)
	require.Equal(t, uint64(0), created["index"])

	rec = f.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []jobJSON
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)
	require.True(t, listed[0].IsActive)
	require.Len(t, listed[0].Pools, 1)
	require.Equal(t, uint32(9970), listed[0].Pools[0].PoolFee)
}

func TestGetUnknownJobIs404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/jobs/7", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetActiveTogglesJob(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/jobs", sampleJobRequest())

	rec := f.do(t, http.MethodPut, "/api/jobs/0/active", map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := f.store.Get(0)
	require.NoError(t, err)
	require.False(t, job.IsActive)
}

func TestRemoveJob(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/jobs", sampleJobRequest())

	rec := f.do(t, http.MethodDelete, "/api/jobs/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, f.store.Len())
}

func TestGovernanceTransferBlockedByTimelock(t *testing.T) {
	f := newAPIFixture(t)
	candidate := "0x0000000000000000000000000000000000000002"

	rec := f.do(t, http.MethodPost, "/api/governance/pending", map[string]any{"candidate": candidate})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var state map[string]string
	rec = f.do(t, http.MethodGet, "/api/governance", nil)
	decodeBody(t, rec, &state)
	require.Equal(t, common.HexToAddress(candidate).Hex(), state["pending_governor"])

	// The one hour timelock has not elapsed.
	rec = f.do(t, http.MethodPost, "/api/governance/transfer", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, testGovernor, f.gov.Governor())
}

func TestStatusReportsJobCounts(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/jobs", sampleJobRequest())

	rec := f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	decodeBody(t, rec, &status)
	require.Equal(t, "serve", status["mode"])
	require.Equal(t, float64(1), status["jobs_total"])
	require.Equal(t, float64(1), status["jobs_active"])
}
