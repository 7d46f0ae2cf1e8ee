// Package handler implements the HTTP admin API. Mutating endpoints
// act with the configured governor identity; authentication happens in
// the middleware layer before a request reaches a handler.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to the appropriate HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrUnknownFeed):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrZeroAddress),
		errors.Is(err, domain.ErrLengthMismatch),
		errors.Is(err, domain.ErrBadPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTooEarly),
		errors.Is(err, domain.ErrNoPendingGovernor),
		errors.Is(err, domain.ErrJobInactive),
		errors.Is(err, domain.ErrNoLongerProfitable),
		errors.Is(err, domain.ErrLockHeld),
		errors.Is(err, domain.ErrStalePayload),
		errors.Is(err, domain.ErrNotPairManager):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseLimit extracts the limit query parameter. Defaults to 50,
// capped at 500.
func parseLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

// pathIndex extracts a numeric path parameter using Go 1.22+ built-in
// routing (http.Request.PathValue).
func pathIndex(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}
