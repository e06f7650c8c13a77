package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fuzzyscore/db"
	"fuzzyscore/fuzzy"
	"fuzzyscore/pipeline"
	"fuzzyscore/scoring"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Kind   string              `json:"kind"`
	Record *int                `json:"record,omitempty"`
	Issues []pipeline.RowIssue `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scoring.ErrNoStore):
		return http.StatusServiceUnavailable
	}

	switch scoring.ErrorKind(err) {
	case "domain", "no_rule_fired":
		return http.StatusUnprocessableEntity
	case "empty_batch", "upload":
		return http.StatusBadRequest
	case "canceled":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err as JSON. Internal errors are logged and hidden.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: scoring.ErrorKind(err)}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		resp.Kind = "upload"
	case errors.Is(err, db.ErrNotFound):
		resp.Kind = "not_found"
	case status == http.StatusInternalServerError:
		h.logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		resp.Error = "internal server error"
	}

	var recErr *fuzzy.RecordError
	if errors.As(err, &recErr) {
		idx := recErr.Index
		resp.Record = &idx
	}
	var invalid *pipeline.InvalidRowsError
	if errors.As(err, &invalid) {
		resp.Issues = invalid.Issues
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "request"})
}
