package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ritzau/kpi-graph/pkg/logging"
	"github.com/ritzau/kpi-graph/pkg/model"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every non-2xx API response
type ErrorResponse struct {
	Error  string   `json:"error"`
	Reason string   `json:"reason,omitempty"` // Cycle rejections only
	Path   []string `json:"path,omitempty"`   // Cycle rejections only
}

// requestError is a malformed request, reported as 400
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

// writeError maps engine and request errors to HTTP status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		reqErr   *requestError
		cycleErr *model.CycleDetectedError
	)
	switch {
	case errors.As(err, &reqErr):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrSelfLoop), errors.Is(err, model.ErrInvalidEdge):
		status = http.StatusBadRequest
	case errors.As(err, &cycleErr):
		status = http.StatusConflict
		resp.Reason = cycleErr.Reason
		resp.Path = cycleErr.Path
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "unexpected API error", "error", err)
	}
	writeJSON(w, status, resp)
}
