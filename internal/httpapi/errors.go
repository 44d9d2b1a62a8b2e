package httpapi

import (
	"encoding/json"
	"net/http"

	"companiond/internal/manager"
	"companiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsBusy(err):
		IncrementBackpressure("session_busy")
		return http.StatusTooManyRequests
	case manager.IsNotSelected(err), manager.IsNotGenerating(err), manager.IsFailed(err):
		return http.StatusConflict
	case manager.IsClosed(err):
		return http.StatusGone
	case manager.IsBudgetExceeded(err):
		return http.StatusRequestEntityTooLarge
	case manager.IsConfigError(err):
		return http.StatusUnprocessableEntity
	case manager.IsModelNotFound(err), manager.IsFileNotFound(err):
		return http.StatusNotFound
	case manager.IsBackendInit(err), manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
