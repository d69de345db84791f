package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/bookmarks/internal/apperror"
)

// JSON responses.
//
// The site is mostly HTML; JSON goes to two callers: the like script,
// which only reads {"status": ...}, and /account/me/, which gets an
// ErrorResponse on failure.

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// StatusResponse is the body returned by the like toggle.
type StatusResponse struct {
	Status string `json:"status"`
}

var (
	statusOK    = StatusResponse{Status: "ok"}
	statusError = StatusResponse{Status: "error"}
)

// writeJSON sends data as JSON. Headers and status go out before the body,
// so an encoding failure can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to an HTTP status and a machine-readable
// kind. Anything that is not an apperror is a 500.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400 validation_error
//	apperror.ErrUnauthorized → 401 unauthorized
//	apperror.ErrNotFound     → 404 not_found
//	apperror.ErrConflict     → 409 conflict
//	anything else            → 500 internal_error
//
// errors.Is walks the %w chain, so a repository error wrapped twice on
// its way up still maps to its sentinel.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns a message that is safe to show the client. Raw
// errors can carry SQL or file paths, so only AppError messages pass.
func publicMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal error occurred"
}

// writeError sends a domain error as a JSON ErrorResponse.
func writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	writeJSON(w, status, ErrorResponse{Error: kind, Message: publicMessage(err)})
}
