// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tooldesk/tooldesk/internal/shared"
)

// InternalDetail is returned for every unclassified failure.
const InternalDetail = "Database operation failed."

// RespondError maps the shared error taxonomy to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	msg := shared.Message(err)
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", fallback(msg, "Unauthorized."))
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", fallback(msg, "Access denied."))
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", fallback(msg, "Invalid request."))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", fallback(msg, "Resource not found."))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", fallback(msg, "Conflict."))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", InternalDetail)
	}
}

// StatusFor returns the HTTP status RespondError would write for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fallback(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}
