package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/identity"
	"github.com/pkordes/rideplanner/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeServiceError maps a service error to its HTTP status. Anything not
// recognised is logged and reported as a bare 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", unwrapMessage(err))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "you do not own this ride")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "conflict", unwrapMessage(err))
	case errors.Is(err, domain.ErrWriteFailed):
		s.log.WarnContext(r.Context(), "store rejected write", "error", err)
		writeError(w, http.StatusBadGateway, "write_failed", unwrapMessage(err))
	case errors.Is(err, domain.ErrSubscriptionFailed):
		s.log.WarnContext(r.Context(), "store feed failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "document store unavailable")
	case errors.Is(err, service.ErrUploadsDisabled):
		writeError(w, http.StatusServiceUnavailable, "uploads_disabled", err.Error())
	default:
		s.log.ErrorContext(r.Context(), "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// unwrapMessage drops the "service.Type.Method: " prefixes and the sentinel
// text from an error, leaving the part meant for the caller.
// e.g. "service.RideService.Create: validation error: title is required" → "title is required"
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for strings.HasPrefix(msg, "service.") {
		_, rest, ok := strings.Cut(msg, ": ")
		if !ok {
			break
		}
		msg = rest
	}
	for _, sentinel := range []error{domain.ErrValidation, domain.ErrNotFound, domain.ErrInvalidState} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}

// decodeBody reads a JSON body into dst. On failure it writes the response
// and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "bad_request", "request body is required")
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
	}
	return false
}

// actingUser returns the signed-in user's id or writes 401.
func actingUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, ok := identity.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
		return "", false
	}
	return u.ID, true
}
