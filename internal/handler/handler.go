// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/handler/dto"
	"github.com/laissez/laissez/internal/service"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.NewErrorResponse(code, message))
}

// decodeJSON reads a JSON request body. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeDecodeError distinguishes oversized bodies from malformed ones.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
}

// requireUserID returns the authenticated caller, writing 401 when absent.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing bearer token")
		return "", false
	}
	return userID, true
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrPriceTooLow):
		writeError(w, http.StatusBadRequest, "PRICE_TOO_LOW", "Price must be at least $0.001")
	case errors.Is(err, service.ErrInvalidAgentURL):
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
	case errors.Is(err, service.ErrURLTooLong):
		writeError(w, http.StatusBadRequest, "URL_TOO_LONG", "agent URL exceeds maximum length")
	case errors.Is(err, service.ErrMissingCredential):
		writeError(w, http.StatusBadRequest, "MISSING_CREDENTIAL", "bot_credential is required")
	case errors.Is(err, service.ErrInvalidCredential):
		writeError(w, http.StatusBadRequest, "INVALID_CREDENTIAL", "bot_credential is not a valid bot token")
	case errors.Is(err, service.ErrCredentialTaken):
		writeError(w, http.StatusConflict, "CREDENTIAL_TAKEN", "bot credential is already registered")
	case errors.Is(err, service.ErrLinkCodeNotFound):
		writeError(w, http.StatusNotFound, "LINK_CODE_NOT_FOUND", "link code not found")
	case errors.Is(err, service.ErrLinkCodeExpired):
		writeError(w, http.StatusGone, "LINK_CODE_EXPIRED", "link code has expired")
	case errors.Is(err, service.ErrWebhookRegistration):
		logger.ErrorContext(r.Context(), "webhook_registration_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "WEBHOOK_REGISTRATION_FAILED", err.Error())
	default:
		logger.ErrorContext(r.Context(), "internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process request: "+err.Error())
	}
}

var (
	_ LinkService  = (*service.LinkService)(nil)
	_ AgentService = (*service.AgentService)(nil)
	_ UpdateRelay  = (*service.RelayService)(nil)
)
