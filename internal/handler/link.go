package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/laissez/laissez/internal/handler/dto"
	"github.com/laissez/laissez/internal/model"
)

// LinkService is the account-linking surface used by LinkHandler.
type LinkService interface {
	FindPendingLink(ctx context.Context, code string) (*model.PendingLink, error)
	CompleteLink(ctx context.Context, code, ownerUserID string) (*model.LinkedAccount, error)
}

// LinkHandler handles account linking endpoints.
type LinkHandler struct {
	svc    LinkService
	logger *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{svc: svc, logger: logger.With("handler", "link")}
}

// Complete handles POST /link/complete.
func (h *LinkHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req dto.CompleteLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CODE", "code is required")
		return
	}

	acct, err := h.svc.CompleteLink(r.Context(), code, userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CompleteLinkResponse{
		Success:        true,
		Platform:       string(acct.Platform),
		PlatformUserID: acct.PlatformUserID,
	})
}

// Get handles GET /link/{code}. It does not consume the code.
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	link, err := h.svc.FindPendingLink(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PendingLinkResponse{
		Success:        true,
		Platform:       string(link.Platform),
		PlatformUserID: link.PlatformUserID,
		ExpiresAt:      link.ExpiresAt,
	})
}
