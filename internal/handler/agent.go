package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/laissez/laissez/internal/handler/dto"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/service"
)

// AgentService is the agent configuration surface used by AgentHandler.
type AgentService interface {
	CreateAgent(ctx context.Context, input service.CreateAgentInput) (*service.CreateAgentOutput, error)
	ListAgents(ctx context.Context, ownerUserID string) ([]*model.AgentConfig, error)
}

// AgentHandler handles agent configuration endpoints.
type AgentHandler struct {
	svc AgentService
	// webhookBaseURL overrides the origin derived from request headers.
	webhookBaseURL string
	logger         *slog.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(svc AgentService, webhookBaseURL string, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		svc:            svc,
		webhookBaseURL: strings.TrimRight(webhookBaseURL, "/"),
		logger:         logger.With("handler", "agent"),
	}
}

// Create handles POST /agents.
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req dto.CreateAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	out, err := h.svc.CreateAgent(r.Context(), service.CreateAgentInput{
		OwnerUserID:   userID,
		TargetURL:     req.URL,
		BotCredential: req.Credential(),
		Price:         req.PriceOrZero(),
		PublicBaseURL: h.publicBaseURL(r),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CreateAgentResponse{
		Success: true,
		Message: "Agent configuration saved successfully",
		Data:    out.Agent,
		WebhookInfo: dto.WebhookInfo{
			WebhookURL:       out.WebhookURL,
			ProviderResponse: out.ProviderResponse,
		},
	})
}

// List handles GET /agents.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	agents, err := h.svc.ListAgents(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAgentsResponse{Success: true, Data: agents})
}

func (h *AgentHandler) publicBaseURL(r *http.Request) string {
	if h.webhookBaseURL != "" {
		return h.webhookBaseURL
	}
	return PublicBaseURL(r)
}

// PublicBaseURL derives the externally visible origin of r. Forwarded
// headers from a proxy win; otherwise the Host header is used with https
// unless the host is local.
func PublicBaseURL(r *http.Request) string {
	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}

	scheme := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if scheme == "" {
		scheme = "https"
		if isLocalHost(host) {
			scheme = "http"
		}
	}

	return strings.ToLower(scheme) + "://" + host
}

// firstHeaderValue returns the first entry of a comma separated header
// appended to by a proxy chain.
func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func isLocalHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
