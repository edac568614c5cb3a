package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/handler/dto"
	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/service"
	"github.com/laissez/laissez/internal/telegram"
)

// secretTokenHeader carries the secret_token registered with setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateRelay handles one parsed update for a bot.
type UpdateRelay interface {
	HandleUpdate(ctx context.Context, botCredential string, update *telegram.Update) service.Outcome
}

// WebhookHandler receives chat platform deliveries. It always answers 200
// so the platform never redelivers.
type WebhookHandler struct {
	relay     UpdateRelay
	secretKey []byte
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. An empty secretKey
// disables inbound secret verification.
func NewWebhookHandler(relay UpdateRelay, secretKey []byte, recorder metrics.Recorder, logger *slog.Logger) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &WebhookHandler{
		relay:     relay,
		secretKey: secretKey,
		metrics:   recorder,
		logger:    logger.With("handler", "webhook"),
	}
}

// Receive handles POST /webhook/{bot_credential}.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer func() {
		if rvr := recover(); rvr != nil {
			h.logger.ErrorContext(ctx, "webhook_panic", "panic", rvr)
			writeAck(w, "internal error")
		}
	}()

	credential, err := url.PathUnescape(chi.URLParam(r, "bot_credential"))
	if err != nil || credential == "" {
		h.reject(ctx, w, metrics.IgnoreInvalidPayload, "missing bot credential")
		return
	}
	bot := auth.QuickHash(credential)

	if !auth.CheckWebhookSecret(h.secretKey, credential, r.Header.Get(secretTokenHeader)) {
		h.logger.WarnContext(ctx, "webhook_secret_mismatch", "bot", bot)
		h.reject(ctx, w, metrics.IgnoreBadSecret, "invalid secret token")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook_read_failed", "bot", bot, "error", err)
		h.reject(ctx, w, metrics.IgnoreInvalidPayload, "unreadable body")
		return
	}

	update, err := telegram.ParseUpdate(body)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook_invalid_payload", "bot", bot, "error", err)
		h.reject(ctx, w, metrics.IgnoreInvalidPayload, "invalid update payload")
		return
	}

	// The platform may hang up before the agent answers; the reply is
	// still owed to the user.
	out := h.relay.HandleUpdate(context.WithoutCancel(ctx), credential, update)
	h.logger.InfoContext(ctx, "webhook_handled",
		"bot", bot,
		"update_id", update.UpdateID,
		"route", out.Route,
		"reply_sent", out.ReplySent,
	)
	writeAck(w, "")
}

func (h *WebhookHandler) reject(ctx context.Context, w http.ResponseWriter, reason, message string) {
	h.metrics.IncWebhookReceived()
	h.metrics.IncWebhookIgnored(reason)
	writeAck(w, message)
}

// writeAck always uses 200; errorMessage is empty on success.
func writeAck(w http.ResponseWriter, errorMessage string) {
	writeJSON(w, http.StatusOK, dto.WebhookAck{OK: errorMessage == "", Error: errorMessage})
}
