package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/laissez/laissez/internal/agentproxy"
	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/repository"
	"github.com/laissez/laissez/internal/telegram"
)

// Relay routes.
const (
	RouteIgnored       = "ignored"
	RouteLinkIssued    = "link_issued"
	RouteNotConfigured = "not_configured"
	RouteAgent         = "agent"
	RouteFallback      = "fallback"
)

// NotConfiguredReply is sent when a linked user messages a bot with no agent.
const NotConfiguredReply = "This bot does not have an agent configured yet. Please try again later."

// Outcome describes how one inbound update was handled.
type Outcome struct {
	Route string
	// IgnoreReason is set for RouteIgnored.
	IgnoreReason string
	// FallbackReason is set for RouteFallback.
	FallbackReason string
	// ReplySent is false when there was nothing to send or the platform refused it.
	ReplySent bool
}

// Linker resolves and links chat identities.
type Linker interface {
	FindLinkedAccount(ctx context.Context, platform model.Platform, platformUserID string) (*model.LinkedAccount, error)
	IssueCode(ctx context.Context, platform model.Platform, platformUserID string) (string, string, error)
	TTL() time.Duration
}

// AgentLookup finds the agent configured for a bot.
type AgentLookup interface {
	GetAgentByCredential(ctx context.Context, botCredential string) (*model.AgentConfig, error)
}

// AgentCaller forwards a message to an agent.
type AgentCaller interface {
	Ask(ctx context.Context, targetURL, input string) (string, error)
}

// FallbackResponder produces a reply when the agent cannot. It never fails.
type FallbackResponder interface {
	Reply(ctx context.Context, text string) string
}

// MessageSender delivers replies to the chat platform.
type MessageSender interface {
	SendMessage(ctx context.Context, token string, chatID telegram.ID, text string) error
}

// UpdateDeduper records platform update ids to drop redeliveries.
type UpdateDeduper interface {
	MarkUpdateSeen(ctx context.Context, botHash string, updateID int64) (bool, error)
}

// RelayService implements the webhook routing decision for one inbound update.
type RelayService struct {
	links    Linker
	agents   AgentLookup
	proxy    AgentCaller
	fallback FallbackResponder
	sender   MessageSender
	dedupe   UpdateDeduper
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// RelayDeps groups RelayService collaborators. Dedupe may be nil.
type RelayDeps struct {
	Links    Linker
	Agents   AgentLookup
	Proxy    AgentCaller
	Fallback FallbackResponder
	Sender   MessageSender
	Dedupe   UpdateDeduper
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// NewRelayService creates a new RelayService.
func NewRelayService(deps RelayDeps) *RelayService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	return &RelayService{
		links:    deps.Links,
		agents:   deps.Agents,
		proxy:    deps.Proxy,
		fallback: deps.Fallback,
		sender:   deps.Sender,
		dedupe:   deps.Dedupe,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// HandleUpdate processes one update for the bot identified by botCredential.
// Every internal failure degrades to a best-effort reply; nothing is returned
// to the caller that should change the acknowledgment.
func (s *RelayService) HandleUpdate(ctx context.Context, botCredential string, update *telegram.Update) Outcome {
	s.metrics.IncWebhookReceived()
	bot := auth.QuickHash(botCredential)
	logger := s.logger.With("bot", bot)

	msg, ok := update.TextMessage()
	if !ok {
		s.metrics.IncWebhookIgnored(metrics.IgnoreNoText)
		return Outcome{Route: RouteIgnored, IgnoreReason: metrics.IgnoreNoText}
	}

	if s.isDuplicate(ctx, logger, bot, update.UpdateID) {
		s.metrics.IncWebhookIgnored(metrics.IgnoreDuplicate)
		return Outcome{Route: RouteIgnored, IgnoreReason: metrics.IgnoreDuplicate}
	}

	logger = logger.With("platform_user_id", string(msg.SenderID))
	out, reply := s.route(ctx, logger, botCredential, msg)

	if err := s.sender.SendMessage(ctx, botCredential, msg.ChatID, reply); err != nil {
		s.metrics.IncReplyFailed()
		logger.WarnContext(ctx, "webhook_reply_failed", "route", out.Route, "error", err)
		return out
	}
	out.ReplySent = true
	return out
}

func (s *RelayService) route(ctx context.Context, logger *slog.Logger, botCredential string, msg telegram.TextMessage) (Outcome, string) {
	platformUserID := string(msg.SenderID)

	_, err := s.links.FindLinkedAccount(ctx, model.PlatformTelegram, platformUserID)
	if errors.Is(err, ErrNotLinked) {
		_, linkURL, err := s.links.IssueCode(ctx, model.PlatformTelegram, platformUserID)
		if err != nil {
			return s.fallbackOutcome(ctx, logger, metrics.FallbackStore, err, msg.Text)
		}
		return Outcome{Route: RouteLinkIssued}, linkInstructions(linkURL, s.links.TTL())
	}
	if err != nil {
		return s.fallbackOutcome(ctx, logger, metrics.FallbackStore, err, msg.Text)
	}

	agent, err := s.agents.GetAgentByCredential(ctx, botCredential)
	if errors.Is(err, repository.ErrAgentNotFound) {
		s.metrics.IncAgentNotConfigured()
		logger.InfoContext(ctx, "webhook_agent_not_configured")
		return Outcome{Route: RouteNotConfigured}, NotConfiguredReply
	}
	if err != nil {
		return s.fallbackOutcome(ctx, logger, metrics.FallbackStore, err, msg.Text)
	}

	start := time.Now()
	output, err := s.proxy.Ask(ctx, agent.TargetURL, msg.Text)
	s.metrics.ObserveAgentCall(time.Since(start), err == nil)
	if err != nil {
		return s.fallbackOutcome(ctx, logger.With("agent_id", agent.ID), agentproxy.Reason(err), err, msg.Text)
	}

	logger.DebugContext(ctx, "webhook_agent_replied", "agent_id", agent.ID, "duration_ms", time.Since(start).Milliseconds())
	return Outcome{Route: RouteAgent}, output
}

func (s *RelayService) fallbackOutcome(ctx context.Context, logger *slog.Logger, reason string, cause error, text string) (Outcome, string) {
	s.metrics.IncFallback(reason)
	logger.WarnContext(ctx, "webhook_fallback", "reason", reason, "error", cause)
	return Outcome{Route: RouteFallback, FallbackReason: reason}, s.fallback.Reply(ctx, text)
}

// isDuplicate reports whether the update was already handled. Dedupe
// failures are logged and treated as new so messages are never dropped.
func (s *RelayService) isDuplicate(ctx context.Context, logger *slog.Logger, bot string, updateID int64) bool {
	if s.dedupe == nil || updateID == 0 {
		return false
	}
	isNew, err := s.dedupe.MarkUpdateSeen(ctx, bot, updateID)
	if err != nil {
		logger.WarnContext(ctx, "webhook_dedupe_failed", "update_id", updateID, "error", err)
		return false
	}
	return !isNew
}

func linkInstructions(linkURL string, ttl time.Duration) string {
	return fmt.Sprintf("To chat with this bot, link your account first:\n%s\n\nThis link expires in %s.", linkURL, humanizeTTL(ttl))
}

func humanizeTTL(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		if h := int(ttl / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case ttl >= time.Minute && ttl%time.Minute == 0:
		if m := int(ttl / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	default:
		return ttl.String()
	}
}
