package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/laissez/laissez/internal/agentproxy"
	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/repository"
	"github.com/laissez/laissez/internal/telegram"
	"github.com/oklog/ulid/v2"
)

const maxAgentURLLength = 2048

// WebhookPath is where the platform delivers updates for a bot.
const WebhookPath = "/api/webhook/"

// AgentStore persists agent configurations.
type AgentStore interface {
	CreateAgent(ctx context.Context, agent *model.AgentConfig) error
	ListAgentsByOwner(ctx context.Context, ownerUserID string) ([]*model.AgentConfig, error)
	GetAgentByCredential(ctx context.Context, botCredential string) (*model.AgentConfig, error)
}

// WebhookRegistrar configures the chat platform side of a bot.
type WebhookRegistrar interface {
	ValidateCredential(token string) error
	RegisterWebhook(ctx context.Context, token, webhookURL, secret string) (*telegram.WebhookInfo, error)
}

// AgentService handles agent configuration.
type AgentService struct {
	store     AgentStore
	registrar WebhookRegistrar
	targets   agentproxy.TargetPolicy
	secretKey []byte
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewAgentService creates a new AgentService. secretKey may be empty, in
// which case webhooks are registered without a secret token.
func NewAgentService(store AgentStore, registrar WebhookRegistrar, targets agentproxy.TargetPolicy, secretKey []byte, recorder metrics.Recorder, logger *slog.Logger) *AgentService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AgentService{
		store:     store,
		registrar: registrar,
		targets:   targets,
		secretKey: secretKey,
		metrics:   recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateAgentInput defines input for creating an agent.
type CreateAgentInput struct {
	OwnerUserID   string
	TargetURL     string
	BotCredential string
	Price         float64
	// PublicBaseURL is the externally reachable API origin used for the webhook URL.
	PublicBaseURL string
}

// CreateAgentOutput is the stored agent plus the platform's webhook view.
type CreateAgentOutput struct {
	Agent            *model.AgentConfig
	WebhookURL       string
	ProviderResponse *telegram.WebhookInfo
}

// CreateAgent validates the input, registers the bot's webhook, then stores
// the configuration. Nothing is written when validation or registration fails.
func (s *AgentService) CreateAgent(ctx context.Context, input CreateAgentInput) (*CreateAgentOutput, error) {
	if math.IsNaN(input.Price) || math.IsInf(input.Price, 0) || !model.PriceAllowed(input.Price) {
		return nil, ErrPriceTooLow
	}

	targetURL := strings.TrimSpace(input.TargetURL)
	if err := s.validateTargetURL(ctx, targetURL); err != nil {
		return nil, err
	}

	credential := strings.TrimSpace(input.BotCredential)
	if credential == "" {
		return nil, ErrMissingCredential
	}
	if err := s.registrar.ValidateCredential(credential); err != nil {
		return nil, ErrInvalidCredential
	}

	// Checked before touching the platform so an existing bot's webhook is left alone.
	if _, err := s.store.GetAgentByCredential(ctx, credential); err == nil {
		return nil, ErrCredentialTaken
	} else if !errors.Is(err, repository.ErrAgentNotFound) {
		return nil, fmt.Errorf("failed to check bot credential: %w", err)
	}

	webhookURL := BuildWebhookURL(input.PublicBaseURL, credential)
	info, err := s.registrar.RegisterWebhook(ctx, credential, webhookURL, auth.WebhookSecret(s.secretKey, credential))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookRegistration, err)
	}

	agent := &model.AgentConfig{
		ID:            ulid.Make().String(),
		OwnerUserID:   input.OwnerUserID,
		TargetURL:     targetURL,
		BotCredential: credential,
		MinimumPrice:  input.Price,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrCredentialTaken) {
			return nil, ErrCredentialTaken
		}
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s.metrics.IncAgentCreated()
	s.logger.InfoContext(ctx, "agent_created",
		"agent_id", agent.ID,
		"owner", agent.OwnerUserID,
		"bot", auth.QuickHash(credential),
		"agent_host", agentproxy.Host(targetURL),
	)

	return &CreateAgentOutput{
		Agent:            agent,
		WebhookURL:       webhookURL,
		ProviderResponse: info,
	}, nil
}

// ListAgents returns the caller's agents, newest first.
func (s *AgentService) ListAgents(ctx context.Context, ownerUserID string) ([]*model.AgentConfig, error) {
	agents, err := s.store.ListAgentsByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

func (s *AgentService) validateTargetURL(ctx context.Context, targetURL string) error {
	if targetURL == "" {
		return ErrInvalidAgentURL
	}
	if len(targetURL) > maxAgentURLLength {
		return ErrURLTooLong
	}
	if err := s.targets.Validate(ctx, targetURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAgentURL, err)
	}
	return nil
}

// BuildWebhookURL joins the public API origin and the bot's webhook path.
func BuildWebhookURL(publicBaseURL, botCredential string) string {
	return strings.TrimRight(publicBaseURL, "/") + WebhookPath + url.PathEscape(botCredential)
}
