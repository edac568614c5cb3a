package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/service"
	"github.com/laissez/laissez/internal/telegram"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser injects an authenticated identity the way the auth middleware does.
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.ContextWithIdentity(r.Context(), &model.Identity{UserID: userID}))
}

type fakeAgentService struct {
	mu         sync.Mutex
	createArgs []service.CreateAgentInput
	listArgs   []string
	agents     []*model.AgentConfig
	err        error
}

func (f *fakeAgentService) CreateAgent(_ context.Context, in service.CreateAgentInput) (*service.CreateAgentOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createArgs = append(f.createArgs, in)
	if f.err != nil {
		return nil, f.err
	}
	agent := &model.AgentConfig{
		ID:            "01HZX",
		OwnerUserID:   in.OwnerUserID,
		TargetURL:     in.TargetURL,
		BotCredential: in.BotCredential,
		MinimumPrice:  in.Price,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	webhookURL := service.BuildWebhookURL(in.PublicBaseURL, in.BotCredential)
	return &service.CreateAgentOutput{
		Agent:            agent,
		WebhookURL:       webhookURL,
		ProviderResponse: &telegram.WebhookInfo{URL: webhookURL},
	}, nil
}

func (f *fakeAgentService) ListAgents(_ context.Context, owner string) ([]*model.AgentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listArgs = append(f.listArgs, owner)
	if f.err != nil {
		return nil, f.err
	}
	return f.agents, nil
}

func (f *fakeAgentService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createArgs) + len(f.listArgs)
}

type fakeLinkService struct {
	mu       sync.Mutex
	complete []string
	pending  *model.PendingLink
	err      error
}

func (f *fakeLinkService) FindPendingLink(_ context.Context, code string) (*model.PendingLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pending, nil
}

func (f *fakeLinkService) CompleteLink(_ context.Context, code, owner string) (*model.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = append(f.complete, code+"|"+owner)
	if f.err != nil {
		return nil, f.err
	}
	return &model.LinkedAccount{
		OwnerUserID:    owner,
		Platform:       model.PlatformTelegram,
		PlatformUserID: "55",
	}, nil
}

func (f *fakeLinkService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.complete)
}

type fakeRelay struct {
	mu      sync.Mutex
	creds   []string
	updates []*telegram.Update
	outcome service.Outcome
	panics  bool
}

func (f *fakeRelay) HandleUpdate(_ context.Context, cred string, u *telegram.Update) service.Outcome {
	if f.panics {
		panic("relay exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, cred)
	f.updates = append(f.updates, u)
	return f.outcome
}

func (f *fakeRelay) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeVerifier struct {
	users map[string]string
}

func (f fakeVerifier) Verify(_ context.Context, token string) (*model.Identity, error) {
	if id, ok := f.users[token]; ok {
		return &model.Identity{UserID: id}, nil
	}
	return nil, auth.ErrUnauthenticated
}
