package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/repository"
	"github.com/laissez/laissez/internal/telegram"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type linkedKey struct {
	platform model.Platform
	userID   string
}

// memStore is an in-memory AgentStore and LinkStore with the same error
// contract as the Postgres repository.
type memStore struct {
	mu      sync.Mutex
	agents  []*model.AgentConfig
	pending map[string]*model.PendingLink
	linked  map[linkedKey]*model.LinkedAccount

	// err, when set, is returned by every method.
	err error
	// createAgentCalls counts write attempts.
	createAgentCalls int
}

func newMemStore() *memStore {
	return &memStore{
		pending: map[string]*model.PendingLink{},
		linked:  map[linkedKey]*model.LinkedAccount{},
	}
}

func (m *memStore) CreateAgent(_ context.Context, agent *model.AgentConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createAgentCalls++
	if m.err != nil {
		return m.err
	}
	for _, a := range m.agents {
		if a.BotCredential == agent.BotCredential {
			return repository.ErrCredentialTaken
		}
	}
	m.agents = append(m.agents, agent)
	return nil
}

func (m *memStore) ListAgentsByOwner(_ context.Context, owner string) ([]*model.AgentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*model.AgentConfig, 0)
	for i := len(m.agents) - 1; i >= 0; i-- {
		if m.agents[i].OwnerUserID == owner {
			out = append(out, m.agents[i])
		}
	}
	return out, nil
}

func (m *memStore) GetAgentByCredential(_ context.Context, cred string) (*model.AgentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, a := range m.agents {
		if a.BotCredential == cred {
			return a, nil
		}
	}
	return nil, repository.ErrAgentNotFound
}

func (m *memStore) GetLinkedAccount(_ context.Context, platform model.Platform, userID string) (*model.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	acct, ok := m.linked[linkedKey{platform, userID}]
	if !ok {
		return nil, repository.ErrLinkedAccountNotFound
	}
	return acct, nil
}

func (m *memStore) CreatePendingLink(_ context.Context, link *model.PendingLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.pending[link.Code]; ok {
		return repository.ErrLinkCodeExists
	}
	m.pending[link.Code] = link
	return nil
}

func (m *memStore) GetPendingLink(_ context.Context, code string, now time.Time) (*model.PendingLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	link, ok := m.pending[code]
	if !ok {
		return nil, repository.ErrPendingLinkNotFound
	}
	if link.IsExpired(now) {
		delete(m.pending, code)
		return nil, repository.ErrPendingLinkExpired
	}
	return link, nil
}

func (m *memStore) CompletePendingLink(_ context.Context, code, owner string, now time.Time) (*model.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	link, ok := m.pending[code]
	if !ok {
		return nil, repository.ErrPendingLinkNotFound
	}
	delete(m.pending, code)
	if link.IsExpired(now) {
		return nil, repository.ErrPendingLinkExpired
	}

	key := linkedKey{link.Platform, link.PlatformUserID}
	acct, ok := m.linked[key]
	if !ok {
		acct = &model.LinkedAccount{Platform: link.Platform, PlatformUserID: link.PlatformUserID, CreatedAt: now}
		m.linked[key] = acct
	}
	acct.OwnerUserID = owner
	acct.UpdatedAt = now
	copied := *acct
	return &copied, nil
}

func (m *memStore) pendingFor(userID string) []*model.PendingLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingLink
	for _, p := range m.pending {
		if p.PlatformUserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (m *memStore) link(userID, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linked[linkedKey{model.PlatformTelegram, userID}] = &model.LinkedAccount{
		OwnerUserID:    owner,
		Platform:       model.PlatformTelegram,
		PlatformUserID: userID,
	}
}

type fakeRegistrar struct {
	mu      sync.Mutex
	calls   []registerCall
	err     error
	invalid bool
}

type registerCall struct {
	token, url, secret string
}

func (f *fakeRegistrar) ValidateCredential(string) error {
	if f.invalid {
		return telegram.ErrInvalidCredential
	}
	return nil
}

func (f *fakeRegistrar) RegisterWebhook(_ context.Context, token, url, secret string) (*telegram.WebhookInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, registerCall{token, url, secret})
	if f.err != nil {
		return nil, f.err
	}
	return &telegram.WebhookInfo{URL: url}, nil
}

type fakeProxy struct {
	mu     sync.Mutex
	calls  []string
	output string
	err    error
}

func (f *fakeProxy) Ask(_ context.Context, targetURL, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, targetURL+"|"+input)
	return f.output, f.err
}

func (f *fakeProxy) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFallback struct {
	reply string
	calls int
}

func (f *fakeFallback) Reply(context.Context, string) string {
	f.calls++
	return f.reply
}

type sentMessage struct {
	token  string
	chatID telegram.ID
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, token string, chatID telegram.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{token, chatID, text})
	return nil
}

func (f *fakeSender) last() (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type fakeDeduper struct {
	seen map[int64]bool
	err  error
}

func (f *fakeDeduper) MarkUpdateSeen(_ context.Context, _ string, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

var errStoreDown = errors.New("connection refused")
