//go:build integration

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/testutil"
)

func TestIntegrationAgentRepository_CreateAndList(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	older := testutil.NewTestAgent(t, "owner-1")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := testutil.NewTestAgent(t, "owner-1")
	other := testutil.NewTestAgent(t, "owner-2")

	for _, a := range []*model.AgentConfig{older, newer, other} {
		if err := repo.CreateAgent(ctx, a); err != nil {
			t.Fatalf("CreateAgent failed: %v", err)
		}
	}

	agents, err := repo.ListAgentsByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListAgentsByOwner failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("got %d agents, want 2", len(agents))
	}
	if agents[0].ID != newer.ID || agents[1].ID != older.ID {
		t.Errorf("agents not ordered newest first: %s, %s", agents[0].ID, agents[1].ID)
	}

	empty, err := repo.ListAgentsByOwner(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListAgentsByOwner failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestIntegrationAgentRepository_GetByCredential(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	agent := testutil.NewTestAgent(t, "owner-1")
	if err := repo.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}

	got, err := repo.GetAgentByCredential(ctx, agent.BotCredential)
	if err != nil {
		t.Fatalf("GetAgentByCredential failed: %v", err)
	}
	if got.ID != agent.ID || got.TargetURL != agent.TargetURL || got.MinimumPrice != agent.MinimumPrice {
		t.Errorf("agent mismatch: got %+v, want %+v", got, agent)
	}

	if _, err := repo.GetAgentByCredential(ctx, "missing"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestIntegrationAgentRepository_DuplicateCredential(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	first := testutil.NewTestAgent(t, "owner-1")
	second := testutil.NewTestAgent(t, "owner-2")
	second.BotCredential = first.BotCredential

	if err := repo.CreateAgent(ctx, first); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if err := repo.CreateAgent(ctx, second); !errors.Is(err, ErrCredentialTaken) {
		t.Errorf("expected ErrCredentialTaken, got %v", err)
	}
}
