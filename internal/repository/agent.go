package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/laissez/laissez/internal/model"
)

// Common errors for agent repository operations.
var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrCredentialTaken = errors.New("bot credential already registered")
	ErrAgentExists     = errors.New("agent id already exists")
)

const agentColumns = `id, user_id, url, bot_credential, price, created_at`

// CreateAgent inserts a new agent configuration.
func (r *Repository) CreateAgent(ctx context.Context, agent *model.AgentConfig) error {
	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.OwnerUserID,
		agent.TargetURL,
		agent.BotCredential,
		agent.MinimumPrice,
		agent.CreatedAt,
	)
	if err != nil {
		switch violatedConstraint(err) {
		case "agents_bot_credential_key":
			return ErrCredentialTaken
		case "agents_pkey":
			return ErrAgentExists
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// ListAgentsByOwner returns every agent owned by the user, newest first.
// An owner with no agents gets an empty, non-nil slice.
func (r *Repository) ListAgentsByOwner(ctx context.Context, ownerUserID string) ([]*model.AgentConfig, error) {
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*model.AgentConfig, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agents: %w", err)
	}

	return agents, nil
}

// GetAgentByCredential finds the agent configured for a bot credential.
func (r *Repository) GetAgentByCredential(ctx context.Context, botCredential string) (*model.AgentConfig, error) {
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE bot_credential = $1
	`

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, botCredential))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent by credential: %w", err)
	}

	return agent, nil
}

func scanAgent(row pgx.Row) (*model.AgentConfig, error) {
	var agent model.AgentConfig
	err := row.Scan(
		&agent.ID,
		&agent.OwnerUserID,
		&agent.TargetURL,
		&agent.BotCredential,
		&agent.MinimumPrice,
		&agent.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &agent, nil
}
