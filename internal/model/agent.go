// Package model defines domain entities for the application.
package model

import "time"

// MinAgentPrice is the lowest per-message price an agent may be configured with.
const MinAgentPrice = 0.001

// AgentConfig is an operator-owned binding between a chat bot credential and
// the downstream agent endpoint that answers its messages.
// Records are immutable once created.
type AgentConfig struct {
	ID            string    `json:"id"`
	OwnerUserID   string    `json:"user_id"`
	TargetURL     string    `json:"url"`
	BotCredential string    `json:"bot_credential"`
	MinimumPrice  float64   `json:"price"`
	CreatedAt     time.Time `json:"created_at"`
}

// PriceAllowed reports whether price meets the configured floor.
func PriceAllowed(price float64) bool {
	return price >= MinAgentPrice
}
