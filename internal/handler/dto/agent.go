package dto

import "github.com/laissez/laissez/internal/model"

// CreateAgentRequest is the body of POST /agents. BotToken is accepted as an
// alias of BotCredential.
type CreateAgentRequest struct {
	URL           string   `json:"url"`
	BotCredential string   `json:"bot_credential"`
	BotToken      string   `json:"bot_token"`
	Price         *float64 `json:"price"`
}

// Credential returns the bot credential from either field.
func (r *CreateAgentRequest) Credential() string {
	if r.BotCredential != "" {
		return r.BotCredential
	}
	return r.BotToken
}

// PriceOrZero returns the requested price; a missing price is zero and
// therefore below the floor.
func (r *CreateAgentRequest) PriceOrZero() float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

// WebhookInfo describes the webhook registered for a new agent.
type WebhookInfo struct {
	WebhookURL       string `json:"webhook_url"`
	ProviderResponse any    `json:"provider_response"`
}

// CreateAgentResponse is returned by POST /agents.
type CreateAgentResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Data        *model.AgentConfig `json:"data"`
	WebhookInfo WebhookInfo        `json:"webhook_info"`
}

// ListAgentsResponse is returned by GET /agents.
type ListAgentsResponse struct {
	Success bool                 `json:"success"`
	Data    []*model.AgentConfig `json:"data"`
}
