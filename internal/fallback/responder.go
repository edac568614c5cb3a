// Package fallback produces replies when a configured agent cannot answer.
package fallback

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// Apology is returned whenever the model is not configured or fails.
	Apology = "Sorry, the agent for this bot is unavailable right now. Please try again later."

	// Notice prefixes model replies so users know the agent did not answer.
	Notice = "(The agent is unavailable, so a general assistant is replying instead.)\n\n"

	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 20 * time.Second
	maxTokens      = 512
)

const systemPrompt = "You are a stand-in assistant for a chat bot whose own agent is temporarily " +
	"unreachable. Answer the user's message briefly and helpfully, and say plainly that you are a " +
	"substitute for the bot's usual agent. Do not claim to have performed any action on the user's behalf."

// Config holds fallback model settings. An empty APIKey disables the model.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Responder answers with a general-purpose model. Reply never fails.
type Responder struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Responder.
func New(cfg Config, logger *slog.Logger) *Responder {
	r := &Responder{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if r.model == "" {
		r.model = defaultModel
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if cfg.APIKey == "" {
		return r
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// A failed call degrades to Apology; it is never retried.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := openai.NewClient(opts...)
	r.client = &client
	return r
}

// Enabled reports whether a model is configured.
func (r *Responder) Enabled() bool {
	return r.client != nil
}

// Reply returns a substitute answer for text.
func (r *Responder) Reply(ctx context.Context, text string) string {
	if r.client == nil {
		return Apology
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		r.logger.WarnContext(ctx, "fallback_model_failed", "model", r.model, "error", err)
		return Apology
	}
	if len(resp.Choices) == 0 {
		r.logger.WarnContext(ctx, "fallback_model_empty", "model", r.model)
		return Apology
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Apology
	}
	return Notice + content
}
