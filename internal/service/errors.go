// Package service provides business logic for the application.
package service

import "errors"

// Validation errors (400).
var (
	ErrPriceTooLow       = errors.New("price must be at least 0.001")
	ErrInvalidAgentURL   = errors.New("invalid agent URL")
	ErrURLTooLong        = errors.New("agent URL too long")
	ErrMissingCredential = errors.New("bot_credential is required")
	ErrInvalidCredential = errors.New("bot_credential is not a valid bot token")
)

// Lookup and state errors.
var (
	ErrCredentialTaken     = errors.New("bot credential already registered")
	ErrLinkCodeNotFound    = errors.New("link code not found")
	ErrLinkCodeExpired     = errors.New("link code expired")
	ErrNotLinked           = errors.New("platform identity not linked")
	ErrWebhookRegistration = errors.New("failed to register webhook")
)
