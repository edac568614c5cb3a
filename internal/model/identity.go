package model

import "time"

// Identity is the authenticated caller resolved from a bearer credential.
type Identity struct {
	UserID string `json:"user_id"`
	// ExpiresAt is the credential expiry when known; zero otherwise.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}
