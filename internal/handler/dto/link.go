package dto

import "time"

// CompleteLinkRequest is the body of POST /link/complete.
type CompleteLinkRequest struct {
	Code string `json:"code"`
}

// CompleteLinkResponse is returned by POST /link/complete.
type CompleteLinkResponse struct {
	Success        bool   `json:"success"`
	Platform       string `json:"platform"`
	PlatformUserID string `json:"platform_user_id"`
}

// PendingLinkResponse is returned by GET /link/{code} so the dashboard can
// show what is about to be linked.
type PendingLinkResponse struct {
	Success        bool      `json:"success"`
	Platform       string    `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// WebhookAck is the body of every webhook response.
type WebhookAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
