package model

import "time"

// Platform identifies the chat platform an external identity belongs to.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
)

// DefaultLinkCodeTTL is how long a linking code stays consumable.
const DefaultLinkCodeTTL = 24 * time.Hour

// PendingLink is a short-lived linking code issued to an unlinked platform user.
// It is deleted when completed or when found expired.
type PendingLink struct {
	Code           string    `json:"code"`
	Platform       Platform  `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsExpired reports whether the code can no longer be consumed at time now.
func (p *PendingLink) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// LinkedAccount associates a platform identity with an owning user.
// (Platform, PlatformUserID) resolves to at most one owner.
type LinkedAccount struct {
	OwnerUserID    string    `json:"user_id"`
	Platform       Platform  `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
