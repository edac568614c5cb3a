package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/repository"
)

const (
	linkCodeBytes      = 24
	maxLinkCodeRetries = 3
)

// LinkStore persists pending links and linked accounts.
type LinkStore interface {
	GetLinkedAccount(ctx context.Context, platform model.Platform, platformUserID string) (*model.LinkedAccount, error)
	CreatePendingLink(ctx context.Context, link *model.PendingLink) error
	GetPendingLink(ctx context.Context, code string, now time.Time) (*model.PendingLink, error)
	CompletePendingLink(ctx context.Context, code, ownerUserID string, now time.Time) (*model.LinkedAccount, error)
}

// LinkService handles account linking between chat identities and dashboard users.
type LinkService struct {
	store         LinkStore
	publicBaseURL string
	ttl           time.Duration
	metrics       metrics.Recorder
	logger        *slog.Logger
	now           func() time.Time
}

// NewLinkService creates a new LinkService. publicBaseURL is the dashboard
// origin serving the /link page.
func NewLinkService(store LinkStore, publicBaseURL string, ttl time.Duration, recorder metrics.Recorder, logger *slog.Logger) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if ttl <= 0 {
		ttl = model.DefaultLinkCodeTTL
	}
	return &LinkService{
		store:         store,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		ttl:           ttl,
		metrics:       recorder,
		logger:        logger,
		now:           time.Now,
	}
}

// TTL returns how long issued codes stay valid.
func (s *LinkService) TTL() time.Duration {
	return s.ttl
}

// FindLinkedAccount resolves a chat identity to its owner.
// Returns ErrNotLinked when the identity has no owner.
func (s *LinkService) FindLinkedAccount(ctx context.Context, platform model.Platform, platformUserID string) (*model.LinkedAccount, error) {
	acct, err := s.store.GetLinkedAccount(ctx, platform, platformUserID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkedAccountNotFound) {
			return nil, ErrNotLinked
		}
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}
	return acct, nil
}

// IssueCode creates a pending link for the identity and returns the code
// and the dashboard URL that completes it.
func (s *LinkService) IssueCode(ctx context.Context, platform model.Platform, platformUserID string) (string, string, error) {
	now := s.now().UTC()

	for attempt := 0; attempt < maxLinkCodeRetries; attempt++ {
		code, err := generateLinkCode()
		if err != nil {
			return "", "", fmt.Errorf("failed to generate link code: %w", err)
		}

		pending := &model.PendingLink{
			Code:           code,
			Platform:       platform,
			PlatformUserID: platformUserID,
			ExpiresAt:      now.Add(s.ttl),
			CreatedAt:      now,
		}

		err = s.store.CreatePendingLink(ctx, pending)
		if err == nil {
			s.metrics.IncLinkIssued()
			s.logger.InfoContext(ctx, "link_code_issued",
				"platform", platform,
				"platform_user_id", platformUserID,
				"expires_at", pending.ExpiresAt,
			)
			return code, s.LinkURL(code), nil
		}
		if !errors.Is(err, repository.ErrLinkCodeExists) {
			return "", "", fmt.Errorf("failed to create pending link: %w", err)
		}
	}

	return "", "", fmt.Errorf("failed to generate unique link code after %d attempts", maxLinkCodeRetries)
}

// LinkURL builds the dashboard URL for a code.
func (s *LinkService) LinkURL(code string) string {
	return s.publicBaseURL + "/link?code=" + url.QueryEscape(code)
}

// FindPendingLink returns a consumable pending link. Expired codes are
// deleted and reported as ErrLinkCodeExpired.
func (s *LinkService) FindPendingLink(ctx context.Context, code string) (*model.PendingLink, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrLinkCodeNotFound
	}

	link, err := s.store.GetPendingLink(ctx, code, s.now())
	if err != nil {
		return nil, mapPendingLinkError(err)
	}
	return link, nil
}

// CompleteLink consumes a code and binds its identity to ownerUserID,
// replacing any previous owner.
func (s *LinkService) CompleteLink(ctx context.Context, code, ownerUserID string) (*model.LinkedAccount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrLinkCodeNotFound
	}

	acct, err := s.store.CompletePendingLink(ctx, code, ownerUserID, s.now())
	if err != nil {
		return nil, mapPendingLinkError(err)
	}

	s.metrics.IncLinkCompleted()
	s.logger.InfoContext(ctx, "link_completed",
		"owner", ownerUserID,
		"platform", acct.Platform,
		"platform_user_id", acct.PlatformUserID,
	)
	return acct, nil
}

func mapPendingLinkError(err error) error {
	switch {
	case errors.Is(err, repository.ErrPendingLinkNotFound):
		return ErrLinkCodeNotFound
	case errors.Is(err, repository.ErrPendingLinkExpired):
		return ErrLinkCodeExpired
	default:
		return fmt.Errorf("failed to resolve link code: %w", err)
	}
}

// generateLinkCode returns an unguessable URL-safe code.
func generateLinkCode() (string, error) {
	buf := make([]byte, linkCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
