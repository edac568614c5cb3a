package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/laissez/laissez/internal/model"
)

// Common errors for account linking operations.
var (
	ErrLinkedAccountNotFound = errors.New("linked account not found")
	ErrPendingLinkNotFound   = errors.New("pending link not found")
	ErrPendingLinkExpired    = errors.New("pending link expired")
	ErrLinkCodeExists        = errors.New("link code already exists")
)

// GetLinkedAccount returns the dashboard user bound to a chat identity.
func (r *Repository) GetLinkedAccount(ctx context.Context, platform model.Platform, platformUserID string) (*model.LinkedAccount, error) {
	query := `
		SELECT user_id, platform, platform_user_id, created_at, updated_at
		FROM linked_accounts
		WHERE platform = $1 AND platform_user_id = $2
	`

	var acct model.LinkedAccount
	err := r.pool.QueryRow(ctx, query, platform, platformUserID).Scan(
		&acct.OwnerUserID,
		&acct.Platform,
		&acct.PlatformUserID,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkedAccountNotFound
		}
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}

	return &acct, nil
}

// CreatePendingLink stores a new one-time link code.
func (r *Repository) CreatePendingLink(ctx context.Context, link *model.PendingLink) error {
	query := `
		INSERT INTO pending_links (code, platform, platform_user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		link.Code,
		link.Platform,
		link.PlatformUserID,
		link.ExpiresAt,
		link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrLinkCodeExists
		}
		return fmt.Errorf("failed to create pending link: %w", err)
	}

	return nil
}

// GetPendingLink looks up a code. Expired codes are deleted on sight and
// reported as ErrPendingLinkExpired.
func (r *Repository) GetPendingLink(ctx context.Context, code string, now time.Time) (*model.PendingLink, error) {
	query := `
		SELECT code, platform, platform_user_id, expires_at, created_at
		FROM pending_links
		WHERE code = $1
	`

	link, err := scanPendingLink(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingLinkNotFound
		}
		return nil, fmt.Errorf("failed to get pending link: %w", err)
	}

	if link.IsExpired(now) {
		if _, err := r.pool.Exec(ctx, `DELETE FROM pending_links WHERE code = $1`, code); err != nil {
			return nil, fmt.Errorf("failed to delete expired pending link: %w", err)
		}
		return nil, ErrPendingLinkExpired
	}

	return link, nil
}

// CompletePendingLink consumes a code and binds its chat identity to
// ownerUserID. The lookup, upsert and deletion run in one transaction with
// the pending row locked, so a code is consumed at most once. Re-linking an
// identity overwrites the previous owner.
func (r *Repository) CompletePendingLink(ctx context.Context, code, ownerUserID string, now time.Time) (*model.LinkedAccount, error) {
	var acct *model.LinkedAccount
	expired := false

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		link, err := scanPendingLink(tx.QueryRow(ctx, `
			SELECT code, platform, platform_user_id, expires_at, created_at
			FROM pending_links
			WHERE code = $1
			FOR UPDATE
		`, code))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPendingLinkNotFound
			}
			return fmt.Errorf("failed to lock pending link: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM pending_links WHERE code = $1`, code); err != nil {
			return fmt.Errorf("failed to delete pending link: %w", err)
		}

		// The deletion still commits for an expired code.
		if link.IsExpired(now) {
			expired = true
			return nil
		}

		var linked model.LinkedAccount
		err = tx.QueryRow(ctx, `
			INSERT INTO linked_accounts (user_id, platform, platform_user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (platform, platform_user_id)
			DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = EXCLUDED.updated_at
			RETURNING user_id, platform, platform_user_id, created_at, updated_at
		`, ownerUserID, link.Platform, link.PlatformUserID, now).Scan(
			&linked.OwnerUserID,
			&linked.Platform,
			&linked.PlatformUserID,
			&linked.CreatedAt,
			&linked.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert linked account: %w", err)
		}
		acct = &linked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrPendingLinkExpired
	}

	return acct, nil
}

// DeleteExpiredPendingLinks removes every code past its expiry and reports
// how many were removed.
func (r *Repository) DeleteExpiredPendingLinks(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_links WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending links: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPendingLink(row pgx.Row) (*model.PendingLink, error) {
	var link model.PendingLink
	err := row.Scan(
		&link.Code,
		&link.Platform,
		&link.PlatformUserID,
		&link.ExpiresAt,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
