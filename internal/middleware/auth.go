package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/model"
)

// IdentityCache stores verified identities keyed by a token hash.
type IdentityCache interface {
	GetIdentity(ctx context.Context, tokenHash string) (*model.Identity, error)
	SetIdentity(ctx context.Context, tokenHash string, id *model.Identity, now time.Time) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier auth.Verifier
	// Cache is optional.
	Cache IdentityCache
	// Now defaults to time.Now.
	Now func() time.Time
}

// Auth returns a middleware that requires an "Authorization: Bearer" header,
// verifies it and injects the identity into the request context.
// Rejected credentials get 401; an unreachable provider gets 500.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := cfg.Logger.With(
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(ctx)),
			)

			token, reason := bearerToken(r)
			if reason != "" {
				logger.WarnContext(ctx, "authentication_failed", slog.String("reason", reason))
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing bearer token")
				return
			}

			tokenHash := auth.QuickHash(token)
			if id := cachedIdentity(ctx, cfg.Cache, tokenHash, now()); id != nil {
				next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, id)))
				return
			}

			id, err := cfg.Verifier.Verify(ctx, token)
			switch {
			case errors.Is(err, auth.ErrUnauthenticated):
				logger.WarnContext(ctx, "authentication_failed", slog.String("reason", "rejected"), slog.String("error", err.Error()))
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing bearer token")
				return
			case err != nil:
				logger.ErrorContext(ctx, "authentication_unavailable", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "AUTH_PROVIDER_UNAVAILABLE", "identity provider unavailable")
				return
			}

			if cfg.Cache != nil {
				if err := cfg.Cache.SetIdentity(ctx, tokenHash, id, now()); err != nil {
					logger.WarnContext(ctx, "identity_cache_write_failed", slog.String("error", err.Error()))
				}
			}

			logger.DebugContext(ctx, "authentication_successful", slog.String("user_id", id.UserID))
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, id)))
		})
	}
}

// cachedIdentity returns a still-valid cached identity, or nil. Cache errors
// fall through to a fresh verification.
func cachedIdentity(ctx context.Context, c IdentityCache, tokenHash string, now time.Time) *model.Identity {
	if c == nil {
		return nil
	}
	id, err := c.GetIdentity(ctx, tokenHash)
	if err != nil || id == nil {
		return nil
	}
	if !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt) {
		return nil
	}
	return id
}

// bearerToken extracts the token, or returns a short reason for logging.
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing_header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "malformed_header"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "malformed_header"
	}
	return token, ""
}

// writeAuthError uses one message per status to avoid leaking why a
// credential was rejected.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `","detail":"` + message + `"}`))
}
