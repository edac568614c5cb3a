package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/laissez/laissez/internal/model"
)

// KeyProvider supplies the provider's token verification key.
type KeyProvider interface {
	Key(ctx context.Context) (*ecdsa.PublicKey, error)
}

// LocalVerifier checks ES256 access tokens offline against the provider's
// verification key. Issuer, audience and expiry are all required to match.
type LocalVerifier struct {
	keys     KeyProvider
	issuer   string
	audience string
	now      func() time.Time
}

// NewLocalVerifier creates a LocalVerifier. audience is the provider app id.
func NewLocalVerifier(keys KeyProvider, issuer, audience string) *LocalVerifier {
	return &LocalVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Verify implements Verifier.
func (v *LocalVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	key, err := v.keys.Key(ctx)
	if err != nil {
		return nil, err
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	return &model.Identity{
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// StaticKey is a KeyProvider for a key supplied in configuration.
type StaticKey struct {
	key *ecdsa.PublicKey
}

// NewStaticKey parses a PEM encoded ECDSA public key. Escaped newlines, as
// commonly found in single-line env values, are accepted.
func NewStaticKey(pem string) (*StaticKey, error) {
	key, err := parseVerificationKey(pem)
	if err != nil {
		return nil, err
	}
	return &StaticKey{key: key}, nil
}

// Key implements KeyProvider.
func (s *StaticKey) Key(context.Context) (*ecdsa.PublicKey, error) {
	return s.key, nil
}

// AppKeyFetcher fetches the verification key from the provider's app
// endpoint once and reuses it for the process lifetime. Concurrent first
// calls may each fetch; the last successful result wins and all are valid.
type AppKeyFetcher struct {
	client    *http.Client
	baseURL   string
	appID     string
	appSecret string

	cached atomic.Pointer[ecdsa.PublicKey]
}

// NewAppKeyFetcher creates an AppKeyFetcher.
func NewAppKeyFetcher(client *http.Client, baseURL, appID, appSecret string) *AppKeyFetcher {
	return &AppKeyFetcher{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
	}
}

type appResponse struct {
	VerificationKey string `json:"verification_key"`
}

// Key implements KeyProvider.
func (f *AppKeyFetcher) Key(ctx context.Context) (*ecdsa.PublicKey, error) {
	if key := f.cached.Load(); key != nil {
		return key, nil
	}

	key, err := f.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	f.cached.Store(key)
	return key, nil
}

func (f *AppKeyFetcher) fetch(ctx context.Context) (*ecdsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/v1/apps/"+f.appID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(privyAppIDHeader, f.appID)
	req.SetBasicAuth(f.appID, f.appSecret)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch verification key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch verification key: status %d", resp.StatusCode)
	}

	var body appResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode app response: %w", err)
	}
	if body.VerificationKey == "" {
		return nil, errors.New("app response has no verification_key")
	}

	return parseVerificationKey(body.VerificationKey)
}

func parseVerificationKey(pem string) (*ecdsa.PublicKey, error) {
	pem = strings.ReplaceAll(strings.TrimSpace(pem), `\n`, "\n")
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("parse verification key: %w", err)
	}
	return key, nil
}
