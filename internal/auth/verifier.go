// Package auth verifies dashboard bearer credentials against the identity
// provider and carries the resulting identity through request contexts.
package auth

import (
	"context"
	"errors"

	"github.com/laissez/laissez/internal/model"
)

// Verification errors. ErrUnauthenticated means the credential itself was
// rejected; ErrProviderUnavailable means it could not be checked at all and
// must surface as a server error rather than a rejection.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Verifier resolves a bearer token to a stable user identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// privyAppIDHeader is sent on every provider call.
const privyAppIDHeader = "privy-app-id"
