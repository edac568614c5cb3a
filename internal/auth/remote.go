package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/laissez/laissez/internal/model"
)

// RemoteVerifier asks the provider's who-am-I endpoint to resolve the token.
// Every call is one outbound request.
type RemoteVerifier struct {
	client  *http.Client
	baseURL string
	appID   string
}

// NewRemoteVerifier creates a RemoteVerifier.
func NewRemoteVerifier(client *http.Client, baseURL, appID string) *RemoteVerifier {
	return &RemoteVerifier{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
	}
}

type whoAmIResponse struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
}

// Verify implements Verifier.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/api/v1/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(privyAppIDHeader, v.appID)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var body whoAmIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if body.User.ID == "" {
		return nil, ErrUnauthenticated
	}

	return &model.Identity{UserID: body.User.ID}, nil
}
