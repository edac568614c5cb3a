package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteVerifier(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantUser string
		wantErr  error
	}{
		{"ok", http.StatusOK, `{"user":{"id":"did:privy:abc"}}`, "did:privy:abc", nil},
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid"}`, "", ErrUnauthenticated},
		{"forbidden", http.StatusForbidden, ``, "", ErrUnauthenticated},
		{"empty user", http.StatusOK, `{"user":{}}`, "", ErrUnauthenticated},
		{"provider error", http.StatusInternalServerError, ``, "", ErrProviderUnavailable},
		{"malformed", http.StatusOK, `not json`, "", ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/users/me" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("Authorization = %q", got)
				}
				if got := r.Header.Get("privy-app-id"); got != testAppID {
					t.Errorf("privy-app-id = %q", got)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v := NewRemoteVerifier(srv.Client(), srv.URL, testAppID)
			id, err := v.Verify(context.Background(), "tok")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", id.UserID, tt.wantUser)
			}
		})
	}
}

func TestRemoteVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v := NewRemoteVerifier(http.DefaultClient, url, testAppID)
	if _, err := v.Verify(context.Background(), "tok"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
