package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/middleware"
)

type routerEnv struct {
	agents *fakeAgentService
	links  *fakeLinkService
	relay  *fakeRelay
	router http.Handler
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	env := &routerEnv{
		agents: &fakeAgentService{},
		links:  &fakeLinkService{},
		relay:  &fakeRelay{},
	}
	logger := discardLogger()
	rec := metrics.NewInMemory()

	r := chi.NewRouter()
	Routes{
		Health:  NewHealthHandler(nil, nil),
		Agents:  NewAgentHandler(env.agents, "", logger),
		Links:   NewLinkHandler(env.links, logger),
		Webhook: NewWebhookHandler(env.relay, nil, rec, logger),
		Metrics: NewMetricsHandler(rec),
		Auth: middleware.Auth(middleware.AuthConfig{
			Logger:   logger,
			Verifier: fakeVerifier{users: map[string]string{"good-token": "did:privy:owner"}},
		}),
	}.Mount(r)
	env.router = r
	return env
}

func (e *routerEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_ProtectedEndpointsRequireAuth(t *testing.T) {
	env := newRouterEnv(t)

	routes := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/auth/verify", ""},
		{http.MethodGet, "/agents", ""},
		{http.MethodPost, "/agents", `{"url":"https://a.example.com","bot_credential":"` + testCredential + `","price":1}`},
		{http.MethodPost, "/link/complete", `{"code":"abc"}`},
		{http.MethodGet, "/link/abc", ""},
	}

	for _, prefix := range []string{"", "/api"} {
		for _, rt := range routes {
			for _, token := range []string{"", "bad-token"} {
				rec := env.do(rt.method, prefix+rt.path, rt.body, token)
				if rec.Code != http.StatusUnauthorized {
					t.Errorf("%s %s%s token=%q: status = %d, want 401", rt.method, prefix, rt.path, token, rec.Code)
				}
			}
		}
	}

	if env.agents.calls() != 0 || env.links.calls() != 0 {
		t.Errorf("unauthenticated requests reached services: agents=%d links=%d", env.agents.calls(), env.links.calls())
	}
}

func TestRoutes_AuthenticatedAndPublic(t *testing.T) {
	env := newRouterEnv(t)

	tests := []struct {
		method, path, body, token string
		wantStatus                int
		wantBody                  string
	}{
		{http.MethodGet, "/health", "", "", http.StatusOK, `"service":"Laissez API"`},
		{http.MethodGet, "/api/health", "", "", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/readyz", "", "", http.StatusOK, `"postgres":"not configured"`},
		{http.MethodGet, "/api/auth/verify", "", "good-token", http.StatusOK, `"user_id":"did:privy:owner"`},
		{http.MethodGet, "/auth/verify", "", "good-token", http.StatusOK, `"authenticated":true`},
		{http.MethodPost, "/api/webhook/" + testCredential, sampleUpdate, "", http.StatusOK, `"ok":true`},
		{http.MethodPost, "/webhook/" + testCredential, sampleUpdate, "", http.StatusOK, `"ok":true`},
		{http.MethodGet, "/metrics", "", "", http.StatusOK, "laissez_webhooks_received_total"},
		{http.MethodGet, "/does-not-exist", "", "", http.StatusNotFound, `"code":"NOT_FOUND"`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body, tt.token)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want to contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
