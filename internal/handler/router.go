package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes groups the handlers mounted by Mount. Metrics may be nil.
type Routes struct {
	Health  *HealthHandler
	Agents  *AgentHandler
	Links   *LinkHandler
	Webhook *WebhookHandler
	Metrics *MetricsHandler
	// Auth guards every dashboard endpoint.
	Auth func(http.Handler) http.Handler
}

// Mount registers the API on r at the root and again under /api, which is
// where the dashboard and registered webhooks point.
func (rt Routes) Mount(r chi.Router) {
	rt.mountAPI(r)
	r.Route("/api", rt.mountAPI)

	if rt.Metrics != nil {
		r.Get("/metrics", rt.Metrics.Metrics)
	}
	r.Get("/readyz", rt.Health.Readyz)

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
}

func (rt Routes) mountAPI(r chi.Router) {
	r.Get("/health", rt.Health.Health)
	r.Post("/webhook/{bot_credential}", rt.Webhook.Receive)

	r.Group(func(r chi.Router) {
		r.Use(rt.Auth)

		r.Get("/auth/verify", VerifyAuth)
		r.Get("/agents", rt.Agents.List)
		r.Post("/agents", rt.Agents.Create)
		r.Post("/link/complete", rt.Links.Complete)
		r.Get("/link/{code}", rt.Links.Get)
	})
}
