package tenants

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the tenant routes. All of them require
// authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/tenants", h.Create)
	r.Get("/v1/tenants", h.List)
	r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/subscriptions", h.ListSubscriptions)
		r.Get("/users", h.ListUsers)
	})
}
