package users

import "github.com/go-chi/chi/v5"

// RegisterPublicRoutes registers the unauthenticated user routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/v1/users", h.Register)
}

// RegisterRoutes registers the authenticated user routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/users", h.List)
	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Put("/", h.Update)
		r.Get("/tenants", h.ListTenants)
		r.Get("/owned-tenants", h.ListOwnedTenants)
		r.Get("/subscriptions", h.ListSubscriptions)
	})
}
