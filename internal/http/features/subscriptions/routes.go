package subscriptions

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the subscription routes. All of them require
// authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/subscriptions", h.Create)
	r.Get("/v1/subscriptions", h.List)
	r.Route("/v1/subscriptions/{subscriptionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Put("/", h.Update)
		r.Get("/users", h.ListUsers)
		r.Post("/users", h.AddUser)
		r.Delete("/users/{userID}", h.RemoveUser)
	})
}
