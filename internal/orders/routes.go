package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/fabdesk/fabdesk/internal/rbac"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// MountRoutes registers order routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/next-number", h.NextNumber)
	r.Get("/orders/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.Writers...))
		r.Post("/orders", h.Create)
		r.Patch("/orders/{id}", h.Update)
		r.Post("/orders/{id}/payments", h.RecordPayment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.RoleAdmin))
		r.Delete("/orders/{id}", h.Delete)
	})
}
