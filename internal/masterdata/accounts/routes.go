package accounts

import (
	"github.com/go-chi/chi/v5"

	"github.com/supratours/virements/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermMasterdataView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/attestation", h.DownloadRIB)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermMasterdataEdit))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/attestation", h.UploadRIB)
	})
}
