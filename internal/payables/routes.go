package payables

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/supratours/virements/internal/rbac"
)

// MountRoutes registers the payables API under /api/payables.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPayablesView, rbac.PermPayablesEdit))
		r.Get("/invoices", h.ListInvoices)
		r.Get("/invoices/export", h.ExportInvoices)
		r.Get("/invoices/{id}", h.ShowInvoice)
		r.Get("/invoices/{id}/files/{field}", h.DownloadInvoiceFile)
		r.Get("/invoices/{id}/avoirs", h.ListCreditNotes)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/export", h.ExportOrders)
		r.Get("/orders/{id}", h.ShowOrder)
		r.Get("/orders/{id}/files/{field}", h.DownloadOrderFile)
		r.With(httprate.LimitByIP(30, time.Minute)).Get("/orders/{id}/pdf", h.PrintOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPayablesEdit))
		r.Post("/invoices", h.CreateInvoice)
		r.Put("/invoices/{id}", h.UpdateInvoice)
		r.Delete("/invoices/{id}", h.DeleteInvoice)
		r.Post("/invoices/{id}/association", h.SetAssociation)
		r.Post("/invoices/{id}/avoirs", h.AddCreditNote)
		r.Delete("/invoices/{id}/avoirs/{noteID}", h.DeleteCreditNote)
		r.Post("/orders", h.CreateOrder)
		r.Put("/orders/{id}", h.UpdateOrder)
		r.Delete("/orders/{id}", h.DeleteOrder)
		r.Post("/orders/{id}/recompute", h.Recompute)
	})
}

// MountLookups registers the invoice lookup under /api/lookups.
func (h *Handler) MountLookups(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermPayablesView, rbac.PermPayablesEdit)).Get("/invoices", h.LookupInvoices)
}
