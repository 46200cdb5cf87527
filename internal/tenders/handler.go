package tenders

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/httpx"
	"github.com/supratours/virements/internal/rbac"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	files   attachments.Store
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, files attachments.Store, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, files: files, rbac: rbac}
}

// MountRoutes registers the back-office routes under /api/tenders.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll(rbac.PermTendersEdit))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/pdf", h.DownloadPDF)
}

// MountPublic registers the anonymous listing used by the web site.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/", h.Published)
	r.Get("/{id}/pdf", h.PublishedPDF)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list tenders failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Tender]{Items: items, Total: total, Page: filters.Page, Limit: filters.Limit})
}

func (h *Handler) Published(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Published(r.Context())
	if err != nil {
		h.logger.Error("list published tenders failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Tender{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	files, err := httpx.DecodeForm(w, r, &in, "ao_pdf")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	created, err := h.service.Create(r.Context(), in, upload(files, "ao_pdf"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	files, err := httpx.DecodeForm(w, r, &in, "ao_pdf")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	updated, err := h.service.Update(r.Context(), id, in, upload(files, "ao_pdf"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	attachments.Serve(w, r, h.files, t.AOPDF)
}

// PublishedPDF serves the document of an active tender only.
func (h *Handler) PublishedPDF(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err == nil && !t.Actif {
		err = shared.ErrNotFound
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	attachments.Serve(w, r, h.files, t.AOPDF)
}

// upload returns the named part or a nil reader, never a typed nil.
func upload(files httpx.Files, field string) io.Reader {
	if f, ok := files[field]; ok && f != nil {
		return f
	}
	return nil
}
