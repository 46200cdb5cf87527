package omra

import (
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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll(rbac.PermOmraEdit))
	r.Get("/", h.list(false))
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/image", h.image(false))
}

// MountPublic registers the anonymous routes used by the web site.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/", h.list(true))
	r.Get("/{id}/image", h.image(true))
}

func (h *Handler) list(activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.service.List(r.Context(), activeOnly)
		if err != nil {
			h.logger.Error("list omra events failed", "error", err)
			httpx.RespondError(w, err)
			return
		}
		if items == nil {
			items = []Event{}
		}
		httpx.JSON(w, http.StatusOK, items)
	}
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	files, err := httpx.DecodeForm(w, r, &in, "image")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	var created Event
	if f, ok := files["image"]; ok {
		created, err = h.service.Create(r.Context(), in, f)
	} else {
		created, err = h.service.Create(r.Context(), in, nil)
	}
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
	files, err := httpx.DecodeForm(w, r, &in, "image")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	var updated Event
	if f, ok := files["image"]; ok {
		updated, err = h.service.Update(r.Context(), id, in, f)
	} else {
		updated, err = h.service.Update(r.Context(), id, in, nil)
	}
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

func (h *Handler) image(activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.URLID(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		e, err := h.service.Get(r.Context(), id)
		if err == nil && activeOnly && !e.Actif {
			err = shared.ErrNotFound
		}
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		attachments.Serve(w, r, h.files, e.Image)
	}
}
