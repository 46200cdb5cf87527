package accounts

import (
	"log/slog"
	"net/http"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/httpx"
	"github.com/supratours/virements/internal/rbac"
	core "github.com/supratours/virements/internal/shared"
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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list accounts failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Account]{Items: items, Total: total, Page: filters.Page, Limit: filters.Limit})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := core.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), actor, in)
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
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := core.ActorFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), actor, id, in)
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

func (h *Handler) UploadRIB(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	file, err := httpx.UploadFile(w, r, "file")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer file.Close()
	actor, _ := core.ActorFromContext(r.Context())
	a, err := h.service.AttachRIB(r.Context(), actor, id, file)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) DownloadRIB(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	attachments.Serve(w, r, h.files, a.AttestationRIBPDF)
}

// Lookup serves GET /api/lookups/accounts?beneficiaire_id=.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	beneficiaryID, err := httpx.QueryID(r, "beneficiaire_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	opts, err := h.service.Lookup(r.Context(), beneficiaryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}
