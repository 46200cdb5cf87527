package internships

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

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

// MountRoutes registers the back-office routes under /api/internships.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInternsView, rbac.PermInternsEdit))
		r.Get("/applications", h.List)
		r.Get("/applications/{id}", h.Show)
		r.Get("/applications/{id}/files/{field}", h.DownloadFile)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInternsEdit))
		r.Put("/applications/{id}/review", h.Review)
		r.Delete("/applications/{id}", h.Delete)
		r.Post("/cities", h.CreateCity)
		r.Post("/periods", h.CreatePeriod)
	})
}

// MountPublic registers the reference lists and the submission form.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/cities", h.ListCities)
	r.Get("/periods", h.ListPeriods)
	r.With(httprate.LimitByIP(10, time.Hour)).Post("/applications", h.Submit)
}

func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Cities(r.Context(), true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []City{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Periods(r.Context(), true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Period{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) CreateCity(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Ville string `json:"ville"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCity(r.Context(), in.Ville)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Periode string `json:"periode"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreatePeriod(r.Context(), in.Periode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var in ApplicationInput
	files, err := httpx.DecodeForm(w, r, &in, "cv_pdf", "lettre_pdf")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	created, err := h.service.Submit(r.Context(), in, upload(files, "cv_pdf"), upload(files, "lettre_pdf"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": created.ID})
}

// upload returns a nil reader when the field was not sent.
func upload(files httpx.Files, field string) io.Reader {
	if f, ok := files[field]; ok {
		return f
	}
	return nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := shared.FiltersFromRequest(r)
	filters := Filters{Search: page.Search, Limit: page.Limit, Offset: page.Offset()}
	q := r.URL.Query()
	if raw := q.Get("traite"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.Traite = &v
		}
	}
	if raw := q.Get("periode_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			filters.PeriodeID = &id
		}
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list applications failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Application]{Items: items, Total: total, Page: page.Page, Limit: page.Limit})
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

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReviewInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Review(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
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

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
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
	switch chi.URLParam(r, "field") {
	case "cv_pdf":
		attachments.Serve(w, r, h.files, a.CVPDF)
	case "lettre_pdf":
		attachments.Serve(w, r, h.files, a.LettrePDF)
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown file field")
	}
}
