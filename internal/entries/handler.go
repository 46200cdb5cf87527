package entries

import (
	"errors"
	"fmt"
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

// MountRoutes registers the routes under /api/entries.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermEntriesView, rbac.PermEntriesEdit))
		r.Get("/accounts", h.ListAccounts)
		r.Get("/accounts/{id}", h.ShowAccount)
		r.Get("/operations", h.ListOperations)
		r.Get("/operations/{id}", h.ShowOperation)
		r.Get("/operations/{id}/justif", h.DownloadJustif)
		r.With(httprate.LimitByIP(30, time.Minute)).Get("/operations/{id}/pdf", h.PrintOperation)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermEntriesEdit))
		r.Post("/accounts", h.CreateAccount)
		r.Post("/accounts/import", h.ImportAccounts)
		r.Put("/accounts/{id}", h.UpdateAccount)
		r.Delete("/accounts/{id}", h.DeleteAccount)
		r.Post("/operations", h.CreateOperation)
		r.Put("/operations/{id}", h.UpdateOperation)
		r.Delete("/operations/{id}", h.DeleteOperation)
		r.Post("/operations/{id}/lines", h.AddLine)
		r.Delete("/operations/{id}/lines/{lineID}", h.RemoveLine)
	})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	items, total, err := h.service.ListAccounts(r.Context(), filters)
	if err != nil {
		h.logger.Error("list chart accounts failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Account]{Items: items, Total: total, Page: filters.Page, Limit: filters.Limit})
}

func (h *Handler) ShowAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in AccountInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.CreateAccount(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AccountInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.UpdateAccount(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ImportAccounts(w http.ResponseWriter, r *http.Request) {
	file, err := httpx.UploadFile(w, r, "fichier")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer file.Close()
	result, err := h.service.ImportAccounts(r.Context(), file)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	page := shared.FiltersFromRequest(r)
	filters := OperationFilters{Search: page.Search, Limit: page.Limit, Offset: page.Offset()}
	q := r.URL.Query()
	if raw := q.Get("annee"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			filters.Annee = year
		}
	}
	if raw := q.Get("valide"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.Valide = &v
		}
	}
	items, total, err := h.service.ListOperations(r.Context(), filters)
	if err != nil {
		h.logger.Error("list operations failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Operation]{Items: items, Total: total, Page: page.Page, Limit: page.Limit})
}

func (h *Handler) ShowOperation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	op, err := h.service.GetOperation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var in OperationInput
	files, err := httpx.DecodeForm(w, r, &in, "justif_pdf")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	actor, _ := core.ActorFromContext(r.Context())
	op, err := h.service.CreateOperation(r.Context(), actor, in, upload(files, "justif_pdf"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, op)
}

func (h *Handler) UpdateOperation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in OperationInput
	files, err := httpx.DecodeForm(w, r, &in, "justif_pdf")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	op, err := h.service.UpdateOperation(r.Context(), id, in, upload(files, "justif_pdf"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOperation(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in LineInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	op, err := h.service.AddLine(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, op)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.URLID(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	op, err := h.service.RemoveLine(r.Context(), id, lineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) DownloadJustif(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	op, err := h.service.GetOperation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	attachments.Serve(w, r, h.files, op.JustifPDF)
}

// PrintOperation serves the operation as a PDF.
func (h *Handler) PrintOperation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.service.Print(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrValidation):
		httpx.RespondError(w, err)
		return
	default:
		h.logger.Error("render operation pdf", slog.Int64("operation_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Rendering Failed", "the PDF service is unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="operation_%d.pdf"`, id))
	_, _ = w.Write(pdf)
}

// upload returns a nil reader when the field was not sent.
func upload(files httpx.Files, field string) io.Reader {
	if f, ok := files[field]; ok {
		return f
	}
	return nil
}
