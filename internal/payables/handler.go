package payables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/supratours/virements/internal/attachments"
	mdshared "github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/httpx"
	"github.com/supratours/virements/internal/rbac"
	"github.com/supratours/virements/internal/shared"
)

// IdempotencyChecker rejects replayed creation requests.
type IdempotencyChecker interface {
	Claim(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// Handler exposes invoices, credit notes and payment orders over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	files    attachments.Store
	accounts AccountReader
	printer  OrderPrinter
	idem     IdempotencyChecker
	rbac     rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, files attachments.Store, accounts AccountReader, printer OrderPrinter, idem IdempotencyChecker, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, files: files, accounts: accounts, printer: printer, idem: idem, rbac: rbac}
}

// mutationResponse carries the saved record and, when a best-effort step
// failed after commit, a warning for the user.
type mutationResponse struct {
	Data    any    `json:"data,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) respondMutation(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		if sideEffect, ok := AsSideEffect(err); ok {
			h.logger.Warn("payables side effect failed", slog.Any("error", sideEffect.Err))
			httpx.JSON(w, http.StatusOK, mutationResponse{Data: data, Warning: sideEffect.Message})
			return
		}
		httpx.RespondError(w, err)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, status, data)
}

// claimIdempotencyKey reserves the Idempotency-Key header, if any. The
// returned release frees the key when the request failed.
func (h *Handler) claimIdempotencyKey(r *http.Request, module string) (func(), error) {
	key := r.Header.Get("Idempotency-Key")
	if h.idem == nil || key == "" {
		return func() {}, nil
	}
	if err := h.idem.Claim(r.Context(), module, key); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, fmt.Errorf("%v: %w", err, shared.ErrConflict)
		}
		return nil, err
	}
	return func() {
		if err := h.idem.Release(context.WithoutCancel(r.Context()), module, key); err != nil {
			h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func uploadsFrom(files httpx.Files) Uploads {
	out := make(Uploads, len(files))
	for field, f := range files {
		out[field] = f
	}
	return out
}

func invoiceFiltersFromRequest(r *http.Request) (InvoiceFilters, int, error) {
	base := mdshared.FiltersFromRequest(r)
	q := r.URL.Query()
	filters := InvoiceFilters{
		BeneficiaryID: base.BeneficiaryID,
		Status:        Status(q.Get("statut")),
		Search:        base.Search,
		Limit:         base.Limit,
		Offset:        base.Offset(),
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return filters, 0, shared.NewValidationError("statut", "unknown status")
	}
	var err error
	if filters.OrderID, err = optionalID(r, "ordre_virement_id"); err != nil {
		return filters, 0, err
	}
	if filters.ContractID, err = optionalID(r, "contrat_id"); err != nil {
		return filters, 0, err
	}
	if raw := q.Get("impayees"); raw != "" {
		filters.Unpaid, _ = strconv.ParseBool(raw)
	}
	if filters.DueBefore, err = shared.ParseOptionalDate("echeance_avant", q.Get("echeance_avant")); err != nil {
		return filters, 0, err
	}
	return filters, base.Page, nil
}

func orderFiltersFromRequest(r *http.Request) OrderFilters {
	base := mdshared.FiltersFromRequest(r)
	return OrderFilters{
		BeneficiaryID: base.BeneficiaryID,
		TypeOV:        r.URL.Query().Get("type_ov"),
		Search:        base.Search,
		Limit:         base.Limit,
		Offset:        base.Offset(),
	}
}

func optionalID(r *http.Request, name string) (*int64, error) {
	id, err := httpx.QueryID(r, name)
	if err != nil || id == 0 {
		return nil, err
	}
	return &id, nil
}

// --- invoices ---

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	filters, page, err := invoiceFiltersFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, total, err := h.service.ListInvoices(r.Context(), filters)
	if err != nil {
		h.logger.Error("list invoices failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mdshared.ListResponse[Invoice]{Items: items, Total: total, Page: page, Limit: filters.Limit})
}

func (h *Handler) ShowInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.InvoiceView(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in InvoiceInput
	files, err := httpx.DecodeForm(w, r, &in, InvoiceFileFields...)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	release, err := h.claimIdempotencyKey(r, "payables.invoices")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	inv, err := h.service.CreateInvoice(r.Context(), actor, in, uploadsFrom(files))
	if err != nil {
		release()
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in InvoiceInput
	files, err := httpx.DecodeForm(w, r, &in, InvoiceFileFields...)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	actor, _ := shared.ActorFromContext(r.Context())
	inv, err := h.service.UpdateInvoice(r.Context(), actor, id, in, uploadsFrom(files))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	h.respondMutation(w, http.StatusOK, nil, h.service.DeleteInvoice(r.Context(), actor, id))
}

// SetAssociation serves POST /invoices/{id}/association.
func (h *Handler) SetAssociation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AssociationInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	inv, err := h.service.SetAssociation(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), in.OrdreVirementID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"facture": inv, "montant": order.Montant})
}

func (h *Handler) DownloadInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	targets := invoiceFileTargets(&inv)
	key, ok := targets[chi.URLParam(r, "field")]
	if !ok {
		httpx.RespondError(w, shared.NewValidationError("field", "unknown attachment"))
		return
	}
	attachments.Serve(w, r, h.files, *key)
}

func (h *Handler) ExportInvoices(w http.ResponseWriter, r *http.Request) {
	filters, _, err := invoiceFiltersFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filters.Limit, filters.Offset = 0, 0
	layout := r.URL.Query().Get("format")
	if layout == "" {
		layout = ExportStandard
	}
	if layout != ExportStandard && layout != ExportPaymentTerms {
		httpx.RespondError(w, shared.NewValidationError("format", "use std or dlp"))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="factures_%s_%s.csv"`, layout, time.Now().Format("20060102")))
	if err := h.service.ExportInvoices(r.Context(), filters, layout, w); err != nil {
		h.logger.Error("export invoices failed", "error", err)
	}
}

// LookupInvoices serves GET /api/lookups/invoices?beneficiaire_id=&ordre_virement_id=.
func (h *Handler) LookupInvoices(w http.ResponseWriter, r *http.Request) {
	beneficiaryID, err := httpx.QueryID(r, "beneficiaire_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orderID, err := optionalID(r, "ordre_virement_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	opts, err := h.service.LookupInvoices(r.Context(), beneficiaryID, orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

// --- credit notes ---

func (h *Handler) ListCreditNotes(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	notes, err := h.service.ListCreditNotes(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) AddCreditNote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreditNoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	note, err := h.service.AddCreditNote(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) DeleteCreditNote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	noteID, err := httpx.URLID(r, "noteID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteCreditNote(r.Context(), actor, id, noteID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- payment orders ---

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filters := orderFiltersFromRequest(r)
	items, total, err := h.service.ListOrders(r.Context(), filters)
	if err != nil {
		h.logger.Error("list orders failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	page := mdshared.FiltersFromRequest(r).Page
	httpx.JSON(w, http.StatusOK, mdshared.ListResponse[PaymentOrder]{Items: items, Total: total, Page: page, Limit: filters.Limit})
}

func (h *Handler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.OrderView(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in OrderInput
	files, err := httpx.DecodeForm(w, r, &in, OrderFileFields...)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	if err := h.checkMilestonePermissions(r.Context(), PaymentOrder{}, in, files); err != nil {
		httpx.RespondError(w, err)
		return
	}
	release, err := h.claimIdempotencyKey(r, "payables.orders")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	o, err := h.service.CreateOrder(r.Context(), actor, in, uploadsFrom(files))
	if err != nil {
		release()
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in OrderInput
	files, err := httpx.DecodeForm(w, r, &in, OrderFileFields...)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer files.Close()
	current, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.checkMilestonePermissions(r.Context(), current, in, files); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	o, err := h.service.UpdateOrder(r.Context(), actor, id, in, uploadsFrom(files))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

// checkMilestonePermissions requires the signing permission to validate an
// order and the bank permission to record the hand-over or the debit.
func (h *Handler) checkMilestonePermissions(ctx context.Context, current PaymentOrder, in OrderInput, files httpx.Files) error {
	if h.rbac.Service == nil {
		return nil
	}
	var needed []string
	if in.ValidePourSignature && !current.ValidePourSignature {
		needed = append(needed, rbac.PermOrdersSign)
	}
	_, remisUpload := files[FieldOVRemisBanquePDF]
	_, debitUpload := files[FieldAvisDebitPDF]
	bank := (!current.RemisABanque && (in.RemisABanque || remisUpload)) ||
		(!current.CompteDebite && (in.CompteDebite || debitUpload))
	if bank {
		needed = append(needed, rbac.PermOrdersBank)
	}
	for _, perm := range needed {
		ok, err := h.rbac.Has(ctx, perm)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("missing permission %s: %w", perm, shared.ErrForbidden)
		}
	}
	return nil
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	h.respondMutation(w, http.StatusOK, nil, h.service.DeleteOrder(r.Context(), actor, id))
}

// Recompute serves POST /orders/{id}/recompute.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Recompute(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"montant": o.Montant})
}

func (h *Handler) DownloadOrderFile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, ok := orderFileTargets(&o)[chi.URLParam(r, "field")]
	if !ok {
		httpx.RespondError(w, shared.NewValidationError("field", "unknown attachment"))
		return
	}
	attachments.Serve(w, r, h.files, *key)
}

// PrintOrder serves the payment order as a PDF.
func (h *Handler) PrintOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.OrderDocument(r.Context(), id, h.accounts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.printer.PrintOrder(r.Context(), doc)
	if err != nil {
		h.logger.Error("render order pdf", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Rendering Failed", "the PDF service is unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="ordre_virement_%s.pdf"`, doc.Order.Reference))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ordres_virement.csv"`)
	if err := h.service.ExportOrders(r.Context(), orderFiltersFromRequest(r), w); err != nil {
		h.logger.Error("export orders failed", "error", err)
	}
}
