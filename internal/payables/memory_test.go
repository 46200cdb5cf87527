package payables

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/shared"
)

// memoryRepo implements Repository and TxRepository over maps. WithTx
// restores the previous state when fn fails.
type memoryRepo struct {
	mu sync.Mutex

	invoices map[int64]Invoice
	orders   map[int64]PaymentOrder
	notes    map[int64]CreditNote
	terms    map[int64]ContractTerms
	accounts map[int64]int64
	names    map[int64]string
	nextID   int64

	locked []int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[int64]Invoice),
		orders:   make(map[int64]PaymentOrder),
		notes:    make(map[int64]CreditNote),
		terms:    make(map[int64]ContractTerms),
		accounts: make(map[int64]int64),
		names:    make(map[int64]string),
		nextID:   1000,
	}
}

type memorySnapshot struct {
	invoices map[int64]Invoice
	orders   map[int64]PaymentOrder
	notes    map[int64]CreditNote
	nextID   int64
}

func (m *memoryRepo) snapshot() memorySnapshot {
	s := memorySnapshot{
		invoices: make(map[int64]Invoice, len(m.invoices)),
		orders:   make(map[int64]PaymentOrder, len(m.orders)),
		notes:    make(map[int64]CreditNote, len(m.notes)),
		nextID:   m.nextID,
	}
	for k, v := range m.invoices {
		s.invoices[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.notes {
		s.notes[k] = v
	}
	return s
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.snapshot()
	m.locked = nil
	if err := fn(ctx, m); err != nil {
		m.invoices, m.orders, m.notes, m.nextID = before.invoices, before.orders, before.notes, before.nextID
		return err
	}
	return nil
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) sortedInvoices(keep func(Invoice) bool) []Invoice {
	var out []Invoice
	for _, inv := range m.invoices {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sameID(a *int64, b int64) bool {
	return a != nil && *a == b
}

// --- Repository ---

func (m *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *memoryRepo) ListInvoices(_ context.Context, filters InvoiceFilters) ([]Invoice, int, error) {
	out := m.sortedInvoices(func(inv Invoice) bool {
		if filters.BeneficiaryID != nil && inv.BeneficiaireID != *filters.BeneficiaryID {
			return false
		}
		if filters.OrderID != nil && !sameID(inv.OrdreVirementID, *filters.OrderID) {
			return false
		}
		if filters.Unpaid && inv.Statut == StatusPayee {
			return false
		}
		return true
	})
	return out, len(out), nil
}

func (m *memoryRepo) InvoiceOptions(_ context.Context, beneficiaryID int64, orderID *int64) ([]Invoice, error) {
	return m.sortedInvoices(func(inv Invoice) bool {
		if inv.BeneficiaireID != beneficiaryID {
			return false
		}
		return inv.OrdreVirementID == nil || (orderID != nil && sameID(inv.OrdreVirementID, *orderID))
	}), nil
}

func (m *memoryRepo) ListCreditNotes(_ context.Context, invoiceID int64) ([]CreditNote, error) {
	var out []CreditNote
	for _, n := range m.notes {
		if n.FactureID == invoiceID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (PaymentOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return PaymentOrder{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, filters OrderFilters) ([]PaymentOrder, int, error) {
	var out []PaymentOrder
	for _, o := range m.orders {
		if filters.BeneficiaryID != nil && o.BeneficiaireID != *filters.BeneficiaryID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) ListOrderInvoices(_ context.Context, orderID int64) ([]Invoice, error) {
	return m.sortedInvoices(func(inv Invoice) bool { return sameID(inv.OrdreVirementID, orderID) }), nil
}

func (m *memoryRepo) OrderIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryRepo) ExportRows(ctx context.Context, filters InvoiceFilters) ([]ExportRow, error) {
	invoices, _, _ := m.ListInvoices(ctx, filters)
	out := make([]ExportRow, 0, len(invoices))
	for _, inv := range invoices {
		row := ExportRow{Invoice: inv}
		if inv.OrdreVirementID != nil {
			o := m.orders[*inv.OrdreVirementID]
			row.OrderReference = o.Reference
			row.DateReglement = o.DateRemiseBanque
		}
		out = append(out, row)
	}
	return out, nil
}

// --- TxRepository ---

func (m *memoryRepo) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memoryRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	for _, other := range m.invoices {
		if other.BeneficiaireID == inv.BeneficiaireID && other.NumFacture == inv.NumFacture {
			return 0, &shared.DuplicateError{Field: "num_facture"}
		}
	}
	inv.ID = m.id()
	inv.BeneficiaireNom = m.names[inv.BeneficiaireID]
	inv.CreatedAt = time.Now()
	m.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (m *memoryRepo) UpdateInvoice(_ context.Context, inv Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	inv.BeneficiaireNom = m.names[inv.BeneficiaireID]
	m.invoices[inv.ID] = inv
	return nil
}

func (m *memoryRepo) DeleteInvoice(_ context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(m.invoices, id)
	for nid, n := range m.notes {
		if n.FactureID == id {
			delete(m.notes, nid)
		}
	}
	return nil
}

func (m *memoryRepo) SetInvoiceSettlement(_ context.Context, id int64, status Status, paidAt *time.Time) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Statut = status
	inv.DatePaiement = paidAt
	m.invoices[id] = inv
	return nil
}

func (m *memoryRepo) CreditTotal(_ context.Context, invoiceID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, n := range m.notes {
		if n.FactureID == invoiceID {
			total = total.Add(n.MontantHT)
		}
	}
	return total, nil
}

func (m *memoryRepo) InsertCreditNote(_ context.Context, note CreditNote) (int64, error) {
	note.ID = m.id()
	m.notes[note.ID] = note
	return note.ID, nil
}

func (m *memoryRepo) DeleteCreditNote(_ context.Context, invoiceID, id int64) error {
	n, ok := m.notes[id]
	if !ok || n.FactureID != invoiceID {
		return ErrCreditNoteNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memoryRepo) LockOrder(ctx context.Context, id int64) (PaymentOrder, error) {
	o, err := m.GetOrder(ctx, id)
	if err == nil {
		m.locked = append(m.locked, id)
	}
	return o, err
}

func (m *memoryRepo) InsertOrder(_ context.Context, o PaymentOrder) (int64, error) {
	o.ID = m.id()
	o.BeneficiaireNom = m.names[o.BeneficiaireID]
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *memoryRepo) UpdateOrder(_ context.Context, o PaymentOrder) error {
	if _, ok := m.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	o.BeneficiaireNom = m.names[o.BeneficiaireID]
	m.orders[o.ID] = o
	return nil
}

func (m *memoryRepo) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := m.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *memoryRepo) SetOrderAmount(_ context.Context, id int64, amount decimal.Decimal) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Montant = amount
	m.orders[id] = o
	return nil
}

func (m *memoryRepo) InvoicesForOrder(ctx context.Context, orderID int64) ([]Invoice, error) {
	return m.ListOrderInvoices(ctx, orderID)
}

func (m *memoryRepo) DetachInvoices(_ context.Context, orderID int64) ([]Invoice, error) {
	prior := m.sortedInvoices(func(inv Invoice) bool { return sameID(inv.OrdreVirementID, orderID) })
	for _, inv := range prior {
		inv.OrdreVirementID = nil
		inv.DatePaiement = nil
		inv.Statut = StatusAttente
		m.invoices[inv.ID] = inv
	}
	return prior, nil
}

func (m *memoryRepo) ContractTerms(_ context.Context, id int64) (ContractTerms, error) {
	t, ok := m.terms[id]
	if !ok {
		return ContractTerms{}, fmt.Errorf("contract %d: %w", id, shared.ErrNotFound)
	}
	return t, nil
}

func (m *memoryRepo) AccountOwner(_ context.Context, accountID int64) (int64, error) {
	owner, ok := m.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("account %d: %w", accountID, shared.ErrNotFound)
	}
	return owner, nil
}

func (m *memoryRepo) CompanyID(_ context.Context, name string) (int64, error) {
	for id, n := range m.names {
		if n == name {
			return id, nil
		}
	}
	return 0, ErrCompanyMissing
}
