package payables

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/fieldlock"
)

// OrderView is a payment order as shown to an editor: its invoices and
// the fields its current milestones leave open.
type OrderView struct {
	PaymentOrder
	InvoiceStatus Status    `json:"invoice_status"`
	Invoices      []Invoice `json:"invoices"`
	Locked        bool      `json:"locked"`
	Editable      []string  `json:"editable"`
	// InvoicesOpen reports whether invoices may still be attached or
	// detached.
	InvoicesOpen bool `json:"invoices_open"`
}

func NewOrderView(o PaymentOrder, invoices []Invoice) OrderView {
	open := OrderOpenFields(o)
	if invoices == nil {
		invoices = []Invoice{}
	}
	return OrderView{
		PaymentOrder:  o,
		InvoiceStatus: StatusFor(&o),
		Invoices:      invoices,
		Locked:        open != nil,
		Editable:      editable(orderSnapshot(o), open),
		InvoicesOpen:  !o.RemisABanque,
	}
}

// InvoiceView is an invoice as shown to an editor.
type InvoiceView struct {
	Invoice
	StatusLabel string          `json:"statut_label"`
	CreditNotes []CreditNote    `json:"avoirs"`
	CreditTotal decimal.Decimal `json:"total_avoirs"`
	Locked      bool            `json:"locked"`
	Editable    []string        `json:"editable"`
}

func NewInvoiceView(inv Invoice, notes []CreditNote) InvoiceView {
	open := InvoiceOpenFields(inv)
	total := decimal.Zero
	for _, n := range notes {
		total = total.Add(n.MontantHT)
	}
	if notes == nil {
		notes = []CreditNote{}
	}
	return InvoiceView{
		Invoice:     inv,
		StatusLabel: inv.Statut.Label(),
		CreditNotes: notes,
		CreditTotal: total,
		Locked:      open != nil,
		Editable:    editable(invoiceSnapshot(inv), open),
	}
}

// editable lists the snapshot fields allowed by open; a nil open set means
// every field.
func editable(snap fieldlock.Snapshot, open []string) []string {
	allowed := make(map[string]struct{}, len(open))
	for _, name := range open {
		allowed[name] = struct{}{}
	}
	out := make([]string, 0, len(snap))
	for _, f := range snap {
		if _, ok := allowed[f.Name]; ok || open == nil {
			out = append(out, f.Name)
		}
	}
	return out
}

// InvoiceOption is the lookup row used when composing an order.
type InvoiceOption struct {
	ID              int64           `json:"id"`
	NumFacture      string          `json:"num_facture"`
	MontantTTC      decimal.Decimal `json:"montant_ttc"`
	MntNetAPayer    decimal.Decimal `json:"mnt_net_apayer"`
	DateEcheance    time.Time       `json:"date_echeance"`
	OrdreVirementID *int64          `json:"ordre_virement"`
}

func newInvoiceOption(inv Invoice) InvoiceOption {
	return InvoiceOption{
		ID:              inv.ID,
		NumFacture:      inv.NumFacture,
		MontantTTC:      inv.MontantTTC,
		MntNetAPayer:    inv.MntNetAPayer,
		DateEcheance:    inv.DateEcheance,
		OrdreVirementID: inv.OrdreVirementID,
	}
}
