package payables

import (
	"context"
	"io"

	"github.com/supratours/virements/internal/masterdata/accounts"
)

// AccountReader resolves the treasury accounts printed on an order.
type AccountReader interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
}

// OrderPrinter turns an order document into a PDF.
type OrderPrinter interface {
	PrintOrder(ctx context.Context, doc OrderDocument) ([]byte, error)
}

// OrderDocument is everything printed on a payment order.
type OrderDocument struct {
	Order       PaymentOrder
	Invoices    []Invoice
	Company     string
	Sender      accounts.Account
	Recipient   accounts.Account
	AmountWords string
}

// OrderDocument assembles the printable form of an order.
func (s *Service) OrderDocument(ctx context.Context, id int64, accts AccountReader) (OrderDocument, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return OrderDocument{}, err
	}
	invoices, err := s.repo.ListOrderInvoices(ctx, id)
	if err != nil {
		return OrderDocument{}, err
	}
	doc := OrderDocument{
		Order:       o,
		Invoices:    invoices,
		Company:     s.cfg.CompanyName,
		AmountWords: AmountInWords(o.Montant),
	}
	if o.CompteEmetteurID != nil {
		if doc.Sender, err = accts.Get(ctx, *o.CompteEmetteurID); err != nil {
			return OrderDocument{}, err
		}
	}
	if o.CompteTresorerieID != nil {
		if doc.Recipient, err = accts.Get(ctx, *o.CompteTresorerieID); err != nil {
			return OrderDocument{}, err
		}
	}
	return doc, nil
}

// ExportInvoices writes the invoices matching filters as CSV.
func (s *Service) ExportInvoices(ctx context.Context, filters InvoiceFilters, layout string, w io.Writer) error {
	rows, err := s.repo.ExportRows(ctx, filters)
	if err != nil {
		return err
	}
	return WriteExportCSV(w, layout, rows)
}

// ExportOrders writes the orders matching filters as CSV.
func (s *Service) ExportOrders(ctx context.Context, filters OrderFilters, w io.Writer) error {
	filters.Limit, filters.Offset = 0, 0
	orders, _, err := s.repo.ListOrders(ctx, filters)
	if err != nil {
		return err
	}
	return WriteOrdersCSV(w, orders)
}
