package notify

import (
	"context"

	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/jobs"
)

var _ payables.Notifier = (*Service)(nil)

// InvoiceDeleted tells the creator and the last updater of the invoice.
func (s *Service) InvoiceDeleted(ctx context.Context, inv payables.Invoice) error {
	to, err := s.userEmails(ctx, inv.CreatedBy, inv.UpdatedBy)
	if err != nil || len(to) == 0 {
		return err
	}
	data := struct {
		Invoice payables.Invoice
		Actor   string
	}{Invoice: inv, Actor: actorLabel(ctx)}
	subject := "Suppression de la facture " + inv.NumFacture
	return s.send(ctx, jobs.SendEmailPayload{To: to, Subject: subject}, "mail/invoice_deleted", data)
}

// OrderDeleted tells the creator and the last updater of the order which
// invoices went back to attente.
func (s *Service) OrderDeleted(ctx context.Context, order payables.PaymentOrder, detached []payables.Invoice) error {
	to, err := s.userEmails(ctx, order.CreatedBy, order.UpdatedBy)
	if err != nil || len(to) == 0 {
		return err
	}
	data := struct {
		Order    payables.PaymentOrder
		Invoices []payables.Invoice
		Actor    string
	}{Order: order, Invoices: detached, Actor: actorLabel(ctx)}
	subject := "Suppression de l'ordre de virement " + order.Reference
	return s.send(ctx, jobs.SendEmailPayload{To: to, Subject: subject}, "mail/order_deleted", data)
}
