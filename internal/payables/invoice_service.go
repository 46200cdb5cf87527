package payables

import (
	"context"
	"errors"
	"log/slog"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/shared"
)

func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, filters InvoiceFilters) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, filters)
}

// InvoiceView loads an invoice with its credit notes and open fields.
func (s *Service) InvoiceView(ctx context.Context, id int64) (InvoiceView, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceView{}, err
	}
	notes, err := s.repo.ListCreditNotes(ctx, id)
	if err != nil {
		return InvoiceView{}, err
	}
	return NewInvoiceView(inv, notes), nil
}

// LookupInvoices lists the invoices of a beneficiary available to an
// order: unassigned ones plus those already on orderID.
func (s *Service) LookupInvoices(ctx context.Context, beneficiaryID int64, orderID *int64) ([]InvoiceOption, error) {
	if beneficiaryID <= 0 {
		return nil, shared.NewValidationError("beneficiaire_id", "is required")
	}
	rows, err := s.repo.InvoiceOptions(ctx, beneficiaryID, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]InvoiceOption, 0, len(rows))
	for _, inv := range rows {
		out = append(out, newInvoiceOption(inv))
	}
	return out, nil
}

func (s *Service) CreateInvoice(ctx context.Context, actor shared.Actor, in InvoiceInput, files Uploads) (Invoice, error) {
	return s.saveInvoice(ctx, actor, 0, in, files)
}

func (s *Service) UpdateInvoice(ctx context.Context, actor shared.Actor, id int64, in InvoiceInput, files Uploads) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	return s.saveInvoice(ctx, actor, id, in, files)
}

func (s *Service) saveInvoice(ctx context.Context, actor shared.Actor, id int64, in InvoiceInput, files Uploads) (Invoice, error) {
	dates, err := checkInvoiceInput(&in)
	if err != nil {
		return Invoice{}, err
	}

	var (
		saved   Invoice
		pending attachments.Pending
		stored  []string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var old *Invoice
		next := Invoice{Statut: StatusAttente, CreatedBy: actor.IDPtr()}
		if id > 0 {
			current, err := tx.GetInvoice(ctx, id)
			if err != nil {
				return err
			}
			if err := lockOrders(ctx, tx, current.OrdreVirementID, in.OrdreVirementID); err != nil {
				return err
			}
			if current, err = tx.LockInvoice(ctx, id); err != nil {
				return err
			}
			old = &current
			next = current
		}

		next.BeneficiaireID = in.BeneficiaireID
		next.ContratID = in.ContratID
		next.NumFacture = in.NumFacture
		next.DateFacture = dates.facture
		next.DateExecution = dates.execution
		next.MontantHT = in.MontantHT
		next.MontantTVA = in.MontantTVA
		next.Penalite = in.Penalite
		next.OrdreVirementID = in.OrdreVirementID
		next.UpdatedBy = actor.IDPtr()

		terms, err := s.contractTerms(ctx, tx, next.ContratID)
		if err != nil {
			return err
		}
		switch {
		case dates.echeance != nil:
			next.DateEcheance = *dates.echeance
		case terms != nil:
			next.DateEcheance = terms.ModePaiement.DueDate(next.DateFacture)
		}

		if old != nil {
			if err := s.storeUploads(ctx, attachments.KindInvoices, id, files, invoiceFileTargets(&next), &pending, &stored); err != nil {
				return err
			}
		}
		has := hasFile(map[string]string{
			FieldProformaPDF:    next.ProformaPDF,
			FieldFacturePDF:     next.FacturePDF,
			FieldPVReceptionPDF: next.PVReceptionPDF,
		}, files)
		if err := checkInvoiceRules(next, terms, has); err != nil {
			return err
		}
		if err := s.computeAmounts(ctx, tx, &next, terms); err != nil {
			return err
		}
		if err := s.persistInvoice(ctx, tx, old, &next, nil); err != nil {
			return err
		}

		if old == nil && len(files) > 0 {
			if err := s.storeUploads(ctx, attachments.KindInvoices, next.ID, files, invoiceFileTargets(&next), &pending, &stored); err != nil {
				return err
			}
			if err := tx.UpdateInvoice(ctx, next); err != nil {
				return err
			}
		}
		saved, err = tx.GetInvoice(ctx, next.ID)
		return err
	})
	if err != nil {
		s.discard(ctx, stored)
		return Invoice{}, err
	}
	_ = s.afterCommit(ctx, &pending, nil)
	return saved, nil
}

// SetAssociation links the invoice to an order or unlinks it. It shares
// the invoice save path, with ordre_virement, statut and date_paiement
// open even on an attached invoice.
func (s *Service) SetAssociation(ctx context.Context, actor shared.Actor, invoiceID int64, in AssociationInput) (Invoice, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Invoice{}, err
	}
	var saved Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := lockOrders(ctx, tx, current.OrdreVirementID, &in.OrdreVirementID); err != nil {
			return err
		}
		old, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		next := old
		next.UpdatedBy = actor.IDPtr()
		if *in.IsAssociated {
			orderID := in.OrdreVirementID
			next.OrdreVirementID = &orderID
		} else if old.OrdreVirementID != nil && *old.OrdreVirementID == in.OrdreVirementID {
			next.OrdreVirementID = nil
		}
		if err := s.persistInvoice(ctx, tx, &old, &next, invoiceToggleOpen); err != nil {
			return err
		}
		saved, err = tx.GetInvoice(ctx, invoiceID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	_ = s.afterCommit(ctx, nil, nil)
	return saved, nil
}

// DeleteInvoice removes the invoice, reconciles its order and drops its
// files. The creator and last editor are told by mail; a failed mail is
// returned as a *SideEffectError.
func (s *Service) DeleteInvoice(ctx context.Context, actor shared.Actor, id int64) error {
	var deleted Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if err := lockOrders(ctx, tx, current.OrdreVirementID); err != nil {
			return err
		}
		if deleted, err = tx.LockInvoice(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteInvoice(ctx, id); err != nil {
			return err
		}
		return s.reconcileAll(ctx, tx, deleted.OrdreVirementID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("invoice deleted",
		slog.Int64("invoice_id", id),
		slog.String("num_facture", deleted.NumFacture),
		slog.Int64("actor_id", actor.ID))

	var pending attachments.Pending
	pending.Remove(deleted.ProformaPDF, deleted.FacturePDF, deleted.PVReceptionPDF)
	return s.afterCommit(ctx, &pending, func() error {
		return s.notifier.InvoiceDeleted(ctx, deleted)
	})
}

// AddCreditNote records a credit note and recomputes the invoice.
func (s *Service) AddCreditNote(ctx context.Context, actor shared.Actor, invoiceID int64, in CreditNoteInput) (CreditNote, error) {
	date, err := checkCreditNoteInput(&in)
	if err != nil {
		return CreditNote{}, err
	}
	note := CreditNote{
		FactureID: invoiceID,
		NumAvoir:  in.NumAvoir,
		DateAvoir: date,
		MontantHT: in.MontantHT,
		CreatedBy: actor.IDPtr(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := s.lockInvoiceAndOrder(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if note.ID, err = tx.InsertCreditNote(ctx, note); err != nil {
			return err
		}
		return s.recomputeInvoice(ctx, tx, actor, old)
	})
	if err != nil {
		return CreditNote{}, err
	}
	_ = s.afterCommit(ctx, nil, nil)
	return note, nil
}

// DeleteCreditNote removes a credit note and recomputes the invoice.
func (s *Service) DeleteCreditNote(ctx context.Context, actor shared.Actor, invoiceID, noteID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := s.lockInvoiceAndOrder(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCreditNote(ctx, invoiceID, noteID); err != nil {
			return err
		}
		return s.recomputeInvoice(ctx, tx, actor, old)
	})
	if err != nil {
		return err
	}
	return s.afterCommit(ctx, nil, nil)
}

func (s *Service) ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListCreditNotes(ctx, invoiceID)
}

func (s *Service) lockInvoiceAndOrder(ctx context.Context, tx TxRepository, id int64) (Invoice, error) {
	current, err := tx.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if err := lockOrders(ctx, tx, current.OrdreVirementID); err != nil {
		return Invoice{}, err
	}
	return tx.LockInvoice(ctx, id)
}

// recomputeInvoice reruns the calculator on a stored invoice and persists
// it through the regular lock rules.
func (s *Service) recomputeInvoice(ctx context.Context, tx TxRepository, actor shared.Actor, old Invoice) error {
	next := old
	next.UpdatedBy = actor.IDPtr()
	terms, err := s.contractTerms(ctx, tx, next.ContratID)
	if err != nil {
		return err
	}
	if err := s.computeAmounts(ctx, tx, &next, terms); err != nil {
		return err
	}
	return s.persistInvoice(ctx, tx, &old, &next, nil)
}

func (s *Service) contractTerms(ctx context.Context, tx TxRepository, contractID *int64) (*ContractTerms, error) {
	if contractID == nil {
		return nil, nil
	}
	terms, err := tx.ContractTerms(ctx, *contractID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewValidationError("contrat_id", "contract does not exist")
		}
		return nil, err
	}
	return &terms, nil
}

// computeAmounts runs the calculator with the invoice's credit notes.
func (s *Service) computeAmounts(ctx context.Context, tx TxRepository, inv *Invoice, terms *ContractTerms) error {
	in := CalcInput{HT: inv.MontantHT, TVA: inv.MontantTVA, Penalty: inv.Penalite}
	if inv.ID > 0 {
		credit, err := tx.CreditTotal(ctx, inv.ID)
		if err != nil {
			return err
		}
		in.Credit = credit
	}
	if terms != nil {
		in.Contract = terms.Rates()
	}
	amounts := Compute(in)
	if err := checkAmounts(in, amounts); err != nil {
		return err
	}
	amounts.apply(inv)
	return nil
}

// persistInvoice derives the status from the linked order, enforces the
// attachment lock and writes the invoice, then reconciles every order the
// invoice left or joined. open overrides the default open fields.
func (s *Service) persistInvoice(ctx context.Context, tx TxRepository, old *Invoice, next *Invoice, open []string) error {
	var order *PaymentOrder
	if next.OrdreVirementID != nil {
		o, err := tx.LockOrder(ctx, *next.OrdreVirementID)
		if err != nil {
			return err
		}
		if o.BeneficiaireID != next.BeneficiaireID {
			return shared.NewValidationError("ordre_virement_id", "payment order belongs to another beneficiary")
		}
		order = &o
	}
	next.Statut = StatusFor(order)
	next.DatePaiement = nil
	if order != nil && order.CompteDebite {
		next.DatePaiement = order.DateOperationBanque
	}

	if old == nil {
		id, err := tx.InsertInvoice(ctx, *next)
		if err != nil {
			return err
		}
		next.ID = id
		return s.reconcileAll(ctx, tx, next.OrdreVirementID)
	}

	if err := checkInvoiceLock(*old, *next, open...); err != nil {
		return err
	}
	if err := tx.UpdateInvoice(ctx, *next); err != nil {
		return err
	}
	return s.reconcileAll(ctx, tx, old.OrdreVirementID, next.OrdreVirementID)
}

func invoiceFileTargets(inv *Invoice) map[string]*string {
	return map[string]*string{
		FieldProformaPDF:    &inv.ProformaPDF,
		FieldFacturePDF:     &inv.FacturePDF,
		FieldPVReceptionPDF: &inv.PVReceptionPDF,
	}
}
