package payables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/shared"
)

func (s *Service) GetOrder(ctx context.Context, id int64) (PaymentOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, filters OrderFilters) ([]PaymentOrder, int, error) {
	return s.repo.ListOrders(ctx, filters)
}

// OrderView loads an order with its invoices and open fields.
func (s *Service) OrderView(ctx context.Context, id int64) (OrderView, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	invoices, err := s.repo.ListOrderInvoices(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	return NewOrderView(o, invoices), nil
}

func (s *Service) CreateOrder(ctx context.Context, actor shared.Actor, in OrderInput, files Uploads) (PaymentOrder, error) {
	return s.saveOrder(ctx, actor, 0, in, files)
}

func (s *Service) UpdateOrder(ctx context.Context, actor shared.Actor, id int64, in OrderInput, files Uploads) (PaymentOrder, error) {
	if id <= 0 {
		return PaymentOrder{}, ErrOrderNotFound
	}
	return s.saveOrder(ctx, actor, id, in, files)
}

func (s *Service) saveOrder(ctx context.Context, actor shared.Actor, id int64, in OrderInput, files Uploads) (PaymentOrder, error) {
	dates, err := checkOrderInput(&in)
	if err != nil {
		return PaymentOrder{}, err
	}

	var (
		saved    PaymentOrder
		previous PaymentOrder
		pending  attachments.Pending
		stored   []string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var old *PaymentOrder
		next := PaymentOrder{
			DateOV:    shared.Today(s.now()),
			Montant:   decimal.Zero,
			CreatedBy: actor.IDPtr(),
		}
		if id > 0 {
			current, err := tx.LockOrder(ctx, id)
			if err != nil {
				return err
			}
			old = &current
			previous = current
			next = current
		}

		next.Reference = in.Reference
		next.TypeOV = in.TypeOV
		next.BeneficiaireID = in.BeneficiaireID
		next.CompteTresorerieID = &in.CompteTresorerieID
		next.CompteEmetteurID = &in.CompteEmetteurID
		if dates.ov != nil {
			next.DateOV = *dates.ov
		}
		next.ValidePourSignature = in.ValidePourSignature
		next.DateRemiseBanque = dates.remise
		next.RemisABanque = in.RemisABanque
		next.DateOperationBanque = dates.operation
		next.CompteDebite = in.CompteDebite
		next.UpdatedBy = actor.IDPtr()
		if old != nil && next.Reference == "" {
			next.Reference = old.Reference
		}

		if old != nil {
			if err := s.storeUploads(ctx, attachments.KindOrders, id, files, orderFileTargets(&next), &pending, &stored); err != nil {
				return err
			}
		}
		has := hasFile(map[string]string{
			FieldOVRemisBanquePDF: next.OVRemisBanquePDF,
			FieldAvisDebitPDF:     next.AvisDebitPDF,
		}, files)
		if next.DateRemiseBanque != nil && has(FieldOVRemisBanquePDF) {
			next.RemisABanque = true
		}
		if old != nil {
			if err := checkOrderLock(*old, next); err != nil {
				return err
			}
		}
		if err := checkOrderMilestones(next, has); err != nil {
			return err
		}
		if err := s.checkOrderLinks(ctx, tx, next); err != nil {
			return err
		}

		if old != nil {
			if err := tx.UpdateOrder(ctx, next); err != nil {
				return err
			}
		} else {
			newID, err := tx.InsertOrder(ctx, next)
			if err != nil {
				return err
			}
			next.ID = newID
			if next.Reference == "" {
				next.Reference = strconv.FormatInt(newID+s.cfg.OVStartNum, 10)
			}
			if err := s.storeUploads(ctx, attachments.KindOrders, newID, files, orderFileTargets(&next), &pending, &stored); err != nil {
				return err
			}
			if err := tx.UpdateOrder(ctx, next); err != nil {
				return err
			}
		}

		var err error
		saved, err = s.reconciler.Reconcile(ctx, tx, next.ID)
		return err
	})
	if err != nil {
		s.discard(ctx, stored)
		return PaymentOrder{}, err
	}
	for _, m := range reachedMilestones(previous, saved) {
		s.reconciler.recorder.OrderMilestone(m)
		s.logger.Info("payment order milestone",
			slog.Int64("order_id", saved.ID),
			slog.String("milestone", m),
			slog.Int64("actor_id", actor.ID))
	}
	_ = s.afterCommit(ctx, &pending, nil)
	return saved, nil
}

// checkOrderLinks verifies the accounts and invoices attached to the order.
func (s *Service) checkOrderLinks(ctx context.Context, tx TxRepository, o PaymentOrder) error {
	if s.cfg.CompanyName == "" {
		return ErrCompanyMissing
	}
	companyID, err := tx.CompanyID(ctx, s.cfg.CompanyName)
	if err != nil {
		return err
	}

	verr := &shared.ValidationError{}
	sender, err := accountOwner(ctx, tx, "compte_emetteur_id", *o.CompteEmetteurID)
	if err != nil {
		return err
	}
	if sender != companyID {
		verr.Add("compte_emetteur_id", "sender account must belong to "+s.cfg.CompanyName)
	}
	recipient, err := accountOwner(ctx, tx, "compte_tresorerie_id", *o.CompteTresorerieID)
	if err != nil {
		return err
	}
	if recipient != o.BeneficiaireID {
		verr.Add("compte_tresorerie_id", "account must belong to the order beneficiary")
	}
	if o.TypeOV == TypeTransfert && o.BeneficiaireID != companyID {
		verr.Add("beneficiaire_id", "a transfer is made to "+s.cfg.CompanyName)
	}
	if o.TypeOV == TypeVirement && o.BeneficiaireID == companyID {
		verr.Add("beneficiaire_id", "use a transfer to move funds between company accounts")
	}

	if o.ID > 0 {
		invoices, err := tx.InvoicesForOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.BeneficiaireID != o.BeneficiaireID {
				verr.Add("beneficiaire_id", "invoice "+inv.NumFacture+" belongs to "+inv.BeneficiaireNom)
				break
			}
		}
	}
	return verr.OrNil()
}

func accountOwner(ctx context.Context, tx TxRepository, field string, id int64) (int64, error) {
	owner, err := tx.AccountOwner(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, shared.NewValidationError(field, "account does not exist")
	}
	return owner, err
}

// DeleteOrder removes the order. Its invoices go back to attente with no
// order and no payment date, and its files are deleted. Both happen after
// the state change committed; a failed notification comes back as a
// *SideEffectError.
func (s *Service) DeleteOrder(ctx context.Context, actor shared.Actor, id int64) error {
	var (
		deleted  PaymentOrder
		detached []Invoice
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if deleted, err = tx.LockOrder(ctx, id); err != nil {
			return err
		}
		if detached, err = tx.DetachInvoices(ctx, id); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("payment order deleted",
		slog.Int64("order_id", id),
		slog.String("reference", deleted.Reference),
		slog.Int("invoices_detached", len(detached)),
		slog.Int64("actor_id", actor.ID))

	var pending attachments.Pending
	pending.Remove(deleted.OVRemisBanquePDF, deleted.AvisDebitPDF)
	return s.afterCommit(ctx, &pending, func() error {
		return s.notifier.OrderDeleted(ctx, deleted, detached)
	})
}

// Recompute reconciles one order on demand.
func (s *Service) Recompute(ctx context.Context, id int64) (PaymentOrder, error) {
	var order PaymentOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = s.reconciler.Reconcile(ctx, tx, id)
		return err
	})
	if err != nil {
		return PaymentOrder{}, err
	}
	_ = s.afterCommit(ctx, nil, nil)
	return order, nil
}

// Repair reconciles one order, rewriting its amount even when it was
// already handed to the bank.
func (s *Service) Repair(ctx context.Context, id int64) (PaymentOrder, error) {
	var order PaymentOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = s.reconciler.Repair(ctx, tx, id)
		return err
	})
	if err != nil {
		return PaymentOrder{}, err
	}
	s.logger.Warn("payment order repaired", slog.Int64("order_id", id), slog.String("montant", order.Montant.StringFixed(2)))
	_ = s.afterCommit(ctx, nil, nil)
	return order, nil
}

// ReconcileAll reconciles every order, each in its own transaction. A
// failing order does not stop the run: failures are joined into the
// returned error and n counts the orders reconciled. With force, the
// amount of orders already handed to the bank is rewritten too.
func (s *Service) ReconcileAll(ctx context.Context, force bool) (n int, err error) {
	ids, err := s.repo.OrderIDs(ctx)
	if err != nil {
		return 0, err
	}
	reconcile := s.reconciler.Reconcile
	if force {
		reconcile = s.reconciler.Repair
	}
	var failures []error
	for _, id := range ids {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := reconcile(ctx, tx, id)
			return err
		})
		if err != nil {
			s.logger.Warn("reconcile payment order", slog.Int64("order_id", id), slog.Any("error", err))
			failures = append(failures, fmt.Errorf("order %d: %w", id, err))
			continue
		}
		n++
	}
	_ = s.afterCommit(ctx, nil, nil)
	return n, errors.Join(failures...)
}

func orderFileTargets(o *PaymentOrder) map[string]*string {
	return map[string]*string{
		FieldOVRemisBanquePDF: &o.OVRemisBanquePDF,
		FieldAvisDebitPDF:     &o.AvisDebitPDF,
	}
}
