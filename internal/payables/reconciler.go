package payables

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/fieldlock"
)

// Recorder receives domain counters. observability.Metrics implements it.
type Recorder interface {
	OrderMilestone(milestone string)
	Reconciled(changed bool)
}

type nopRecorder struct{}

func (nopRecorder) OrderMilestone(string) {}
func (nopRecorder) Reconciled(bool)       {}

// Reconciler keeps a payment order consistent with its invoices. It runs
// inside the caller's transaction and never calls back into the services,
// so it cannot re-enter itself.
type Reconciler struct {
	recorder Recorder
}

func NewReconciler(recorder Recorder) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reconciler{recorder: recorder}
}

// Reconcile sums the net payable of the order's invoices into its amount,
// rewrites each invoice status and sets each invoice payment date to the
// bank operation date once the account is debited, clearing it otherwise.
//
// An order already handed to the bank keeps its amount: a change is
// reported as a locked "montant" field.
func (r *Reconciler) Reconcile(ctx context.Context, tx TxRepository, orderID int64) (PaymentOrder, error) {
	return r.reconcile(ctx, tx, orderID, false)
}

// Repair is Reconcile for drift correction: it also rewrites the amount of
// an order already handed to the bank.
func (r *Reconciler) Repair(ctx context.Context, tx TxRepository, orderID int64) (PaymentOrder, error) {
	return r.reconcile(ctx, tx, orderID, true)
}

func (r *Reconciler) reconcile(ctx context.Context, tx TxRepository, orderID int64, force bool) (PaymentOrder, error) {
	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return PaymentOrder{}, err
	}
	invoices, err := tx.InvoicesForOrder(ctx, orderID)
	if err != nil {
		return PaymentOrder{}, err
	}

	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.MntNetAPayer)
	}
	changed := !total.Equal(order.Montant)
	if changed {
		if order.RemisABanque && !force {
			return PaymentOrder{}, &fieldlock.LockedFieldError{Field: "montant"}
		}
		if err := tx.SetOrderAmount(ctx, orderID, total); err != nil {
			return PaymentOrder{}, err
		}
		order.Montant = total
	}

	status := StatusFor(&order)
	var paidAt *time.Time
	if order.CompteDebite {
		paidAt = order.DateOperationBanque
	}
	for _, inv := range invoices {
		if inv.Statut == status && sameDate(inv.DatePaiement, paidAt) {
			continue
		}
		if err := tx.SetInvoiceSettlement(ctx, inv.ID, status, paidAt); err != nil {
			return PaymentOrder{}, err
		}
		changed = true
	}
	r.recorder.Reconciled(changed)
	return order, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
