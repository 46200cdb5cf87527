package payables

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/fieldlock"
	"github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

const (
	companyName = "SUPRATOURS TRAVEL"
	companyID   = int64(1)
	supplierID  = int64(2)
	otherID     = int64(3)

	companyAccount  = int64(10)
	companyAccount2 = int64(11)
	supplierAccount = int64(20)
	otherAccount    = int64(30)

	contractID = int64(100)
)

type recordingNotifier struct {
	err      error
	invoices []Invoice
	orders   []PaymentOrder
	detached []Invoice
}

func (n *recordingNotifier) InvoiceDeleted(_ context.Context, inv Invoice) error {
	n.invoices = append(n.invoices, inv)
	return n.err
}

func (n *recordingNotifier) OrderDeleted(_ context.Context, o PaymentOrder, detached []Invoice) error {
	n.orders = append(n.orders, o)
	n.detached = append(n.detached, detached...)
	return n.err
}

type countingRecorder struct {
	milestones []string
	reconciled []bool
}

func (r *countingRecorder) OrderMilestone(m string) { r.milestones = append(r.milestones, m) }
func (r *countingRecorder) Reconciled(changed bool) { r.reconciled = append(r.reconciled, changed) }

type countingListener struct{ calls int }

func (l *countingListener) PayablesChanged(context.Context) error {
	l.calls++
	return nil
}

type fixture struct {
	repo     *memoryRepo
	files    *attachments.MemoryStore
	svc      *Service
	notifier *recordingNotifier
	recorder *countingRecorder
	listener *countingListener
	actor    shared.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	repo.names[companyID] = companyName
	repo.names[supplierID] = "ATLAS BTP"
	repo.names[otherID] = "RIF CONSEIL"
	repo.accounts[companyAccount] = companyID
	repo.accounts[companyAccount2] = companyID
	repo.accounts[supplierAccount] = supplierID
	repo.accounts[otherAccount] = otherID
	repo.terms[contractID] = ContractTerms{
		ID:             contractID,
		BeneficiaireID: supplierID,
		TauxTVA:        d("20"),
		TauxRASTVA:     d("75"),
		TauxRASIS:      d("0"),
		TauxRG:         d("7"),
		ModePaiement:   "60JFDM",
	}

	f := &fixture{
		repo:     repo,
		files:    attachments.NewMemoryStore(),
		notifier: &recordingNotifier{},
		recorder: &countingRecorder{},
		listener: &countingListener{},
		actor:    shared.Actor{ID: 7, Email: "compta@supratours.ma"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(repo, f.files, NewReconciler(f.recorder), Config{CompanyName: companyName, OVStartNum: 5000}, logger)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC) }
	f.svc.SetNotifier(f.notifier)
	f.svc.SetChangeListener(f.listener)
	return f
}

func pdf() io.Reader {
	return strings.NewReader("%PDF-1.4 test")
}

func ptr(id int64) *int64 {
	return &id
}

func invoiceInput(num, ht, tva string, orderID *int64) InvoiceInput {
	return InvoiceInput{
		BeneficiaireID:  supplierID,
		NumFacture:      num,
		DateFacture:     "2024-05-02",
		DateEcheance:    "2024-06-30",
		MontantHT:       d(ht),
		MontantTVA:      d(tva),
		MontantTTC:      d(ht).Add(d(tva)),
		OrdreVirementID: orderID,
	}
}

func (f *fixture) createInvoice(t *testing.T, num, ht, tva string, orderID *int64) Invoice {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), f.actor, invoiceInput(num, ht, tva, orderID), Uploads{FieldFacturePDF: pdf()})
	require.NoError(t, err)
	return inv
}

func orderInput() OrderInput {
	return OrderInput{
		TypeOV:             TypeVirement,
		BeneficiaireID:     supplierID,
		CompteTresorerieID: supplierAccount,
		CompteEmetteurID:   companyAccount,
	}
}

func (f *fixture) createOrder(t *testing.T) PaymentOrder {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), f.actor, orderInput(), nil)
	require.NoError(t, err)
	return o
}

func (f *fixture) order(t *testing.T, id int64) PaymentOrder {
	t.Helper()
	o, err := f.svc.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) invoice(t *testing.T, id int64) Invoice {
	t.Helper()
	inv, err := f.svc.GetInvoice(context.Background(), id)
	require.NoError(t, err)
	return inv
}

// submit walks the order through signature and hand-over to the bank.
func (f *fixture) submit(t *testing.T, id int64) PaymentOrder {
	t.Helper()
	ctx := context.Background()
	in := orderInput()
	in.ValidePourSignature = true
	_, err := f.svc.UpdateOrder(ctx, f.actor, id, in, nil)
	require.NoError(t, err)

	in.DateRemiseBanque = "2024-05-20"
	o, err := f.svc.UpdateOrder(ctx, f.actor, id, in, Uploads{FieldOVRemisBanquePDF: pdf()})
	require.NoError(t, err)
	require.True(t, o.RemisABanque)
	return o
}

func submittedInput() OrderInput {
	in := orderInput()
	in.ValidePourSignature = true
	in.DateRemiseBanque = "2024-05-20"
	in.RemisABanque = true
	return in
}

func TestCreateOrderAssignsReferenceAndDate(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	require.Equal(t, strconv.FormatInt(o.ID+5000, 10), o.Reference)
	require.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), o.DateOV)
	require.True(t, o.Montant.IsZero())
	require.Equal(t, f.actor.IDPtr(), o.CreatedBy)
}

func TestOrderAmountIsSumOfNetPayable(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	first := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	second := f.createInvoice(t, "F-2", "500.50", "100.10", &o.ID)

	requireAmount(t, "1800.60", f.order(t, o.ID).Montant, "montant")
	require.Equal(t, StatusEtablissement, f.invoice(t, first.ID).Statut)
	require.Equal(t, StatusEtablissement, f.invoice(t, second.ID).Statut)
	require.NotEmpty(t, first.FacturePDF)
	require.True(t, f.files.Has(first.FacturePDF))
	require.Positive(t, f.listener.calls)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)

	ctx := context.Background()
	first, err := f.svc.Recompute(ctx, o.ID)
	require.NoError(t, err)
	second, err := f.svc.Recompute(ctx, o.ID)
	require.NoError(t, err)

	require.True(t, first.Montant.Equal(second.Montant))
	n := len(f.recorder.reconciled)
	require.Equal(t, []bool{false, false}, f.recorder.reconciled[n-2:])
}

func TestDetachDropsInvoiceFromAmount(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	first := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.createInvoice(t, "F-2", "500.50", "100.10", &o.ID)

	no := false
	detached, err := f.svc.SetAssociation(context.Background(), f.actor, first.ID, AssociationInput{OrdreVirementID: o.ID, IsAssociated: &no})
	require.NoError(t, err)
	require.Nil(t, detached.OrdreVirementID)
	require.Equal(t, StatusAttente, detached.Statut)
	requireAmount(t, "600.60", f.order(t, o.ID).Montant, "montant")

	yes := true
	attached, err := f.svc.SetAssociation(context.Background(), f.actor, first.ID, AssociationInput{OrdreVirementID: o.ID, IsAssociated: &yes})
	require.NoError(t, err)
	require.Equal(t, StatusEtablissement, attached.Statut)
	requireAmount(t, "1800.60", f.order(t, o.ID).Montant, "montant")
}

func TestAssociationRejectsOrderOfAnotherBeneficiary(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	in := invoiceInput("F-9", "100", "20", &o.ID)
	in.BeneficiaireID = otherID
	_, err := f.svc.CreateInvoice(context.Background(), f.actor, in, Uploads{FieldFacturePDF: pdf()})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "ordre_virement_id")
	list, _, err := f.svc.ListInvoices(context.Background(), InvoiceFilters{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestLockOrdersTakesAscendingIDs(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[3] = PaymentOrder{ID: 3}
	repo.orders[9] = PaymentOrder{ID: 9}
	require.NoError(t, lockOrders(context.Background(), repo, ptr(9), nil, ptr(3), ptr(9)))
	require.Equal(t, []int64{3, 9}, repo.locked)
}

func TestSubmittedWithoutBankFileIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	_, err := f.svc.UpdateOrder(context.Background(), f.actor, o.ID, submittedInput(), nil)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "remis_a_banque")
	require.False(t, f.order(t, o.ID).RemisABanque)
}

func TestMilestonesPropagateToInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	inv := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)

	f.submit(t, o.ID)
	require.Equal(t, StatusBanque, f.invoice(t, inv.ID).Statut)

	in := submittedInput()
	in.DateOperationBanque = "2024-05-22"
	in.CompteDebite = true
	debited, err := f.svc.UpdateOrder(ctx, f.actor, o.ID, in, Uploads{FieldAvisDebitPDF: pdf()})
	require.NoError(t, err)
	require.True(t, debited.CompteDebite)

	paid := f.invoice(t, inv.ID)
	require.Equal(t, StatusPayee, paid.Statut)
	require.NotNil(t, paid.DatePaiement)
	require.Equal(t, time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC), *paid.DatePaiement)
	require.Equal(t, []string{MilestoneSignature, MilestoneBanque, MilestoneDebit}, f.recorder.milestones)
}

func TestEditAfterDebitIsLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.submit(t, o.ID)

	in := submittedInput()
	in.DateOperationBanque = "2024-05-22"
	in.CompteDebite = true
	_, err := f.svc.UpdateOrder(ctx, f.actor, o.ID, in, Uploads{FieldAvisDebitPDF: pdf()})
	require.NoError(t, err)

	in.BeneficiaireID = otherID
	in.CompteTresorerieID = otherAccount
	_, err = f.svc.UpdateOrder(ctx, f.actor, o.ID, in, nil)
	var locked *fieldlock.LockedFieldError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "beneficiaire", locked.Field)
	require.Equal(t, supplierID, f.order(t, o.ID).BeneficiaireID)
}

func TestSubmittedOrderKeepsItsAmount(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.submit(t, o.ID)

	_, err := f.svc.CreateInvoice(context.Background(), f.actor, invoiceInput("F-2", "10", "2", &o.ID), Uploads{FieldFacturePDF: pdf()})
	var locked *fieldlock.LockedFieldError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "montant", locked.Field)

	requireAmount(t, "1200", f.order(t, o.ID).Montant, "montant")
	list, _, err := f.svc.ListInvoices(context.Background(), InvoiceFilters{})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAttachedInvoiceIsLocked(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	inv := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)

	in := invoiceInput("F-1-bis", "1000.00", "200.00", &o.ID)
	_, err := f.svc.UpdateInvoice(context.Background(), f.actor, inv.ID, in, nil)
	var locked *fieldlock.LockedFieldError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "num_facture", locked.Field)
}

func TestAttachedInvoiceAcceptsMissingInvoiceFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	in := invoiceInput("F-1", "1000.00", "200.00", &o.ID)
	inv, err := f.svc.CreateInvoice(ctx, f.actor, in, Uploads{FieldProformaPDF: pdf()})
	require.NoError(t, err)
	require.Empty(t, inv.FacturePDF)

	updated, err := f.svc.UpdateInvoice(ctx, f.actor, inv.ID, in, Uploads{FieldFacturePDF: pdf()})
	require.NoError(t, err)
	require.NotEmpty(t, updated.FacturePDF)

	_, err = f.svc.UpdateInvoice(ctx, f.actor, inv.ID, in, Uploads{FieldFacturePDF: pdf()})
	var locked *fieldlock.LockedFieldError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "facture_pdf", locked.Field)
}

func TestInvoiceNeedsProformaOrInvoiceFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateInvoice(context.Background(), f.actor, invoiceInput("F-1", "100", "20", nil), nil)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, FieldFacturePDF)
}

func TestInvoiceRejectsInconsistentTotal(t *testing.T) {
	f := newFixture(t)
	in := invoiceInput("F-1", "100", "20", nil)
	in.MontantTTC = d("121")
	_, err := f.svc.CreateInvoice(context.Background(), f.actor, in, Uploads{FieldFacturePDF: pdf()})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "montant_ttc")
}

func contractInvoiceInput() InvoiceInput {
	return InvoiceInput{
		BeneficiaireID: supplierID,
		ContratID:      ptr(contractID),
		NumFacture:     "C-1",
		DateFacture:    "2024-01-20",
		DateExecution:  "2024-01-10",
		MontantHT:      d("10000"),
		MontantTVA:     d("2000"),
		MontantTTC:     d("12000"),
	}
}

func TestContractInvoiceDerivesDueDateAndWithholdings(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), f.actor, contractInvoiceInput(), Uploads{FieldFacturePDF: pdf(), FieldPVReceptionPDF: pdf()})
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), inv.DateEcheance)
	requireAmount(t, "2000", inv.MontantTVA, "tva")
	requireAmount(t, "1500", inv.MntRASTVA, "ras tva")
	requireAmount(t, "840", inv.MntRG, "rg")
	requireAmount(t, "9660", inv.MntNetAPayer, "net")
}

func TestContractInvoiceNeedsReceptionReport(t *testing.T) {
	f := newFixture(t)
	in := contractInvoiceInput()
	in.DateExecution = ""
	_, err := f.svc.CreateInvoice(context.Background(), f.actor, in, Uploads{FieldFacturePDF: pdf()})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, FieldPVReceptionPDF)
	require.Contains(t, verr.Fields, "date_execution")
}

func TestInvoiceWithoutContractNeedsDueDate(t *testing.T) {
	f := newFixture(t)
	in := invoiceInput("F-1", "100", "20", nil)
	in.DateEcheance = ""
	_, err := f.svc.CreateInvoice(context.Background(), f.actor, in, Uploads{FieldFacturePDF: pdf()})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "date_echeance")
}

func TestCreditNotesRecomputeInvoiceAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	in := contractInvoiceInput()
	inv, err := f.svc.CreateInvoice(ctx, f.actor, in, Uploads{FieldProformaPDF: pdf(), FieldPVReceptionPDF: pdf()})
	require.NoError(t, err)

	note, err := f.svc.AddCreditNote(ctx, f.actor, inv.ID, CreditNoteInput{NumAvoir: "AV-1", DateAvoir: "2024-02-01", MontantHT: d("1000")})
	require.NoError(t, err)
	reduced := f.invoice(t, inv.ID)
	requireAmount(t, "1800", reduced.MontantTVA, "tva")
	requireAmount(t, "10800", reduced.MontantTTC, "ttc")
	requireAmount(t, "8694", reduced.MntNetAPayer, "net")

	yes := true
	_, err = f.svc.SetAssociation(ctx, f.actor, inv.ID, AssociationInput{OrdreVirementID: o.ID, IsAssociated: &yes})
	require.NoError(t, err)
	requireAmount(t, "8694", f.order(t, o.ID).Montant, "montant")

	view, err := f.svc.InvoiceView(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, view.CreditNotes, 1)
	requireAmount(t, "1000", view.CreditTotal, "total avoirs")

	_, err = f.svc.AddCreditNote(ctx, f.actor, inv.ID, CreditNoteInput{NumAvoir: "AV-2", DateAvoir: "2024-02-01", MontantHT: d("0")})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	no := false
	_, err = f.svc.SetAssociation(ctx, f.actor, inv.ID, AssociationInput{OrdreVirementID: o.ID, IsAssociated: &no})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteCreditNote(ctx, f.actor, inv.ID, note.ID))
	requireAmount(t, "9660", f.invoice(t, inv.ID).MntNetAPayer, "net")
	require.ErrorIs(t, f.svc.DeleteCreditNote(ctx, f.actor, inv.ID, note.ID), shared.ErrNotFound)
}

func TestDeleteOrderRevertsInvoices(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	first := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.createInvoice(t, "F-2", "500.50", "100.10", &o.ID)
	submitted := f.submit(t, o.ID)

	require.NoError(t, f.svc.DeleteOrder(context.Background(), f.actor, o.ID))

	_, err := f.svc.GetOrder(context.Background(), o.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	reverted := f.invoice(t, first.ID)
	require.Equal(t, StatusAttente, reverted.Statut)
	require.Nil(t, reverted.OrdreVirementID)
	require.Nil(t, reverted.DatePaiement)
	require.Len(t, f.notifier.orders, 1)
	require.Len(t, f.notifier.detached, 2)
	require.False(t, f.files.Has(submitted.OVRemisBanquePDF))
}

func TestDeleteInvoiceReportsNotificationFailure(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	inv := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.createInvoice(t, "F-2", "500.50", "100.10", &o.ID)
	f.notifier.err = errors.New("smtp unavailable")

	err := f.svc.DeleteInvoice(context.Background(), f.actor, inv.ID)
	sideEffect, ok := AsSideEffect(err)
	require.True(t, ok)
	require.Contains(t, sideEffect.Message, "smtp unavailable")

	_, err = f.svc.GetInvoice(context.Background(), inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	requireAmount(t, "600.60", f.order(t, o.ID).Montant, "montant")
	require.False(t, f.files.Has(inv.FacturePDF))
}

func TestOrderTypeRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	toCompany := orderInput()
	toCompany.BeneficiaireID = companyID
	toCompany.CompteTresorerieID = companyAccount2
	_, err := f.svc.CreateOrder(ctx, f.actor, toCompany, nil)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "beneficiaire_id")

	toCompany.TypeOV = TypeTransfert
	transfer, err := f.svc.CreateOrder(ctx, f.actor, toCompany, nil)
	require.NoError(t, err)
	require.Equal(t, TypeTransfert, transfer.TypeOV)

	wrongSender := orderInput()
	wrongSender.CompteEmetteurID = supplierAccount
	_, err = f.svc.CreateOrder(ctx, f.actor, wrongSender, nil)
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "compte_emetteur_id")

	wrongRecipient := orderInput()
	wrongRecipient.CompteTresorerieID = otherAccount
	_, err = f.svc.CreateOrder(ctx, f.actor, wrongRecipient, nil)
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "compte_tresorerie_id")
}

func TestOrderRequiresCompanyConfiguration(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.CompanyName = ""
	_, err := f.svc.CreateOrder(context.Background(), f.actor, orderInput(), nil)
	require.ErrorIs(t, err, shared.ErrConfiguration)
}

func TestLookupInvoicesListsAvailableInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	f.createInvoice(t, "F-1", "100", "20", &o.ID)
	f.createInvoice(t, "F-2", "100", "20", nil)

	_, err := f.svc.LookupInvoices(ctx, 0, nil)
	require.Error(t, err)

	free, err := f.svc.LookupInvoices(ctx, supplierID, nil)
	require.NoError(t, err)
	require.Len(t, free, 1)
	require.Equal(t, "F-2", free[0].NumFacture)

	withOrder, err := f.svc.LookupInvoices(ctx, supplierID, &o.ID)
	require.NoError(t, err)
	require.Len(t, withOrder, 2)
}

func TestOrderViewListsOpenFields(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	f.createInvoice(t, "F-1", "100", "20", &o.ID)

	view, err := f.svc.OrderView(context.Background(), o.ID)
	require.NoError(t, err)
	require.False(t, view.Locked)
	require.True(t, view.InvoicesOpen)
	require.Len(t, view.Invoices, 1)

	f.submit(t, o.ID)
	view, err = f.svc.OrderView(context.Background(), o.ID)
	require.NoError(t, err)
	require.True(t, view.Locked)
	require.False(t, view.InvoicesOpen)
	require.Equal(t, StatusBanque, view.InvoiceStatus)
	require.ElementsMatch(t, orderSubmittedOpen, view.Editable)
}

func TestReconcileAllVisitsEveryOrder(t *testing.T) {
	f := newFixture(t)
	first := f.createOrder(t)
	f.createOrder(t)
	f.createInvoice(t, "F-1", "100", "20", &first.ID)

	n, err := f.svc.ReconcileAll(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestReconcileAllContinuesPastLockedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submitted := f.createOrder(t)
	f.createInvoice(t, "F-1", "1000.00", "200.00", &submitted.ID)
	f.submit(t, submitted.ID)
	open := f.createOrder(t)
	f.createInvoice(t, "F-2", "200.00", "40.00", &open.ID)

	drift := func(id int64, amount string) {
		o := f.repo.orders[id]
		o.Montant = d(amount)
		f.repo.orders[id] = o
	}
	drift(submitted.ID, "1")
	drift(open.ID, "2")

	n, err := f.svc.ReconcileAll(ctx, false)
	require.Equal(t, 1, n)
	var locked *fieldlock.LockedFieldError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "montant", locked.Field)
	require.Contains(t, err.Error(), "order "+strconv.FormatInt(submitted.ID, 10))
	requireAmount(t, "240", f.order(t, open.ID).Montant, "open montant")
	requireAmount(t, "1", f.order(t, submitted.ID).Montant, "submitted montant")

	n, err = f.svc.ReconcileAll(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	requireAmount(t, "1200", f.order(t, submitted.ID).Montant, "repaired montant")
}

func TestRepairRewritesSubmittedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.submit(t, o.ID)
	drifted := f.repo.orders[o.ID]
	drifted.Montant = d("5")
	f.repo.orders[o.ID] = drifted

	_, err := f.svc.Recompute(ctx, o.ID)
	require.ErrorIs(t, err, fieldlock.ErrLocked)

	repaired, err := f.svc.Repair(ctx, o.ID)
	require.NoError(t, err)
	requireAmount(t, "1200", repaired.Montant, "montant")
}

func TestCreditNotesCannotExceedInvoiceAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "F-1", "100", "20", nil)

	_, err := f.svc.AddCreditNote(ctx, f.actor, inv.ID, CreditNoteInput{NumAvoir: "AV-1", DateAvoir: "2024-05-10", MontantHT: d("500")})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "montant_ht")

	notes, err := f.svc.ListCreditNotes(ctx, inv.ID)
	require.NoError(t, err)
	require.Empty(t, notes)
	requireAmount(t, "120", f.invoice(t, inv.ID).MntNetAPayer, "net")

	_, err = f.svc.AddCreditNote(ctx, f.actor, inv.ID, CreditNoteInput{NumAvoir: "AV-2", DateAvoir: "2024-05-10", MontantHT: d("100")})
	require.NoError(t, err)
	requireAmount(t, "20", f.invoice(t, inv.ID).MntNetAPayer, "net after full credit")
}

func TestPenaltyCannotExceedTTC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)

	in := invoiceInput("F-1", "100", "20", &o.ID)
	in.Penalite = d("500")
	_, err := f.svc.CreateInvoice(ctx, f.actor, in, Uploads{FieldFacturePDF: pdf()})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "penalite")
	require.True(t, f.order(t, o.ID).Montant.IsZero())

	in.Penalite = d("120")
	inv, err := f.svc.CreateInvoice(ctx, f.actor, in, Uploads{FieldFacturePDF: pdf()})
	require.NoError(t, err)
	require.True(t, inv.MntNetAPayer.IsZero())
}

func TestClearingDebitResetsPaymentDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)
	inv := f.createInvoice(t, "F-1", "1000.00", "200.00", &o.ID)
	f.submit(t, o.ID)

	in := submittedInput()
	in.DateOperationBanque = "2024-05-25"
	in.CompteDebite = true
	_, err := f.svc.UpdateOrder(ctx, f.actor, o.ID, in, Uploads{FieldAvisDebitPDF: pdf()})
	require.NoError(t, err)
	require.NotNil(t, f.invoice(t, inv.ID).DatePaiement)

	in.CompteDebite = false
	_, err = f.svc.UpdateOrder(ctx, f.actor, o.ID, in, nil)
	require.NoError(t, err)

	reverted := f.invoice(t, inv.ID)
	require.Equal(t, StatusBanque, reverted.Statut)
	require.Nil(t, reverted.DatePaiement)
}

func TestUpdateInvoiceReplacesInvoiceFile(t *testing.T) {
	f := newFixture(t)
	inv := f.createInvoice(t, "F-1", "100", "20", nil)
	previous := inv.FacturePDF
	require.True(t, f.files.Has(previous))

	updated, err := f.svc.UpdateInvoice(context.Background(), f.actor, inv.ID, invoiceInput("F-1", "100", "20", nil), Uploads{FieldFacturePDF: pdf()})
	require.NoError(t, err)
	require.NotEqual(t, previous, updated.FacturePDF)
	require.True(t, f.files.Has(updated.FacturePDF))
	require.False(t, f.files.Has(previous))
	require.Contains(t, f.files.Deleted, previous)
}

func TestUpdateOrderReplacesBankFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t)

	first, err := f.svc.UpdateOrder(ctx, f.actor, o.ID, orderInput(), Uploads{FieldOVRemisBanquePDF: pdf()})
	require.NoError(t, err)
	require.NotEmpty(t, first.OVRemisBanquePDF)
	require.False(t, first.RemisABanque)

	second, err := f.svc.UpdateOrder(ctx, f.actor, o.ID, orderInput(), Uploads{FieldOVRemisBanquePDF: pdf()})
	require.NoError(t, err)
	require.NotEqual(t, first.OVRemisBanquePDF, second.OVRemisBanquePDF)
	require.True(t, f.files.Has(second.OVRemisBanquePDF))
	require.False(t, f.files.Has(first.OVRemisBanquePDF))
}

func TestFailedUpdateDiscardsNewUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, "F-1", "100", "20", nil)
	o := f.createOrder(t)
	before := f.files.Keys()

	in := invoiceInput("F-1", "100", "20", nil)
	in.Penalite = d("1000")
	_, err := f.svc.UpdateInvoice(ctx, f.actor, inv.ID, in, Uploads{FieldFacturePDF: pdf()})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, before, f.files.Keys())
	require.Equal(t, inv.FacturePDF, f.invoice(t, inv.ID).FacturePDF)

	bad := orderInput()
	bad.CompteEmetteurID = supplierAccount
	_, err = f.svc.UpdateOrder(ctx, f.actor, o.ID, bad, Uploads{FieldOVRemisBanquePDF: pdf()})
	require.Error(t, err)
	require.Equal(t, before, f.files.Keys())
	require.Empty(t, f.order(t, o.ID).OVRemisBanquePDF)
}
