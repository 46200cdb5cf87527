package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/masterdata/contracts"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/view"
	_ "github.com/supratours/virements/testing"
)

type stubInvoices struct {
	invoices []payables.Invoice
	filters  payables.InvoiceFilters
}

func (s *stubInvoices) ListInvoices(_ context.Context, f payables.InvoiceFilters) ([]payables.Invoice, int, error) {
	s.filters = f
	return s.invoices, len(s.invoices), nil
}

type stubContracts struct{ rows []contracts.Balance }

func (s stubContracts) UnsettledPurchaseOrders(context.Context) ([]contracts.Balance, error) {
	return s.rows, nil
}

type recordingQueue struct{ sent []SendEmailPayload }

func (q *recordingQueue) EnqueueSendEmail(_ context.Context, p SendEmailPayload) (*asynq.TaskInfo, error) {
	q.sent = append(q.sent, p)
	return &asynq.TaskInfo{}, nil
}

func newDigestJob(t *testing.T, inv *stubInvoices, po stubContracts) (*DigestJob, *recordingQueue) {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	queue := &recordingQueue{}
	job := &DigestJob{
		Invoices:  inv,
		Contracts: po,
		Renderer:  engine,
		Mail:      queue,
		Recipients: DigestRecipients{
			Invoices:       []string{"tresorerie@supratours.ma"},
			PurchaseOrders: []string{"achats@supratours.ma"},
		},
		clock: func() time.Time { return time.Date(2024, 5, 15, 7, 0, 0, 0, time.UTC) },
	}
	return job, queue
}

func TestInvoiceDigestListsDueInvoicesWithTotal(t *testing.T) {
	due := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	inv := &stubInvoices{invoices: []payables.Invoice{
		{NumFacture: "F-1", BeneficiaireNom: "ATLAS BTP", DateEcheance: due, MntNetAPayer: decimal.NewFromInt(1000), Statut: payables.StatusAttente},
		{NumFacture: "F-2", BeneficiaireNom: "ATLAS BTP", DateEcheance: due, MntNetAPayer: decimal.RequireFromString("250.5"), Statut: payables.StatusSignature},
	}}
	job, queue := newDigestJob(t, inv, stubContracts{})

	n, err := job.SendInvoiceDigest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, inv.filters.Unpaid)
	require.NotNil(t, inv.filters.DueBefore)
	require.Equal(t, "2024-05-20", inv.filters.DueBefore.Format("2006-01-02"))

	require.Len(t, queue.sent, 1)
	mail := queue.sent[0]
	require.Equal(t, invoiceDigestSubject, mail.Subject)
	require.Equal(t, []string{"tresorerie@supratours.ma"}, mail.To)
	require.Contains(t, mail.HTML, "F-2")
	require.Contains(t, mail.HTML, "20/05/2024")
	require.Contains(t, mail.HTML, "250,50")
}

func TestUnpaidListHasNoDueDateFilter(t *testing.T) {
	inv := &stubInvoices{invoices: []payables.Invoice{{NumFacture: "F-9", MntNetAPayer: decimal.NewFromInt(5)}}}
	job, queue := newDigestJob(t, inv, stubContracts{})

	_, err := job.SendInvoiceDigest(context.Background(), true)
	require.NoError(t, err)
	require.Nil(t, inv.filters.DueBefore)
	require.Equal(t, unpaidListSubject, queue.sent[0].Subject)
	require.Contains(t, queue.sent[0].HTML, "liste complète")
}

func TestInvoiceDigestSkipsWhenNothingDue(t *testing.T) {
	job, queue := newDigestJob(t, &stubInvoices{}, stubContracts{})
	n, err := job.SendInvoiceDigest(context.Background(), false)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, queue.sent)
}

func TestPurchaseOrderDigest(t *testing.T) {
	rows := []contracts.Balance{{
		Contract: contracts.Contract{
			BeneficiaireNom: "RIAD SERVICES",
			NumeroContrat:   "BC-2024-07",
			MontantHT:       decimal.NewFromInt(100000),
		},
		MontantFacture: decimal.NewFromInt(40000),
		Reste:          decimal.NewFromInt(60000),
	}}
	job, queue := newDigestJob(t, &stubInvoices{}, stubContracts{rows: rows})

	require.NoError(t, job.HandlePurchaseOrderDigest(context.Background(), NewPurchaseOrderDigestTask()))
	require.Len(t, queue.sent, 1)
	require.Equal(t, []string{"achats@supratours.ma"}, queue.sent[0].To)
	require.Contains(t, queue.sent[0].HTML, "BC-2024-07")
}

func TestDigestWithoutRecipientsIsAConfigurationError(t *testing.T) {
	inv := &stubInvoices{invoices: []payables.Invoice{{NumFacture: "F-1"}}}
	job, _ := newDigestJob(t, inv, stubContracts{})
	job.Recipients.Invoices = nil
	_, err := job.SendInvoiceDigest(context.Background(), false)
	require.Error(t, err)
}

func TestScheduleSkipsEmptySpecs(t *testing.T) {
	regs, err := Schedule(CronSpecs{InvoiceDigest: "0 8 * * 1-5"})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, TaskInvoiceDigest, regs[0].Task.Type())
}
