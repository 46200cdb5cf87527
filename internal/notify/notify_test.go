package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/internships"
	"github.com/supratours/virements/internal/omra"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/shared"
	"github.com/supratours/virements/internal/tenders"
	"github.com/supratours/virements/internal/view"
	"github.com/supratours/virements/jobs"
	_ "github.com/supratours/virements/testing"
)

type fakeQueue struct {
	sent []jobs.SendEmailPayload
	err  error
}

func (q *fakeQueue) EnqueueSendEmail(_ context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.sent = append(q.sent, payload)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type fakeUsers map[int64]string

func (u fakeUsers) Email(_ context.Context, id int64) (string, error) {
	email, ok := u[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	return email, nil
}

func newTestService(t *testing.T, recipients Recipients) (*Service, *fakeQueue) {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	queue := &fakeQueue{}
	users := fakeUsers{1: "karim@supratours.ma", 2: "nadia@supratours.ma", 3: ""}
	return NewService(queue, engine, users, recipients, nil), queue
}

func ptr(v int64) *int64 { return &v }

func TestInvoiceDeletedMailsCreatorAndUpdaterOnce(t *testing.T) {
	svc, queue := newTestService(t, Recipients{})
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 2, Name: "Nadia"})

	err := svc.InvoiceDeleted(ctx, payables.Invoice{NumFacture: "F-2024-118", CreatedBy: ptr(1), UpdatedBy: ptr(1)})
	require.NoError(t, err)
	require.Len(t, queue.sent, 1)
	require.Equal(t, []string{"karim@supratours.ma"}, queue.sent[0].To)
	require.Equal(t, "Suppression de la facture F-2024-118", queue.sent[0].Subject)
	require.Contains(t, queue.sent[0].HTML, "F-2024-118")
	require.Contains(t, queue.sent[0].HTML, "Nadia")
}

func TestInvoiceDeletedWithoutKnownUsersSendsNothing(t *testing.T) {
	svc, queue := newTestService(t, Recipients{})
	err := svc.InvoiceDeleted(context.Background(), payables.Invoice{NumFacture: "F1", CreatedBy: ptr(3), UpdatedBy: ptr(99)})
	require.NoError(t, err)
	require.Empty(t, queue.sent)
}

func TestOrderDeletedListsDetachedInvoices(t *testing.T) {
	svc, queue := newTestService(t, Recipients{})
	order := payables.PaymentOrder{Reference: "6012", CreatedBy: ptr(1), UpdatedBy: ptr(2)}
	err := svc.OrderDeleted(context.Background(), order, []payables.Invoice{{NumFacture: "F-77"}})
	require.NoError(t, err)
	require.Len(t, queue.sent, 1)
	require.ElementsMatch(t, []string{"karim@supratours.ma", "nadia@supratours.ma"}, queue.sent[0].To)
	require.Equal(t, "Suppression de l'ordre de virement 6012", queue.sent[0].Subject)
	require.Contains(t, queue.sent[0].HTML, "F-77")
}

func TestCreationNotices(t *testing.T) {
	svc, queue := newTestService(t, Recipients{
		TenderTo: []string{"ao@supratours.ma"},
		TenderCc: []string{"direction@supratours.ma"},
	})
	ctx := context.Background()

	err := svc.TenderCreated(ctx, tenders.Tender{Numero: "AO-12/2024", Objet: "Transport scolaire", DateOuverture: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, queue.sent, 1)
	require.Equal(t, "Nouveau AO", queue.sent[0].Subject)
	require.Equal(t, []string{"direction@supratours.ma"}, queue.sent[0].Cc)
	require.Contains(t, queue.sent[0].HTML, "AO-12/2024")
	require.Contains(t, queue.sent[0].HTML, "03/06/2024")

	// no omra list configured
	require.NoError(t, svc.OmraCreated(ctx, omra.Event{Objet: "Ramadan"}))
	require.Len(t, queue.sent, 1)
}

func TestApplicationReceived(t *testing.T) {
	svc, queue := newTestService(t, Recipients{InternshipBcc: []string{"rh@supratours.ma"}})
	err := svc.ApplicationReceived(context.Background(), internships.Application{
		Prenom: "Salma", Nom: "Bennani", Email: "salma@example.ma", VilleNom: "Rabat", PeriodeNom: "Juillet 2024",
	})
	require.NoError(t, err)
	require.Len(t, queue.sent, 1)
	sent := queue.sent[0]
	require.Equal(t, []string{"salma@example.ma"}, sent.To)
	require.Equal(t, []string{"rh@supratours.ma"}, sent.Bcc)
	require.Equal(t, "Candidature de stage", sent.Subject)
	require.Contains(t, sent.HTML, "Salma Bennani")
	require.Contains(t, sent.HTML, "Juillet 2024")
}

func TestQueueFailureIsReported(t *testing.T) {
	svc, queue := newTestService(t, Recipients{OmraTo: []string{"omra@supratours.ma"}})
	queue.err = errors.New("redis down")
	err := svc.OmraCreated(context.Background(), omra.Event{Objet: "Chaabane"})
	require.ErrorContains(t, err, "redis down")
}
