package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/supratours/virements/internal/jobs"
	"github.com/supratours/virements/internal/masterdata/contracts"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/shared"
)

const (
	invoiceDigestSubject = "Suivi quotidien des factures impayées déjà échues ou avec échéance dans les 5 prochains jours"
	unpaidListSubject    = "Liste des factures impayées"
	purchaseOrderSubject = "Suivi hebdomadaire des bons de commande non soldés"

	// DigestHorizonDays is how far ahead the invoice digest looks.
	DigestHorizonDays = 5
)

// InvoiceDigestPayload selects the digest variant. All lists every unpaid
// invoice regardless of its due date.
type InvoiceDigestPayload struct {
	All bool `json:"all"`
}

// NewInvoiceDigestTask constructs the digest task.
func NewInvoiceDigestTask(payload InvoiceDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceDigest, data, asynq.MaxRetry(2)), nil
}

// NewPurchaseOrderDigestTask constructs the purchase-order digest task.
func NewPurchaseOrderDigestTask() *asynq.Task {
	return asynq.NewTask(TaskPurchaseOrderDigest, nil, asynq.MaxRetry(2))
}

// InvoiceSource lists invoices.
type InvoiceSource interface {
	ListInvoices(ctx context.Context, filters payables.InvoiceFilters) ([]payables.Invoice, int, error)
}

// PurchaseOrderSource lists purchase orders with an uninvoiced balance.
type PurchaseOrderSource interface {
	UnsettledPurchaseOrders(ctx context.Context) ([]contracts.Balance, error)
}

// Renderer renders a named mail template.
type Renderer interface {
	RenderString(name string, data any) (string, error)
}

// MailEnqueuer queues outbound mail.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// DigestRecipients lists who receives each digest.
type DigestRecipients struct {
	Invoices       []string
	PurchaseOrders []string
}

// DigestJob builds the periodic follow-up mails.
type DigestJob struct {
	Invoices   InvoiceSource
	Contracts  PurchaseOrderSource
	Renderer   Renderer
	Mail       MailEnqueuer
	Recipients DigestRecipients
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

type invoiceDigestView struct {
	Until    time.Time
	Invoices []payables.Invoice
	Total    decimal.Decimal
}

type purchaseOrderView struct {
	Contracts []contracts.Balance
}

// HandleInvoiceDigest processes TaskInvoiceDigest tasks.
func (j *DigestJob) HandleInvoiceDigest(ctx context.Context, t *asynq.Task) (err error) {
	var payload InvoiceDigestPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode digest payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskInvoiceDigest)
	defer func() { err = tracker.End(err) }()
	_, err = j.SendInvoiceDigest(ctx, payload.All)
	return err
}

// SendInvoiceDigest mails the unpaid invoices and returns how many were
// listed. Nothing is sent when the list is empty.
func (j *DigestJob) SendInvoiceDigest(ctx context.Context, all bool) (int, error) {
	until := shared.Today(j.now()).AddDate(0, 0, DigestHorizonDays)
	filters := payables.InvoiceFilters{Unpaid: true}
	subject := unpaidListSubject
	if !all {
		filters.DueBefore = &until
		subject = invoiceDigestSubject
	}
	invoices, _, err := j.Invoices.ListInvoices(ctx, filters)
	if err != nil {
		return 0, fmt.Errorf("list unpaid invoices: %w", err)
	}
	if len(invoices) == 0 {
		j.logger().Info("invoice digest skipped, nothing due")
		return 0, nil
	}
	view := invoiceDigestView{Until: until, Invoices: invoices, Total: decimal.Zero}
	for _, inv := range invoices {
		view.Total = view.Total.Add(inv.MntNetAPayer)
	}
	if all {
		view.Until = time.Time{}
	}
	if err := j.send(ctx, "mail/invoice_digest", view, subject, j.Recipients.Invoices); err != nil {
		return 0, err
	}
	j.Metrics.AddDigestItems(TaskInvoiceDigest, len(invoices))
	j.logger().Info("invoice digest queued", slog.Int("invoices", len(invoices)), slog.String("total", view.Total.StringFixed(2)))
	return len(invoices), nil
}

// HandlePurchaseOrderDigest processes TaskPurchaseOrderDigest tasks.
func (j *DigestJob) HandlePurchaseOrderDigest(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskPurchaseOrderDigest)
	defer func() { err = tracker.End(err) }()
	_, err = j.SendPurchaseOrderDigest(ctx)
	return err
}

// SendPurchaseOrderDigest mails the purchase orders with a remaining
// balance and returns how many were listed.
func (j *DigestJob) SendPurchaseOrderDigest(ctx context.Context) (int, error) {
	rows, err := j.Contracts.UnsettledPurchaseOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unsettled purchase orders: %w", err)
	}
	if len(rows) == 0 {
		j.logger().Info("purchase order digest skipped, all settled")
		return 0, nil
	}
	if err := j.send(ctx, "mail/purchase_orders", purchaseOrderView{Contracts: rows}, purchaseOrderSubject, j.Recipients.PurchaseOrders); err != nil {
		return 0, err
	}
	j.Metrics.AddDigestItems(TaskPurchaseOrderDigest, len(rows))
	return len(rows), nil
}

func (j *DigestJob) send(ctx context.Context, template string, data any, subject string, to []string) error {
	if len(to) == 0 {
		return fmt.Errorf("%s: no recipients configured: %w", template, shared.ErrConfiguration)
	}
	body, err := j.Renderer.RenderString(template, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", template, err)
	}
	if _, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{To: to, Subject: subject, HTML: body}); err != nil {
		return fmt.Errorf("enqueue %s: %w", template, err)
	}
	return nil
}

func (j *DigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

func (j *DigestJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
