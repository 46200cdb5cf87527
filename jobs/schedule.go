package jobs

// CronSpecs carries the schedules of the periodic digests. An empty spec
// disables the entry.
type CronSpecs struct {
	InvoiceDigest       string
	PurchaseOrderDigest string
}

// Handlers lists the task handlers the worker serves.
func Handlers(mail *MailJob, digests *DigestJob) []TaskHandler {
	return []TaskHandler{
		{Type: TaskTypeSendEmail, Handler: mail.Handle},
		{Type: TaskInvoiceDigest, Handler: digests.HandleInvoiceDigest},
		{Type: TaskPurchaseOrderDigest, Handler: digests.HandlePurchaseOrderDigest},
	}
}

// Schedule turns the cron specs into scheduler registrations.
func Schedule(specs CronSpecs) ([]CronRegistration, error) {
	var out []CronRegistration
	if specs.InvoiceDigest != "" {
		task, err := NewInvoiceDigestTask(InvoiceDigestPayload{})
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: specs.InvoiceDigest, Task: task})
	}
	if specs.PurchaseOrderDigest != "" {
		out = append(out, CronRegistration{Spec: specs.PurchaseOrderDigest, Task: NewPurchaseOrderDigestTask()})
	}
	return out, nil
}
