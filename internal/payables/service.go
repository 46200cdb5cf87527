package payables

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/shared"
)

// Notifier delivers best-effort notifications once a deletion committed.
type Notifier interface {
	InvoiceDeleted(ctx context.Context, inv Invoice) error
	OrderDeleted(ctx context.Context, order PaymentOrder, detached []Invoice) error
}

// ChangeListener is told after every committed payables mutation.
type ChangeListener interface {
	PayablesChanged(ctx context.Context) error
}

// Config carries the settings the order rules depend on.
type Config struct {
	// CompanyName is the raison sociale of the beneficiary owning the
	// sender accounts.
	CompanyName string
	// OVStartNum offsets generated order references.
	OVStartNum int64
}

// Uploads maps an attachment field to its uploaded content.
type Uploads map[string]io.Reader

type Service struct {
	repo       Repository
	files      attachments.Store
	reconciler *Reconciler
	notifier   Notifier
	listener   ChangeListener
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, files attachments.Store, reconciler *Reconciler, cfg Config, logger *slog.Logger) *Service {
	if reconciler == nil {
		reconciler = NewReconciler(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		files:      files,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// SetNotifier injects the mail hooks used after deletions.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetChangeListener injects the hook run after each committed mutation.
func (s *Service) SetChangeListener(l ChangeListener) {
	s.listener = l
}

// storeUploads writes each upload under the entity and points the matching
// field at the new key. Superseded keys are queued on pending; new keys are
// appended to stored so a rollback can remove them.
func (s *Service) storeUploads(ctx context.Context, kind string, id int64, files Uploads, fields map[string]*string, pending *attachments.Pending, stored *[]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dst, ok := fields[name]
		if !ok {
			return shared.NewValidationError(name, "is not an attachment field")
		}
		key, err := s.files.Put(ctx, kind, id, name, files[name], attachments.AcceptPDF)
		if err != nil {
			return err
		}
		*stored = append(*stored, key)
		pending.Replace(*dst, key)
		*dst = key
	}
	return nil
}

// discard removes files written by a transaction that rolled back.
func (s *Service) discard(ctx context.Context, stored []string) {
	for _, key := range stored {
		if err := s.files.Delete(ctx, key); err != nil {
			s.logger.Warn("remove orphan attachment", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// afterCommit runs the best-effort steps of a committed mutation. File
// cleanup and cache invalidation are logged; notification failures are
// returned as a *SideEffectError.
func (s *Service) afterCommit(ctx context.Context, pending *attachments.Pending, notify func() error) error {
	if pending != nil {
		_ = pending.Flush(ctx, s.files, s.logger)
	}
	if s.listener != nil {
		if err := s.listener.PayablesChanged(ctx); err != nil {
			s.logger.Warn("payables change hook failed", slog.Any("error", err))
		}
	}
	if notify == nil || s.notifier == nil {
		return nil
	}
	if err := notify(); err != nil {
		s.logger.Warn("payables notification failed", slog.Any("error", err))
		return wrapSideEffect("notification", err)
	}
	return nil
}

// lockOrders takes the row locks of the given orders in id order so that
// invoice and order writers queue in the same sequence.
func lockOrders(ctx context.Context, tx TxRepository, ids ...*int64) error {
	seen := make(map[int64]struct{}, len(ids))
	var ordered []int64
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		ordered = append(ordered, *id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	for _, id := range ordered {
		if _, err := tx.LockOrder(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// reconcileAll reconciles each distinct order once.
func (s *Service) reconcileAll(ctx context.Context, tx TxRepository, ids ...*int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		if _, err := s.reconciler.Reconcile(ctx, tx, *id); err != nil {
			return err
		}
	}
	return nil
}
