package tenders

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
)

// Notifier announces new tenders.
type Notifier interface {
	TenderCreated(ctx context.Context, t Tender) error
}

type Service struct {
	repo     Repository
	files    attachments.Store
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo Repository, files attachments.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, files: files, logger: logger}
}

// SetNotifier injects the creation mail hook.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Tender, int, error) {
	return s.repo.List(ctx, filters)
}

// Published lists the active tenders shown on the public site.
func (s *Service) Published(ctx context.Context) ([]Tender, error) {
	active := true
	items, _, err := s.repo.List(ctx, shared.ListFilters{IsActive: &active})
	return items, err
}

func (s *Service) Get(ctx context.Context, id int64) (Tender, error) {
	if id <= 0 {
		return Tender{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Create stores the tender and its PDF, then sends the announcement.
func (s *Service) Create(ctx context.Context, in Input, pdf io.Reader) (Tender, error) {
	t, err := build(Tender{Actif: true}, in)
	if err != nil {
		return Tender{}, err
	}
	if pdf == nil {
		return Tender{}, core.NewValidationError("ao_pdf", "is required")
	}
	t, err = s.repo.Create(ctx, t)
	if err != nil {
		return Tender{}, err
	}
	key, err := s.files.Put(ctx, attachments.KindTenders, t.ID, "ao_pdf", pdf, attachments.AcceptPDF)
	if err == nil {
		err = s.repo.SetPDF(ctx, t.ID, key)
	}
	if err != nil {
		if key != "" {
			_ = s.files.Delete(ctx, key)
		}
		if delErr := s.repo.Delete(ctx, t.ID); delErr != nil {
			s.logger.Error("remove tender after failed upload", slog.Int64("tender_id", t.ID), slog.Any("error", delErr))
		}
		return Tender{}, err
	}
	t.AOPDF = key
	if s.notifier != nil {
		if err := s.notifier.TenderCreated(ctx, t); err != nil {
			s.logger.Warn("tender notification failed", slog.Int64("tender_id", t.ID), slog.Any("error", err))
		}
	}
	return t, nil
}

// Update saves the fields and, when pdf is set, replaces the document. The
// new document is stored before the row is written so a rejected upload
// leaves the tender untouched.
func (s *Service) Update(ctx context.Context, id int64, in Input, pdf io.Reader) (Tender, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Tender{}, err
	}
	t, err := build(current, in)
	if err != nil {
		return Tender{}, err
	}
	if pdf != nil {
		if t.AOPDF, err = s.files.Put(ctx, attachments.KindTenders, id, "ao_pdf", pdf, attachments.AcceptPDF); err != nil {
			return Tender{}, err
		}
	}
	if err := s.repo.Update(ctx, t); err != nil {
		if t.AOPDF != current.AOPDF {
			_ = s.files.Delete(ctx, t.AOPDF)
		}
		return Tender{}, err
	}
	if err := attachments.Replace(ctx, s.files, current.AOPDF, t.AOPDF); err != nil {
		s.logger.Warn("delete superseded tender pdf", slog.Int64("tender_id", id), slog.Any("error", err))
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	var pending attachments.Pending
	pending.Remove(current.AOPDF)
	_ = pending.Flush(ctx, s.files, s.logger)
	return nil
}

func build(t Tender, in Input) (Tender, error) {
	in.Numero = strings.TrimSpace(in.Numero)
	in.Objet = strings.TrimSpace(in.Objet)
	if err := core.ValidateStruct(in); err != nil {
		return Tender{}, err
	}
	date, err := time.Parse(core.DateLayout, in.DateOuverture)
	if err != nil {
		return Tender{}, core.NewValidationError("date_ouverture", "must be a date formatted YYYY-MM-DD")
	}
	t.Numero = in.Numero
	t.Objet = in.Objet
	t.DateOuverture = date
	if in.Actif != nil {
		t.Actif = *in.Actif
	}
	return t, nil
}
