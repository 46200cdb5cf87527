package omra

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

type Notifier interface {
	OmraCreated(ctx context.Context, e Event) error
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

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Event, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id int64) (Event, error) {
	if id <= 0 {
		return Event{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Create stores the event with its poster image. The image is required.
func (s *Service) Create(ctx context.Context, in Input, image io.Reader) (Event, error) {
	e, err := build(Event{Actif: true}, in)
	if err != nil {
		return Event{}, err
	}
	if image == nil {
		return Event{}, core.NewValidationError("image", "is required")
	}
	e, err = s.repo.Create(ctx, e)
	if err != nil {
		return Event{}, err
	}
	key, err := s.storeImage(ctx, e.ID, image)
	if err != nil {
		if delErr := s.repo.Delete(ctx, e.ID); delErr != nil {
			s.logger.Error("remove omra event after failed upload", slog.Int64("event_id", e.ID), slog.Any("error", delErr))
		}
		return Event{}, err
	}
	e.Image = key
	if s.notifier != nil {
		if err := s.notifier.OmraCreated(ctx, e); err != nil {
			s.logger.Warn("omra notification failed", slog.Int64("event_id", e.ID), slog.Any("error", err))
		}
	}
	return e, nil
}

// Update stores the new image, if any, before writing the row so a rejected
// upload leaves the event untouched.
func (s *Service) Update(ctx context.Context, id int64, in Input, image io.Reader) (Event, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	e, err := build(current, in)
	if err != nil {
		return Event{}, err
	}
	if image != nil {
		if e.Image, err = s.files.Put(ctx, attachments.KindOmra, id, "image", image, attachments.AcceptImages); err != nil {
			return Event{}, err
		}
	}
	if err := s.repo.Update(ctx, e); err != nil {
		if e.Image != current.Image {
			_ = s.files.Delete(ctx, e.Image)
		}
		return Event{}, err
	}
	if err := attachments.Replace(ctx, s.files, current.Image, e.Image); err != nil {
		s.logger.Warn("delete superseded omra image", slog.Int64("event_id", id), slog.Any("error", err))
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if current.Image != "" {
		if err := s.files.Delete(ctx, current.Image); err != nil {
			s.logger.Warn("delete omra image", slog.String("key", current.Image), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) storeImage(ctx context.Context, id int64, image io.Reader) (string, error) {
	key, err := s.files.Put(ctx, attachments.KindOmra, id, "image", image, attachments.AcceptImages)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetImage(ctx, id, key); err != nil {
		_ = s.files.Delete(ctx, key)
		return "", err
	}
	return key, nil
}

func build(e Event, in Input) (Event, error) {
	in.Objet = strings.TrimSpace(in.Objet)
	if err := core.ValidateStruct(in); err != nil {
		return Event{}, err
	}
	date, err := time.Parse(core.DateLayout, in.DateDebut)
	if err != nil {
		return Event{}, core.NewValidationError("date_debut", "must be a date formatted YYYY-MM-DD")
	}
	e.Objet = in.Objet
	e.DateDebut = date
	if in.Actif != nil {
		e.Actif = *in.Actif
	}
	return e, nil
}
