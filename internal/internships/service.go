package internships

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

// Notifier acknowledges a submitted application to the applicant.
type Notifier interface {
	ApplicationReceived(ctx context.Context, a Application) error
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

func (s *Service) Cities(ctx context.Context, activeOnly bool) ([]City, error) {
	return s.repo.Cities(ctx, activeOnly)
}

func (s *Service) Periods(ctx context.Context, activeOnly bool) ([]Period, error) {
	return s.repo.Periods(ctx, activeOnly)
}

func (s *Service) CreateCity(ctx context.Context, name string) (City, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 15 {
		return City{}, core.NewValidationError("ville", "is required and at most 15 characters")
	}
	return s.repo.CreateCity(ctx, City{Ville: name, Actif: true})
}

func (s *Service) CreatePeriod(ctx context.Context, label string) (Period, error) {
	label = strings.TrimSpace(label)
	if label == "" || len([]rune(label)) > 100 {
		return Period{}, core.NewValidationError("periode", "is required and at most 100 characters")
	}
	return s.repo.CreatePeriod(ctx, Period{Periode: label, Actif: true})
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Application, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Application, error) {
	if id <= 0 {
		return Application{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Submit records an application with its CV and cover letter, then sends
// the acknowledgement.
func (s *Service) Submit(ctx context.Context, in ApplicationInput, cv, lettre io.Reader) (Application, error) {
	a, err := build(in)
	if err != nil {
		return Application{}, err
	}
	verr := &core.ValidationError{}
	if cv == nil {
		verr.Add("cv_pdf", "is required")
	}
	if lettre == nil {
		verr.Add("lettre_pdf", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return Application{}, err
	}

	id, err := s.repo.Create(ctx, a)
	if err != nil {
		return Application{}, err
	}
	var stored []string
	fail := func(err error) (Application, error) {
		for _, key := range stored {
			_ = s.files.Delete(ctx, key)
		}
		if delErr := s.repo.Delete(ctx, id); delErr != nil {
			s.logger.Error("remove application after failed upload", slog.Int64("application_id", id), slog.Any("error", delErr))
		}
		return Application{}, err
	}
	cvKey, err := s.files.Put(ctx, attachments.KindInternships, id, "cv_pdf", cv, attachments.AcceptCV)
	if err != nil {
		return fail(err)
	}
	stored = append(stored, cvKey)
	lettreKey, err := s.files.Put(ctx, attachments.KindInternships, id, "lettre_pdf", lettre, attachments.AcceptCV)
	if err != nil {
		return fail(err)
	}
	stored = append(stored, lettreKey)
	if err := s.repo.SetFiles(ctx, id, cvKey, lettreKey); err != nil {
		return fail(err)
	}

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.ApplicationReceived(ctx, created); err != nil {
			s.logger.Warn("internship acknowledgement failed", slog.Int64("application_id", id), slog.Any("error", err))
		}
	}
	return created, nil
}

// Review marks the application as handled or not and stores the comment.
func (s *Service) Review(ctx context.Context, id int64, in ReviewInput) (Application, error) {
	if id <= 0 {
		return Application{}, shared.ErrInvalidID
	}
	if in.Commentaire != nil {
		trimmed := strings.TrimSpace(*in.Commentaire)
		if trimmed == "" {
			in.Commentaire = nil
		} else {
			in.Commentaire = &trimmed
		}
	}
	if err := s.repo.Review(ctx, id, in); err != nil {
		return Application{}, err
	}
	return s.repo.Get(ctx, id)
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
	pending.Remove(current.CVPDF, current.LettrePDF)
	_ = pending.Flush(ctx, s.files, s.logger)
	return nil
}

func build(in ApplicationInput) (Application, error) {
	in.Nom = strings.TrimSpace(in.Nom)
	in.Prenom = strings.TrimSpace(in.Prenom)
	in.CIN = strings.ToUpper(strings.TrimSpace(in.CIN))
	in.Tel = strings.TrimSpace(in.Tel)
	in.Email = strings.TrimSpace(in.Email)
	if err := core.ValidateStruct(in); err != nil {
		return Application{}, err
	}
	born, err := time.Parse(core.DateLayout, in.DateNaissance)
	if err != nil {
		return Application{}, core.NewValidationError("date_naissance", "must be a date formatted YYYY-MM-DD")
	}
	return Application{
		Civilite:      strings.TrimSpace(in.Civilite),
		Nom:           in.Nom,
		Prenom:        in.Prenom,
		CIN:           in.CIN,
		DateNaissance: born,
		Tel:           in.Tel,
		Email:         in.Email,
		Adresse:       strings.TrimSpace(in.Adresse),
		VilleID:       in.VilleID,
		Niveau:        strings.TrimSpace(in.Niveau),
		Ecole:         strings.TrimSpace(in.Ecole),
		Specialite:    strings.TrimSpace(in.Specialite),
		VilleEcoleID:  in.VilleEcoleID,
		PeriodeID:     in.PeriodeID,
	}, nil
}
