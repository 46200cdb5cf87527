package accounts

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
)

type Service struct {
	repo   Repository
	files  attachments.Store
	logger *slog.Logger
}

func NewService(repo Repository, files attachments.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, files: files, logger: logger}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Account, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	if id <= 0 {
		return Account{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor core.Actor, in Input) (Account, error) {
	in = normalize(in)
	if err := validate(in); err != nil {
		return Account{}, err
	}
	a := fromInput(Account{Actif: true}, in)
	a.CreatedBy = actor.IDPtr()
	return s.repo.Create(ctx, a)
}

// Update rejects a RIB change once the account appears on a payment order.
func (s *Service) Update(ctx context.Context, actor core.Actor, id int64, in Input) (Account, error) {
	in = normalize(in)
	if err := validate(in); err != nil {
		return Account{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if current.TypeCompte == TypeBancaire && current.RIB != in.RIB {
		used, err := s.repo.UsedInOrders(ctx, id)
		if err != nil {
			return Account{}, fmt.Errorf("check account usage: %w", err)
		}
		if used {
			return Account{}, core.NewValidationError("rib", "this RIB is used by one or more payment orders and cannot be changed")
		}
	}
	a := fromInput(current, in)
	a.UpdatedBy = actor.IDPtr()
	if err := s.repo.Update(ctx, a); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the account and its RIB certificate.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	var pending attachments.Pending
	pending.Remove(current.AttestationRIBPDF)
	_ = pending.Flush(ctx, s.files, s.logger)
	return nil
}

// AttachRIB stores a new RIB certificate and drops the superseded one.
func (s *Service) AttachRIB(ctx context.Context, actor core.Actor, id int64, r io.Reader) (Account, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	key, err := s.files.Put(ctx, attachments.KindAccounts, id, "attestation_rib_pdf", r, attachments.AcceptPDF)
	if err != nil {
		return Account{}, err
	}
	if err := s.repo.SetAttestation(ctx, id, key, actor.IDPtr()); err != nil {
		_ = s.files.Delete(ctx, key)
		return Account{}, err
	}
	if err := attachments.Replace(ctx, s.files, current.AttestationRIBPDF, key); err != nil {
		s.logger.Warn("delete superseded RIB certificate", slog.Int64("account_id", id), slog.Any("error", err))
	}
	current.AttestationRIBPDF = key
	return current, nil
}

// Lookup lists the active accounts of a beneficiary.
func (s *Service) Lookup(ctx context.Context, beneficiaryID int64) ([]Option, error) {
	if beneficiaryID <= 0 {
		return nil, core.NewValidationError("beneficiaire_id", "is required")
	}
	rows, err := s.repo.Options(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(rows))
	for _, a := range rows {
		out = append(out, Option{ID: a.ID, Label: a.Label()})
	}
	return out, nil
}

func fromInput(a Account, in Input) Account {
	a.BeneficiaireID = in.BeneficiaireID
	a.TypeCompte = in.TypeCompte
	a.Banque = in.Banque
	a.RIB = in.RIB
	a.NomCaisse = in.NomCaisse
	a.EmplacementCaisse = in.EmplacementCaisse
	a.DetenteurCaisse = in.DetenteurCaisse
	a.Nantissement = in.Nantissement
	if in.Actif != nil {
		a.Actif = *in.Actif
	}
	return a
}
