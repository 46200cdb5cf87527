package beneficiaries

import (
	"context"
	"fmt"

	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
)

type Service struct {
	repo        Repository
	companyName string
}

// NewService wires the repository. companyName identifies the company's
// own beneficiary record.
func NewService(repo Repository, companyName string) *Service {
	return &Service{repo: repo, companyName: companyName}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Beneficiary, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Beneficiary, error) {
	if id <= 0 {
		return Beneficiary{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor core.Actor, in Input) (Beneficiary, error) {
	in = normalize(in)
	if err := s.validate(in); err != nil {
		return Beneficiary{}, err
	}
	b := fromInput(Beneficiary{Actif: true}, in)
	b.CreatedBy = actor.IDPtr()
	return s.repo.Create(ctx, b)
}

func (s *Service) Update(ctx context.Context, actor core.Actor, id int64, in Input) (Beneficiary, error) {
	in = normalize(in)
	if err := s.validate(in); err != nil {
		return Beneficiary{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Beneficiary{}, err
	}
	b := fromInput(current, in)
	b.UpdatedBy = actor.IDPtr()
	if err := s.repo.Update(ctx, b); err != nil {
		return Beneficiary{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

// Lookup lists the beneficiaries selectable for a payment order type:
// a Transfert moves money between the company's own accounts, a Virement
// pays anybody else.
func (s *Service) Lookup(ctx context.Context, typeOV string) ([]Option, error) {
	switch typeOV {
	case "":
		return s.repo.Options(ctx, "", "")
	case TypeTransfert:
		if s.companyName == "" {
			return nil, fmt.Errorf("company name not configured: %w", core.ErrConfiguration)
		}
		return s.repo.Options(ctx, s.companyName, "")
	case TypeVirement:
		return s.repo.Options(ctx, "", s.companyName)
	default:
		return nil, core.NewValidationError("type_ov", "must be one of Virement Transfert")
	}
}

func fromInput(b Beneficiary, in Input) Beneficiary {
	b.RaisonSociale = in.RaisonSociale
	b.Adresse = in.Adresse
	b.Ville = in.Ville
	b.Telephone = in.Telephone
	b.RegistreCommerce = in.RegistreCommerce
	b.IdentifiantFiscale = in.IdentifiantFiscale
	b.CodeICE = in.CodeICE
	if in.Actif != nil {
		b.Actif = *in.Actif
	}
	return b
}
