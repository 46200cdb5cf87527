package contracts

import (
	"context"
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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Contract, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Contract, error) {
	if id <= 0 {
		return Contract{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor core.Actor, in Input) (Contract, error) {
	c, err := s.build(Contract{Actif: true}, in)
	if err != nil {
		return Contract{}, err
	}
	c.CreatedBy = actor.IDPtr()
	return s.repo.Create(ctx, c)
}

// Update does not touch existing invoices: their amounts are recomputed
// the next time each invoice is saved.
func (s *Service) Update(ctx context.Context, actor core.Actor, id int64, in Input) (Contract, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	c, err := s.build(current, in)
	if err != nil {
		return Contract{}, err
	}
	c.UpdatedBy = actor.IDPtr()
	if err := s.repo.Update(ctx, c); err != nil {
		return Contract{}, err
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
	pending.Remove(current.ContratPDF)
	_ = pending.Flush(ctx, s.files, s.logger)
	return nil
}

// AttachPDF stores the signed contract and drops the superseded file.
func (s *Service) AttachPDF(ctx context.Context, actor core.Actor, id int64, r io.Reader) (Contract, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	key, err := s.files.Put(ctx, attachments.KindContracts, id, "contrat_pdf", r, attachments.AcceptPDF)
	if err != nil {
		return Contract{}, err
	}
	if err := s.repo.SetPDF(ctx, id, key, actor.IDPtr()); err != nil {
		_ = s.files.Delete(ctx, key)
		return Contract{}, err
	}
	if err := attachments.Replace(ctx, s.files, current.ContratPDF, key); err != nil {
		s.logger.Warn("delete superseded contract pdf", slog.Int64("contract_id", id), slog.Any("error", err))
	}
	current.ContratPDF = key
	return current, nil
}

// Lookup lists the active contracts of a beneficiary.
func (s *Service) Lookup(ctx context.Context, beneficiaryID int64) ([]Option, error) {
	if beneficiaryID <= 0 {
		return nil, core.NewValidationError("beneficiaire_id", "is required")
	}
	rows, err := s.repo.Options(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(rows))
	for _, c := range rows {
		out = append(out, Option{ID: c.ID, NumeroContrat: c.NumeroContrat, Objet: c.Objet})
	}
	return out, nil
}

// UnsettledPurchaseOrders returns purchase-order contracts whose HT amount
// differs from the HT total invoiced against them.
func (s *Service) UnsettledPurchaseOrders(ctx context.Context) ([]Balance, error) {
	rows, err := s.repo.Balances(ctx, TypeCommande)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, b := range rows {
		if !b.Reste.IsZero() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Service) build(c Contract, in Input) (Contract, error) {
	in = normalize(in)
	start, end, term, err := validate(in)
	if err != nil {
		return Contract{}, err
	}
	c.BeneficiaireID = in.BeneficiaireID
	c.MOE = in.MOE
	c.TypeContrat = in.TypeContrat
	c.NumeroContrat = in.NumeroContrat
	c.Objet = in.Objet
	c.DateDebut = start
	c.DateFin = end
	c.ModePaiement = term
	c.MontantHT = in.MontantHT
	c.TauxTVA = in.TauxTVA
	c.TauxRASTVA = in.TauxRASTVA
	c.TauxRASIS = in.TauxRASIS
	c.TauxRG = in.TauxRG
	if in.Actif != nil {
		c.Actif = *in.Actif
	}
	return c, nil
}
