package contracts

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

type memoryRepo struct {
	rows     map[int64]Contract
	invoiced map[int64]decimal.Decimal
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Contract), invoiced: make(map[int64]decimal.Decimal)}
}

func (r *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]Contract, int, error) {
	var out []Contract
	for _, c := range r.rows {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Contract, error) {
	c, ok := r.rows[id]
	if !ok {
		return Contract{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) Create(_ context.Context, c Contract) (Contract, error) {
	for _, other := range r.rows {
		if other.NumeroContrat == c.NumeroContrat {
			return Contract{}, &core.DuplicateError{Field: "numero_contrat"}
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.rows[c.ID] = c
	return c, nil
}

func (r *memoryRepo) Update(_ context.Context, c Contract) error {
	r.rows[c.ID] = c
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(r.rows, id)
	return nil
}

func (r *memoryRepo) SetPDF(_ context.Context, id int64, key string, updatedBy *int64) error {
	c, ok := r.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.ContratPDF = key
	c.UpdatedBy = updatedBy
	r.rows[id] = c
	return nil
}

func (r *memoryRepo) Options(_ context.Context, beneficiaryID int64) ([]Contract, error) {
	var out []Contract
	for _, c := range r.rows {
		if c.Actif && c.BeneficiaireID == beneficiaryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) Balances(_ context.Context, typeContrat string) ([]Balance, error) {
	var out []Balance
	for _, c := range r.rows {
		if !c.Actif || c.TypeContrat != typeContrat {
			continue
		}
		invoiced := r.invoiced[c.ID]
		out = append(out, Balance{Contract: c, MontantFacture: invoiced, Reste: c.MontantHT.Sub(invoiced)})
	}
	return out, nil
}

func validInput() Input {
	return Input{
		BeneficiaireID: 1,
		NumeroContrat:  "M-2024-01",
		Objet:          "Nettoyage des locaux",
		DateDebut:      "2024-01-01",
		DateFin:        "2024-12-31",
		MontantHT:      decimal.NewFromInt(120000),
		TauxTVA:        decimal.NewFromInt(20),
		TauxRASTVA:     decimal.NewFromInt(75),
		TauxRG:         decimal.NewFromInt(7),
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	actorID := int64(4)

	c, err := svc.Create(context.Background(), core.Actor{ID: actorID}, validInput())
	require.NoError(t, err)
	require.Equal(t, "fm", c.MOE)
	require.Equal(t, TypeMarche, c.TypeContrat)
	require.Equal(t, DefaultPaymentTerm, c.ModePaiement)
	require.True(t, c.Actif)
	require.Equal(t, actorID, *c.CreatedBy)
	require.Equal(t, 2024, c.DateFin.Year())
}

func TestRateCeilings(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	in := validInput()
	in.TauxTVA = decimal.NewFromInt(30)
	in.TauxRASIS = decimal.NewFromInt(41)
	in.TauxRG = decimal.NewFromInt(-1)

	_, err := svc.Create(context.Background(), core.Actor{}, in)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "taux_tva")
	require.Contains(t, verr.Fields, "taux_ras_is")
	require.Contains(t, verr.Fields, "taux_rg")
	require.NotContains(t, verr.Fields, "taux_ras_tva")
}

func TestDateRangeAndTerm(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	in := validInput()
	in.DateDebut = "2025-01-01"
	in.ModePaiement = "45JX"

	_, err := svc.Create(context.Background(), core.Actor{}, in)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "date_debut")
	require.Contains(t, verr.Fields, "mode_paiement")
}

func TestDuplicateNumber(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	_, err := svc.Create(context.Background(), core.Actor{}, validInput())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), core.Actor{}, validInput())
	require.ErrorIs(t, err, core.ErrDuplicate)
}

func TestAttachPDFReplacesPrevious(t *testing.T) {
	files := attachments.NewMemoryStore()
	svc := NewService(newMemoryRepo(), files, nil)
	ctx := context.Background()
	c, err := svc.Create(ctx, core.Actor{}, validInput())
	require.NoError(t, err)

	first, err := svc.AttachPDF(ctx, core.Actor{}, c.ID, strings.NewReader("%PDF-1.4 first"))
	require.NoError(t, err)
	second, err := svc.AttachPDF(ctx, core.Actor{}, c.ID, strings.NewReader("%PDF-1.4 second"))
	require.NoError(t, err)

	require.NotEqual(t, first.ContratPDF, second.ContratPDF)
	require.False(t, files.Has(first.ContratPDF))
	require.True(t, files.Has(second.ContratPDF))
	require.True(t, strings.HasPrefix(second.ContratPDF, attachments.KindContracts+"/"))
}

func TestUnsettledPurchaseOrders(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, attachments.NewMemoryStore(), nil)
	ctx := context.Background()

	open := validInput()
	open.TypeContrat = TypeCommande
	open.NumeroContrat = "BC-1"
	a, err := svc.Create(ctx, core.Actor{}, open)
	require.NoError(t, err)

	settled := open
	settled.NumeroContrat = "BC-2"
	b, err := svc.Create(ctx, core.Actor{}, settled)
	require.NoError(t, err)

	_, err = svc.Create(ctx, core.Actor{}, validInput())
	require.NoError(t, err)

	repo.invoiced[a.ID] = decimal.NewFromInt(20000)
	repo.invoiced[b.ID] = decimal.NewFromInt(120000)

	rows, err := svc.UnsettledPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, a.ID, rows[0].ID)
	require.True(t, rows[0].Reste.Equal(decimal.NewFromInt(100000)))
}

func TestLookupRequiresBeneficiary(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	_, err := svc.Lookup(context.Background(), 0)
	require.ErrorIs(t, err, core.ErrValidation)
}
