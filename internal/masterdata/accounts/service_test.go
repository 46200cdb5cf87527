package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

type memoryRepo struct {
	rows     map[int64]Account
	usedByOV map[int64]bool
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Account), usedByOV: make(map[int64]bool)}
}

func (r *memoryRepo) List(_ context.Context, filters shared.ListFilters) ([]Account, int, error) {
	var out []Account
	for _, a := range r.rows {
		if filters.BeneficiaryID != nil && a.BeneficiaireID != *filters.BeneficiaryID {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Account, error) {
	a, ok := r.rows[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return a, nil
}

// ribTaken mirrors the partial unique index: pledged accounts may share a RIB.
func (r *memoryRepo) ribTaken(a Account) bool {
	if a.RIB == "" || a.Nantissement {
		return false
	}
	for _, other := range r.rows {
		if other.ID != a.ID && !other.Nantissement && other.RIB == a.RIB {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Create(_ context.Context, a Account) (Account, error) {
	if r.ribTaken(a) {
		return Account{}, &core.DuplicateError{Field: "rib"}
	}
	r.nextID++
	a.ID = r.nextID
	r.rows[a.ID] = a
	return a, nil
}

func (r *memoryRepo) Update(_ context.Context, a Account) error {
	if r.ribTaken(a) {
		return &core.DuplicateError{Field: "rib"}
	}
	r.rows[a.ID] = a
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if r.usedByOV[id] {
		return shared.ErrInUse
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryRepo) UsedInOrders(_ context.Context, id int64) (bool, error) {
	return r.usedByOV[id], nil
}

func (r *memoryRepo) SetAttestation(_ context.Context, id int64, key string, updatedBy *int64) error {
	a, ok := r.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.AttestationRIBPDF = key
	a.UpdatedBy = updatedBy
	r.rows[id] = a
	return nil
}

func (r *memoryRepo) Options(_ context.Context, beneficiaryID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.rows {
		if a.Actif && a.BeneficiaireID == beneficiaryID {
			out = append(out, a)
		}
	}
	return out, nil
}

const rib = "011780000012345678901234"

func bankInput() Input {
	return Input{BeneficiaireID: 1, TypeCompte: TypeBancaire, Banque: "BMCE", RIB: rib}
}

func TestTypeDependentRequirements(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, core.Actor{}, Input{BeneficiaireID: 1, TypeCompte: TypeBancaire})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "banque")
	require.Contains(t, verr.Fields, "rib")

	_, err = svc.Create(ctx, core.Actor{}, Input{BeneficiaireID: 1, TypeCompte: TypeBancaire, Banque: "BMCE", RIB: "1234"})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "rib")

	_, err = svc.Create(ctx, core.Actor{}, Input{BeneficiaireID: 1, TypeCompte: TypeCaisse, NomCaisse: "Caisse siège"})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "emplacement_caisse")

	cash, err := svc.Create(ctx, core.Actor{}, Input{BeneficiaireID: 1, TypeCompte: TypeCaisse, NomCaisse: "Caisse siège", EmplacementCaisse: "Casablanca"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cash.Label(), "Caisse: "))
}

func TestRIBUniqueUnlessPledged(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, core.Actor{}, bankInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, core.Actor{}, bankInput())
	require.ErrorIs(t, err, core.ErrDuplicate)

	pledged := bankInput()
	pledged.Nantissement = true
	_, err = svc.Create(ctx, core.Actor{}, pledged)
	require.NoError(t, err)
}

func TestRIBLockedOnceUsedByOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, attachments.NewMemoryStore(), nil)
	ctx := context.Background()

	acc, err := svc.Create(ctx, core.Actor{}, bankInput())
	require.NoError(t, err)
	repo.usedByOV[acc.ID] = true

	in := bankInput()
	in.RIB = "011780000012345678909999"
	_, err = svc.Update(ctx, core.Actor{ID: 2}, acc.ID, in)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "rib")

	in = bankInput()
	in.Banque = "BMCE Bank"
	updated, err := svc.Update(ctx, core.Actor{ID: 2}, acc.ID, in)
	require.NoError(t, err)
	require.Equal(t, "BMCE Bank", updated.Banque)
}

func TestAttachRIBReplacesPreviousFile(t *testing.T) {
	files := attachments.NewMemoryStore()
	svc := NewService(newMemoryRepo(), files, nil)
	ctx := context.Background()
	acc, err := svc.Create(ctx, core.Actor{}, bankInput())
	require.NoError(t, err)

	first, err := svc.AttachRIB(ctx, core.Actor{ID: 1}, acc.ID, strings.NewReader("%PDF-1"))
	require.NoError(t, err)
	second, err := svc.AttachRIB(ctx, core.Actor{ID: 1}, acc.ID, strings.NewReader("%PDF-2"))
	require.NoError(t, err)

	require.False(t, files.Has(first.AttestationRIBPDF))
	require.True(t, files.Has(second.AttestationRIBPDF))

	require.NoError(t, svc.Delete(ctx, acc.ID))
	require.False(t, files.Has(second.AttestationRIBPDF))
}

func TestLookupRequiresBeneficiary(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	_, err := svc.Lookup(context.Background(), 0)
	require.ErrorIs(t, err, core.ErrValidation)
}
