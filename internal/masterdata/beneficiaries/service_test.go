package beneficiaries

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

type memoryRepo struct {
	rows   map[int64]Beneficiary
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Beneficiary)}
}

func (r *memoryRepo) List(_ context.Context, filters shared.ListFilters) ([]Beneficiary, int, error) {
	var out []Beneficiary
	for _, b := range r.rows {
		if filters.Search != "" && !strings.Contains(strings.ToLower(b.RaisonSociale), strings.ToLower(filters.Search)) {
			continue
		}
		if filters.IsActive != nil && b.Actif != *filters.IsActive {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RaisonSociale < out[j].RaisonSociale })
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Beneficiary, error) {
	b, ok := r.rows[id]
	if !ok {
		return Beneficiary{}, shared.ErrNotFound
	}
	return b, nil
}

func (r *memoryRepo) conflict(b Beneficiary) error {
	for _, other := range r.rows {
		if other.ID == b.ID {
			continue
		}
		switch {
		case other.RaisonSociale == b.RaisonSociale:
			return &core.DuplicateError{Field: "raison_sociale"}
		case other.CodeICE == b.CodeICE:
			return &core.DuplicateError{Field: "code_ice"}
		case other.RegistreCommerce == b.RegistreCommerce:
			return &core.DuplicateError{Field: "registre_commerce"}
		case other.IdentifiantFiscale == b.IdentifiantFiscale:
			return &core.DuplicateError{Field: "identifiant_fiscale"}
		case b.Telephone != "" && other.Telephone == b.Telephone:
			return &core.DuplicateError{Field: "telephone"}
		}
	}
	return nil
}

func (r *memoryRepo) Create(_ context.Context, b Beneficiary) (Beneficiary, error) {
	if err := r.conflict(b); err != nil {
		return Beneficiary{}, err
	}
	r.nextID++
	b.ID = r.nextID
	r.rows[b.ID] = b
	return b, nil
}

func (r *memoryRepo) Update(_ context.Context, b Beneficiary) error {
	if _, ok := r.rows[b.ID]; !ok {
		return shared.ErrNotFound
	}
	if err := r.conflict(b); err != nil {
		return err
	}
	r.rows[b.ID] = b
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryRepo) Options(_ context.Context, onlyName, exceptName string) ([]Option, error) {
	var out []Option
	for _, b := range r.rows {
		if !b.Actif {
			continue
		}
		if onlyName != "" && b.RaisonSociale != onlyName {
			continue
		}
		if exceptName != "" && b.RaisonSociale == exceptName {
			continue
		}
		out = append(out, Option{ID: b.ID, RaisonSociale: b.RaisonSociale})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RaisonSociale < out[j].RaisonSociale })
	return out, nil
}

func validInput(name, ice string) Input {
	return Input{
		RaisonSociale:      name,
		Telephone:          "0522000000",
		RegistreCommerce:   "RC-" + ice[:4],
		IdentifiantFiscale: "IF-" + ice[:4],
		CodeICE:            ice,
	}
}

func TestCreateValidatesFields(t *testing.T) {
	svc := NewService(newMemoryRepo(), "SUPRATOURS TRAVEL")
	in := validInput("Atlas Hotels", "001234567000089")
	in.Telephone = "05220"
	in.CodeICE = "123"

	_, err := svc.Create(context.Background(), core.Actor{ID: 1}, in)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "telephone")
	require.Contains(t, verr.Fields, "code_ice")
}

func TestCreateStampsActorAndRejectsDuplicates(t *testing.T) {
	svc := NewService(newMemoryRepo(), "SUPRATOURS TRAVEL")
	ctx := context.Background()

	created, err := svc.Create(ctx, core.Actor{ID: 4}, validInput("Atlas Hotels", "001234567000089"))
	require.NoError(t, err)
	require.True(t, created.Actif)
	require.Equal(t, int64(4), *created.CreatedBy)

	dup := validInput("Autre", "001234567000089")
	dup.Telephone = ""
	_, err = svc.Create(ctx, core.Actor{ID: 4}, dup)
	require.ErrorIs(t, err, core.ErrDuplicate)
}

func TestUpdateKeepsActiveFlagWhenOmitted(t *testing.T) {
	svc := NewService(newMemoryRepo(), "SUPRATOURS TRAVEL")
	ctx := context.Background()
	created, err := svc.Create(ctx, core.Actor{ID: 1}, validInput("Atlas Hotels", "001234567000089"))
	require.NoError(t, err)

	inactive := false
	in := validInput("Atlas Hotels SA", "001234567000089")
	in.Actif = &inactive
	updated, err := svc.Update(ctx, core.Actor{ID: 2}, created.ID, in)
	require.NoError(t, err)
	require.False(t, updated.Actif)
	require.Equal(t, int64(2), *updated.UpdatedBy)

	in.Actif = nil
	updated, err = svc.Update(ctx, core.Actor{ID: 2}, created.ID, in)
	require.NoError(t, err)
	require.False(t, updated.Actif)
}

func TestLookupByOrderType(t *testing.T) {
	svc := NewService(newMemoryRepo(), "SUPRATOURS TRAVEL")
	ctx := context.Background()
	_, err := svc.Create(ctx, core.Actor{}, validInput("SUPRATOURS TRAVEL", "000000000000001"))
	require.NoError(t, err)
	other := validInput("Atlas Hotels", "001234567000089")
	other.Telephone = "0611111111"
	_, err = svc.Create(ctx, core.Actor{}, other)
	require.NoError(t, err)

	opts, err := svc.Lookup(ctx, TypeVirement)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	require.Equal(t, "Atlas Hotels", opts[0].RaisonSociale)

	opts, err = svc.Lookup(ctx, TypeTransfert)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	require.Equal(t, "SUPRATOURS TRAVEL", opts[0].RaisonSociale)

	opts, err = svc.Lookup(ctx, "")
	require.NoError(t, err)
	require.Len(t, opts, 2)

	_, err = svc.Lookup(ctx, "Cheque")
	require.ErrorIs(t, err, core.ErrValidation)

	_, err = NewService(newMemoryRepo(), "").Lookup(ctx, TypeTransfert)
	require.ErrorIs(t, err, core.ErrConfiguration)
}
