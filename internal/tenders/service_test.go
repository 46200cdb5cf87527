package tenders

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

type memoryRepo struct {
	rows   map[int64]Tender
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[int64]Tender{}}
}

func (m *memoryRepo) List(_ context.Context, filters shared.ListFilters) ([]Tender, int, error) {
	var out []Tender
	for _, t := range m.rows {
		if filters.IsActive != nil && t.Actif != *filters.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Tender, error) {
	t, ok := m.rows[id]
	if !ok {
		return Tender{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) Create(_ context.Context, t Tender) (Tender, error) {
	for _, other := range m.rows {
		if other.Numero == t.Numero {
			return Tender{}, &core.DuplicateError{Field: "numero"}
		}
	}
	m.nextID++
	t.ID = m.nextID
	m.rows[t.ID] = t
	return t, nil
}

func (m *memoryRepo) Update(_ context.Context, t Tender) error {
	if _, ok := m.rows[t.ID]; !ok {
		return shared.ErrNotFound
	}
	for _, other := range m.rows {
		if other.ID != t.ID && other.Numero == t.Numero {
			return &core.DuplicateError{Field: "numero"}
		}
	}
	m.rows[t.ID] = t
	return nil
}

func (m *memoryRepo) SetPDF(_ context.Context, id int64, key string) error {
	t := m.rows[id]
	t.AOPDF = key
	m.rows[id] = t
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// rejectingStore refuses uploads once reject is set.
type rejectingStore struct {
	*attachments.MemoryStore
	reject bool
}

func (r *rejectingStore) Put(ctx context.Context, kind string, entityID int64, field string, body io.Reader, accept []string) (string, error) {
	if r.reject {
		return "", attachments.ErrUnsupportedType
	}
	return r.MemoryStore.Put(ctx, kind, entityID, field, body, accept)
}

type recordingNotifier struct {
	created []Tender
	err     error
}

func (n *recordingNotifier) TenderCreated(_ context.Context, t Tender) error {
	n.created = append(n.created, t)
	return n.err
}

func validInput() Input {
	return Input{Numero: "AO-01/2024", Objet: "Transport du personnel", DateOuverture: "2024-06-10"}
}

func TestCreateStoresPDFAndNotifies(t *testing.T) {
	repo := newMemoryRepo()
	files := attachments.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewService(repo, files, nil)
	svc.SetNotifier(notifier)

	created, err := svc.Create(context.Background(), validInput(), strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.True(t, created.Actif)
	require.True(t, files.Has(created.AOPDF))
	require.Len(t, notifier.created, 1)
	require.Equal(t, "AO-01/2024", notifier.created[0].Numero)
}

func TestCreateRequiresPDFAndValidFields(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput(), nil)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "ao_pdf")

	in := validInput()
	in.Numero = "AO-0123456789-2024"
	_, err = svc.Create(ctx, in, strings.NewReader("%PDF"))
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "numero")
}

func TestCreateSurvivesNotificationFailure(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	svc.SetNotifier(&recordingNotifier{err: errors.New("smtp down")})
	_, err := svc.Create(context.Background(), validInput(), strings.NewReader("%PDF"))
	require.NoError(t, err)
}

func TestDuplicateNumero(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput(), strings.NewReader("%PDF"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, validInput(), strings.NewReader("%PDF"))
	var dup *core.DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "numero", dup.Field)
}

func TestUpdateReplacesPDFAndPublishedHidesInactive(t *testing.T) {
	files := attachments.NewMemoryStore()
	svc := NewService(newMemoryRepo(), files, nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput(), strings.NewReader("%PDF"))
	require.NoError(t, err)

	in := validInput()
	inactive := false
	in.Actif = &inactive
	updated, err := svc.Update(ctx, created.ID, in, strings.NewReader("%PDF-2"))
	require.NoError(t, err)
	require.NotEqual(t, created.AOPDF, updated.AOPDF)
	require.False(t, files.Has(created.AOPDF))

	published, err := svc.Published(ctx)
	require.NoError(t, err)
	require.Empty(t, published)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.False(t, files.Has(updated.AOPDF))
}

func TestUpdateWithRejectedPDFKeepsTender(t *testing.T) {
	repo := newMemoryRepo()
	files := &rejectingStore{MemoryStore: attachments.NewMemoryStore()}
	svc := NewService(repo, files, nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput(), strings.NewReader("%PDF"))
	require.NoError(t, err)

	files.reject = true
	in := validInput()
	in.Objet = "Nettoyage des locaux"
	_, err = svc.Update(ctx, created.ID, in, strings.NewReader("plain text"))
	require.ErrorIs(t, err, core.ErrValidation)

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, stored)
	require.Equal(t, []string{created.AOPDF}, files.Keys())
}

func TestFailedUpdateDeletesNewPDF(t *testing.T) {
	files := attachments.NewMemoryStore()
	svc := NewService(newMemoryRepo(), files, nil)
	ctx := context.Background()
	first, err := svc.Create(ctx, validInput(), strings.NewReader("%PDF"))
	require.NoError(t, err)
	in := validInput()
	in.Numero = "AO-02/2024"
	second, err := svc.Create(ctx, in, strings.NewReader("%PDF"))
	require.NoError(t, err)
	before := files.Keys()

	_, err = svc.Update(ctx, second.ID, validInput(), strings.NewReader("%PDF-2"))
	var dup *core.DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, before, files.Keys())
	require.True(t, files.Has(first.AOPDF))
	require.True(t, files.Has(second.AOPDF))
}
