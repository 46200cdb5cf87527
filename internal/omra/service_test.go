package omra

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/rbac"
	core "github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

type memoryRepo struct {
	rows   map[int64]Event
	nextID int64
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{rows: map[int64]Event{}} }

func (m *memoryRepo) List(_ context.Context, activeOnly bool) ([]Event, error) {
	var out []Event
	for _, e := range m.rows {
		if activeOnly && !e.Actif {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Event, error) {
	e, ok := m.rows[id]
	if !ok {
		return Event{}, shared.ErrNotFound
	}
	return e, nil
}

func (m *memoryRepo) Create(_ context.Context, e Event) (Event, error) {
	for _, other := range m.rows {
		if other.Objet == e.Objet {
			return Event{}, &core.DuplicateError{Field: "objet"}
		}
	}
	m.nextID++
	e.ID = m.nextID
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryRepo) Update(_ context.Context, e Event) error {
	m.rows[e.ID] = e
	return nil
}

func (m *memoryRepo) SetImage(_ context.Context, id int64, key string) error {
	e := m.rows[id]
	e.Image = key
	m.rows[id] = e
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
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

type countingNotifier struct{ n int }

func (c *countingNotifier) OmraCreated(context.Context, Event) error {
	c.n++
	return nil
}

func TestCreateRequiresImageAndShortObjet(t *testing.T) {
	svc := NewService(newMemoryRepo(), attachments.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Objet: "Omra Ramadan", DateDebut: "2025-03-01"}, nil)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "image")

	_, err = svc.Create(ctx, Input{Objet: "Omra Ramadan 2025 VIP", DateDebut: "2025-03-01"}, strings.NewReader("img"))
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "objet")
}

func TestUpdateKeepsImageWhenNoneUploaded(t *testing.T) {
	files := attachments.NewMemoryStore()
	svc := NewService(newMemoryRepo(), files, nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, Input{Objet: "Omra Mawlid", DateDebut: "2024-09-10"}, strings.NewReader("img"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, e.ID, Input{Objet: "Omra Mawlid", DateDebut: "2024-09-12"}, nil)
	require.NoError(t, err)
	require.Equal(t, e.Image, updated.Image)
	require.Equal(t, 12, updated.DateDebut.Day())

	require.NoError(t, svc.Delete(ctx, e.ID))
	require.False(t, files.Has(e.Image))
}

func TestUpdateWithRejectedImageKeepsEvent(t *testing.T) {
	repo := newMemoryRepo()
	files := &rejectingStore{MemoryStore: attachments.NewMemoryStore()}
	svc := NewService(repo, files, nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, Input{Objet: "Omra Mawlid", DateDebut: "2024-09-10"}, strings.NewReader("img"))
	require.NoError(t, err)

	files.reject = true
	_, err = svc.Update(ctx, e.ID, Input{Objet: "Omra Chaabane", DateDebut: "2025-02-01"}, strings.NewReader("not an image"))
	require.ErrorIs(t, err, core.ErrValidation)

	stored, err := repo.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "Omra Mawlid", stored.Objet)
	require.Equal(t, e.Image, stored.Image)
	require.Equal(t, []string{e.Image}, files.Keys())
}

func TestPublicListShowsActiveEventsOnly(t *testing.T) {
	repo := newMemoryRepo()
	files := attachments.NewMemoryStore()
	svc := NewService(repo, files, nil)
	notifier := &countingNotifier{}
	svc.SetNotifier(notifier)
	h := NewHandler(nil, svc, files, rbac.Middleware{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("data", `{"objet":"Omra Chaabane","date_debut":"2025-02-01"}`))
	part, err := mw.CreateFormFile("image", "affiche.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, 1, notifier.n)

	inactive := false
	_, err = svc.Create(context.Background(), Input{Objet: "Omra archivee", DateDebut: "2023-01-01", Actif: &inactive}, strings.NewReader("img"))
	require.NoError(t, err)

	r := chi.NewRouter()
	h.MountPublic(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var events []Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.Equal(t, "Omra Chaabane", events[0].Objet)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/2/image", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
