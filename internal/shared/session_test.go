package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", time.Hour, false), mr
}

func TestSessionRoundTripViaCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()
	rec := httptest.NewRecorder()
	sess, err := sm.Create(ctx, rec, Actor{ID: 7, Email: "treso@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, int64(7), loaded.Actor().ID)
}

func TestSessionBearerTokenAndExpiry(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Create(ctx, httptest.NewRecorder(), Actor{ID: 3})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.ID)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, int64(3), loaded.UserID)

	mr.FastForward(2 * time.Hour)
	loaded, err = sm.Load(ctx, req)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSessionDestroy(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()
	sess, err := sm.Create(ctx, httptest.NewRecorder(), Actor{ID: 3})
	require.NoError(t, err)
	require.NoError(t, sm.Destroy(ctx, httptest.NewRecorder(), sess))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.ID)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Nil(t, loaded)
}
