package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestClientRenderHTMLPostsA4Form(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("files")
		require.NoError(t, err)
		require.Equal(t, "index.html", header.Filename)
		require.Equal(t, "8.27", r.FormValue("paperWidth"))
		require.Equal(t, "11.7", r.FormValue("paperHeight"))
		require.Equal(t, "true", r.FormValue("printBackground"))
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL+"/").RenderHTML(context.Background(), "<html></html>")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7", string(out))
}

func TestClientRenderHTMLReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "<html></html>")
	require.ErrorContains(t, err, "503")
	require.ErrorContains(t, err, "chromium crashed")
}

func TestPingHandler(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
	}))
	defer up.Close()

	for _, tc := range []struct {
		url  string
		want int
	}{
		{up.URL, http.StatusOK},
		{"http://127.0.0.1:1", http.StatusServiceUnavailable},
	} {
		r := chi.NewRouter()
		r.Route("/api/report", NewHandler(NewClient(tc.url), nil).MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/ping", nil))
		require.Equal(t, tc.want, rec.Code, tc.url)
	}
}
