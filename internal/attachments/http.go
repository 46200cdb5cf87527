package attachments

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

// Serve streams the file stored under key. An empty key answers 404.
func Serve(w http.ResponseWriter, r *http.Request, s Store, key string) {
	if key == "" {
		http.NotFound(w, r)
		return
	}
	rc, err := s.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	ctype := "application/octet-stream"
	if mt := mimetype.Lookup(mimeFromExt(path.Ext(key))); mt != nil {
		ctype = mt.String()
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func mimeFromExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return ""
}
