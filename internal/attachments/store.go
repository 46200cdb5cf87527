// Package attachments stores uploaded documents on the local filesystem
// and enforces one live file per record field.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/supratours/virements/internal/shared"
)

var (
	// ErrNotFound is returned when a stored key does not exist.
	ErrNotFound = fmt.Errorf("attachment %w", shared.ErrNotFound)
	// ErrUnsupportedType is returned when the uploaded content is not an
	// accepted document type.
	ErrUnsupportedType = fmt.Errorf("unsupported attachment type: %w", shared.ErrValidation)
	// ErrInvalidKey is returned for keys escaping the storage root.
	ErrInvalidKey = fmt.Errorf("invalid attachment key: %w", shared.ErrValidation)
)

// Kinds group stored files by owning entity.
const (
	KindAccounts    = "attestations_rib"
	KindContracts   = "contrats"
	KindInvoices    = "factures"
	KindOrders      = "virements"
	KindTenders     = "aos"
	KindOmra        = "omra"
	KindInternships = "stages"
	KindEntries     = "operations_diverses"
)

// Accept lists accepted MIME types per upload.
var (
	AcceptPDF    = []string{"application/pdf"}
	AcceptImages = []string{"image/jpeg", "image/png", "image/webp"}
	AcceptCV     = []string{"application/pdf", "application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
)

// Store persists attachment bytes under opaque keys.
type Store interface {
	Put(ctx context.Context, kind string, entityID int64, field string, r io.Reader, accept []string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps files under a root directory. Keys have the form
// <kind>/<entity-id>__<field>__<uuid><ext>.
type LocalStore struct {
	root string
}

// NewLocalStore ensures root exists.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("attachments: upload dir required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("attachments: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Put sniffs the content, rejects types outside accept and writes the file.
func (s *LocalStore) Put(ctx context.Context, kind string, entityID int64, field string, r io.Reader, accept []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("attachments: read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("empty upload: %w", ErrUnsupportedType)
	}
	mt := mimetype.Detect(head)
	if len(accept) > 0 && !mimetype.EqualsAny(mt.String(), accept...) {
		return "", fmt.Errorf("%s: %w", mt.String(), ErrUnsupportedType)
	}

	key := BuildKey(kind, entityID, field, mt.Extension())
	full, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("attachments: create dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("attachments: create file: %w", err)
	}
	if _, err := f.Write(head); err == nil {
		_, err = io.Copy(f, r)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("attachments: write file: %w", err)
	}
	return key, nil
}

// Open returns a reader for key.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes key. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// BuildKey composes the storage key for a new upload.
func BuildKey(kind string, entityID int64, field, ext string) string {
	return kind + "/" + strconv.FormatInt(entityID, 10) + "__" + field + "__" + uuid.NewString() + ext
}

// Replace deletes old when new supersedes it. Empty values and unchanged
// keys are ignored.
func Replace(ctx context.Context, s Store, old, new string) error {
	if old == "" || old == new {
		return nil
	}
	return s.Delete(ctx, old)
}

// Pending collects files to delete once the owning transaction committed.
type Pending struct {
	keys []string
}

// Replace queues old when new supersedes it.
func (p *Pending) Replace(old, new string) {
	if old != "" && old != new {
		p.keys = append(p.keys, old)
	}
}

// Remove queues every non-empty key.
func (p *Pending) Remove(keys ...string) {
	for _, k := range keys {
		if k != "" {
			p.keys = append(p.keys, k)
		}
	}
}

// Keys returns the queued keys.
func (p *Pending) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Flush deletes queued files. Failures are logged and joined; the
// database state is already committed at this point.
func (p *Pending) Flush(ctx context.Context, s Store, logger *slog.Logger) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, k := range p.keys {
		if err := s.Delete(ctx, k); err != nil {
			if logger != nil {
				logger.Warn("attachment cleanup failed", slog.String("key", k), slog.Any("error", err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	p.keys = nil
	return errors.Join(errs...)
}
