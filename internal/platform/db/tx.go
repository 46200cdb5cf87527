package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/shared"
)

// UniqueViolation is the SQLSTATE raised on unique constraint conflicts.
const UniqueViolation = "23505"

// ForeignKeyViolation is the SQLSTATE raised when a referenced row is missing or still referenced.
const ForeignKeyViolation = "23503"

// CheckViolation is the SQLSTATE raised when a CHECK constraint rejects a row.
const CheckViolation = "23514"

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return WithTxIso(ctx, pool, pgx.RepeatableRead, fn)
}

// WithTxIso is WithTx with an explicit isolation level. Callers that take
// row locks with SELECT ... FOR UPDATE use ReadCommitted so the second
// writer waits instead of failing with a serialization error.
func WithTxIso(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// ConstraintViolation reports the constraint name when err is a postgres
// error carrying the given SQLSTATE code.
func ConstraintViolation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// TranslateError maps driver errors onto the shared sentinels. constraints
// maps unique constraint names to the field reported to the client.
func TranslateError(err error, constraints map[string]string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if name, ok := ConstraintViolation(err, UniqueViolation); ok {
		field, known := constraints[name]
		if !known {
			field = name
		}
		return &shared.DuplicateError{Field: field}
	}
	if name, ok := ConstraintViolation(err, ForeignKeyViolation); ok {
		return shared.Invalid("record is referenced by or references a missing row (%s)", name)
	}
	if name, ok := ConstraintViolation(err, CheckViolation); ok {
		return shared.Invalid("value rejected by constraint %s", name)
	}
	return err
}
