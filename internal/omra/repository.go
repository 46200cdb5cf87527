package omra

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

type Repository interface {
	// List returns every event, or only active ones when activeOnly is set,
	// most recent first.
	List(ctx context.Context, activeOnly bool) ([]Event, error)
	Get(ctx context.Context, id int64) (Event, error)
	Create(ctx context.Context, e Event) (Event, error)
	Update(ctx context.Context, e Event) error
	SetImage(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

var uniqueFields = map[string]string{
	"omra_evenements_objet_key": "objet",
}

const selectColumns = `SELECT id, objet, date_debut, image, actif, created_at FROM omra_evenements`

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Objet, &e.DateDebut, &e.Image, &e.Actif, &e.CreatedAt)
	return e, err
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Event, error) {
	query := selectColumns
	if activeOnly {
		query += ` WHERE actif`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY date_debut DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) { return scanEvent(row) })
}

func (r *repository) Get(ctx context.Context, id int64) (Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return Event{}, db.TranslateError(err, nil)
	}
	return e, nil
}

func (r *repository) Create(ctx context.Context, e Event) (Event, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO omra_evenements (objet, date_debut, actif) VALUES ($1, $2, $3) RETURNING id, created_at`,
		e.Objet, e.DateDebut, e.Actif).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Event{}, db.TranslateError(err, uniqueFields)
	}
	return e, nil
}

func (r *repository) Update(ctx context.Context, e Event) error {
	tag, err := r.pool.Exec(ctx, `UPDATE omra_evenements SET objet = $2, date_debut = $3, actif = $4, image = $5 WHERE id = $1`,
		e.ID, e.Objet, e.DateDebut, e.Actif, e.Image)
	if err != nil {
		return db.TranslateError(err, uniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetImage(ctx context.Context, id int64, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE omra_evenements SET image = $2 WHERE id = $1`, id, key)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM omra_evenements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
