package tenders

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

// Repository defines tender persistence.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Tender, int, error)
	Get(ctx context.Context, id int64) (Tender, error)
	Create(ctx context.Context, t Tender) (Tender, error)
	Update(ctx context.Context, t Tender) error
	SetPDF(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

var uniqueFields = map[string]string{
	"appels_offres_numero_key": "numero",
}

const selectColumns = `SELECT id, numero, objet, date_ouverture, ao_pdf, actif, created_at FROM appels_offres`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanTender(row pgx.Row) (Tender, error) {
	var t Tender
	err := row.Scan(&t.ID, &t.Numero, &t.Objet, &t.DateOuverture, &t.AOPDF, &t.Actif, &t.CreatedAt)
	return t, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Tender, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (numero ILIKE $` + n + ` OR objet ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND actif = $` + strconv.Itoa(len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appels_offres`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := selectColumns + where + ` ORDER BY date_ouverture DESC, id DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tender, error) { return scanTender(row) })
	return out, total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Tender, error) {
	t, err := scanTender(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return Tender{}, db.TranslateError(err, nil)
	}
	return t, nil
}

func (r *repository) Create(ctx context.Context, t Tender) (Tender, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO appels_offres (numero, objet, date_ouverture, actif)
VALUES ($1, $2, $3, $4) RETURNING id, created_at`, t.Numero, t.Objet, t.DateOuverture, t.Actif).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Tender{}, db.TranslateError(err, uniqueFields)
	}
	return t, nil
}

func (r *repository) Update(ctx context.Context, t Tender) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appels_offres SET numero = $2, objet = $3, date_ouverture = $4, actif = $5, ao_pdf = $6 WHERE id = $1`,
		t.ID, t.Numero, t.Objet, t.DateOuverture, t.Actif, t.AOPDF)
	if err != nil {
		return db.TranslateError(err, uniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetPDF(ctx context.Context, id int64, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE appels_offres SET ao_pdf = $2 WHERE id = $1`, id, key)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appels_offres WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
