package internships

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

type Repository interface {
	Cities(ctx context.Context, activeOnly bool) ([]City, error)
	CreateCity(ctx context.Context, c City) (City, error)
	Periods(ctx context.Context, activeOnly bool) ([]Period, error)
	CreatePeriod(ctx context.Context, p Period) (Period, error)

	List(ctx context.Context, filters Filters) ([]Application, int, error)
	Get(ctx context.Context, id int64) (Application, error)
	Create(ctx context.Context, a Application) (int64, error)
	SetFiles(ctx context.Context, id int64, cv, lettre string) error
	Review(ctx context.Context, id int64, in ReviewInput) error
	Delete(ctx context.Context, id int64) error
}

var uniqueFields = map[string]string{
	"candidatures_stage_cin_key": "cin",
	"villes_ville_key":           "ville",
	"periodes_periode_key":       "periode",
}

const applicationColumns = `SELECT c.id, c.civilite, c.nom, c.prenom, c.cin, c.date_naissance, c.tel, c.email, c.adresse,
c.ville_id, v.ville, c.niveau, c.ecole, c.specialite, c.ville_ecole_id, ve.ville, c.periode_id, p.periode,
c.cv_pdf, c.lettre_pdf, c.traite, c.commentaire, c.created_at
FROM candidatures_stage c
JOIN villes v ON v.id = c.ville_id
JOIN villes ve ON ve.id = c.ville_ecole_id
JOIN periodes p ON p.id = c.periode_id`

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Cities(ctx context.Context, activeOnly bool) ([]City, error) {
	query := `SELECT id, ville, actif FROM villes`
	if activeOnly {
		query += ` WHERE actif`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY ville`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[City])
}

func (r *repository) CreateCity(ctx context.Context, c City) (City, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO villes (ville, actif) VALUES ($1, $2) RETURNING id`, c.Ville, c.Actif).Scan(&c.ID)
	if err != nil {
		return City{}, db.TranslateError(err, uniqueFields)
	}
	return c, nil
}

func (r *repository) Periods(ctx context.Context, activeOnly bool) ([]Period, error) {
	query := `SELECT id, periode, actif FROM periodes`
	if activeOnly {
		query += ` WHERE actif`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Period])
}

func (r *repository) CreatePeriod(ctx context.Context, p Period) (Period, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO periodes (periode, actif) VALUES ($1, $2) RETURNING id`, p.Periode, p.Actif).Scan(&p.ID)
	if err != nil {
		return Period{}, db.TranslateError(err, uniqueFields)
	}
	return p, nil
}

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.Civilite, &a.Nom, &a.Prenom, &a.CIN, &a.DateNaissance, &a.Tel, &a.Email, &a.Adresse,
		&a.VilleID, &a.VilleNom, &a.Niveau, &a.Ecole, &a.Specialite, &a.VilleEcoleID, &a.VilleEcoleNom, &a.PeriodeID, &a.PeriodeNom,
		&a.CVPDF, &a.LettrePDF, &a.Traite, &a.Commentaire, &a.CreatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context, filters Filters) ([]Application, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Traite != nil {
		args = append(args, *filters.Traite)
		where += ` AND c.traite = $` + strconv.Itoa(len(args))
	}
	if filters.PeriodeID != nil {
		args = append(args, *filters.PeriodeID)
		where += ` AND c.periode_id = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (c.nom ILIKE $` + n + ` OR c.prenom ILIKE $` + n + ` OR c.cin ILIKE $` + n + ` OR c.ecole ILIKE $` + n + `)`
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM candidatures_stage c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := applicationColumns + where + ` ORDER BY c.created_at DESC, c.id DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Application, error) { return scanApplication(row) })
	return out, total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx, applicationColumns+` WHERE c.id = $1`, id))
	if err != nil {
		return Application{}, db.TranslateError(err, nil)
	}
	return a, nil
}

func (r *repository) Create(ctx context.Context, a Application) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO candidatures_stage
(civilite, nom, prenom, cin, date_naissance, tel, email, adresse, ville_id, niveau, ecole, specialite, ville_ecole_id, periode_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		a.Civilite, a.Nom, a.Prenom, a.CIN, a.DateNaissance, a.Tel, a.Email, a.Adresse, a.VilleID,
		a.Niveau, a.Ecole, a.Specialite, a.VilleEcoleID, a.PeriodeID).Scan(&id)
	if err != nil {
		return 0, db.TranslateError(err, uniqueFields)
	}
	return id, nil
}

func (r *repository) SetFiles(ctx context.Context, id int64, cv, lettre string) error {
	_, err := r.pool.Exec(ctx, `UPDATE candidatures_stage SET cv_pdf = $2, lettre_pdf = $3 WHERE id = $1`, id, cv, lettre)
	return err
}

func (r *repository) Review(ctx context.Context, id int64, in ReviewInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE candidatures_stage SET traite = $2, commentaire = $3 WHERE id = $1`, id, in.Traite, in.Commentaire)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM candidatures_stage WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
