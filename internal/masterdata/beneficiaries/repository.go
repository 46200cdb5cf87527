package beneficiaries

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Beneficiary, int, error)
	Get(ctx context.Context, id int64) (Beneficiary, error)
	Create(ctx context.Context, b Beneficiary) (Beneficiary, error)
	Update(ctx context.Context, b Beneficiary) error
	Delete(ctx context.Context, id int64) error
	// Options returns active beneficiaries; when onlyName is set only that
	// beneficiary is returned, when exceptName is set it is excluded.
	Options(ctx context.Context, onlyName, exceptName string) ([]Option, error)
}

var uniqueFields = map[string]string{
	"beneficiaires_raison_sociale_key":      "raison_sociale",
	"beneficiaires_telephone_key":           "telephone",
	"beneficiaires_registre_commerce_key":   "registre_commerce",
	"beneficiaires_identifiant_fiscale_key": "identifiant_fiscale",
	"beneficiaires_code_ice_key":            "code_ice",
}

const selectColumns = `SELECT id, raison_sociale, COALESCE(adresse, ''), COALESCE(ville, ''), COALESCE(telephone, ''),
registre_commerce, identifiant_fiscale, code_ice, actif, created_by, updated_by, created_at, updated_at FROM beneficiaires`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBeneficiary(row scanner) (Beneficiary, error) {
	var b Beneficiary
	err := row.Scan(&b.ID, &b.RaisonSociale, &b.Adresse, &b.Ville, &b.Telephone,
		&b.RegistreCommerce, &b.IdentifiantFiscale, &b.CodeICE, &b.Actif,
		&b.CreatedBy, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Beneficiary, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (raison_sociale ILIKE $` + n + ` OR code_ice ILIKE $` + n + ` OR identifiant_fiscale ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND actif = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM beneficiaires`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Beneficiary, error) {
	b, err := scanBeneficiary(r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return Beneficiary{}, db.TranslateError(err, nil)
	}
	return b, nil
}

func (r *repository) Create(ctx context.Context, b Beneficiary) (Beneficiary, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO beneficiaires
(raison_sociale, adresse, ville, telephone, registre_commerce, identifiant_fiscale, code_ice, actif, created_by, updated_by, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $9, $10, $10) RETURNING id`,
		b.RaisonSociale, b.Adresse, b.Ville, b.Telephone, b.RegistreCommerce, b.IdentifiantFiscale, b.CodeICE,
		b.Actif, b.CreatedBy, now).Scan(&b.ID)
	if err != nil {
		return Beneficiary{}, db.TranslateError(err, uniqueFields)
	}
	b.UpdatedBy = b.CreatedBy
	b.CreatedAt = now
	b.UpdatedAt = now
	return b, nil
}

func (r *repository) Update(ctx context.Context, b Beneficiary) error {
	tag, err := r.db.Exec(ctx, `UPDATE beneficiaires SET raison_sociale = $1, adresse = NULLIF($2, ''), ville = NULLIF($3, ''),
telephone = NULLIF($4, ''), registre_commerce = $5, identifiant_fiscale = $6, code_ice = $7, actif = $8,
updated_by = $9, updated_at = NOW() WHERE id = $10`,
		b.RaisonSociale, b.Adresse, b.Ville, b.Telephone, b.RegistreCommerce, b.IdentifiantFiscale, b.CodeICE,
		b.Actif, b.UpdatedBy, b.ID)
	if err != nil {
		return db.TranslateError(err, uniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM beneficiaires WHERE id = $1`, id)
	if err != nil {
		if _, ok := db.ConstraintViolation(err, db.ForeignKeyViolation); ok {
			return shared.ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Options(ctx context.Context, onlyName, exceptName string) ([]Option, error) {
	query := `SELECT id, raison_sociale FROM beneficiaires WHERE actif`
	args := []any{}
	switch {
	case onlyName != "":
		args = append(args, onlyName)
		query += ` AND raison_sociale = $1`
	case exceptName != "":
		args = append(args, exceptName)
		query += ` AND raison_sociale <> $1`
	}
	rows, err := r.db.Query(ctx, query+` ORDER BY raison_sociale`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.RaisonSociale); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "ville":
		return "ville " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "raison_sociale " + dir
	}
}
