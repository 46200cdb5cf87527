package accounts

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Account, int, error)
	Get(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, id int64) error
	// UsedInOrders reports whether a payment order references the account
	// as sender or recipient.
	UsedInOrders(ctx context.Context, id int64) (bool, error)
	SetAttestation(ctx context.Context, id int64, key string, updatedBy *int64) error
	Options(ctx context.Context, beneficiaryID int64) ([]Account, error)
}

var uniqueFields = map[string]string{
	"comptes_tresorerie_rib_key": "rib",
}

const selectColumns = `SELECT c.id, c.beneficiaire_id, b.raison_sociale, c.type_compte, COALESCE(c.banque, ''), COALESCE(c.rib, ''),
c.attestation_rib_pdf, COALESCE(c.nom_caisse, ''), COALESCE(c.emplacement_caisse, ''), COALESCE(c.detenteur_caisse, ''),
c.nantissement, c.actif, c.created_by, c.updated_by, c.created_at, c.updated_at
FROM comptes_tresorerie c JOIN beneficiaires b ON b.id = c.beneficiaire_id`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.BeneficiaireID, &a.BeneficiaireNom, &a.TypeCompte, &a.Banque, &a.RIB,
		&a.AttestationRIBPDF, &a.NomCaisse, &a.EmplacementCaisse, &a.DetenteurCaisse,
		&a.Nantissement, &a.Actif, &a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Account, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (c.rib ILIKE $` + n + ` OR c.banque ILIKE $` + n + ` OR c.nom_caisse ILIKE $` + n + ` OR b.raison_sociale ILIKE $` + n + `)`
	}
	if filters.BeneficiaryID != nil {
		args = append(args, *filters.BeneficiaryID)
		where += ` AND c.beneficiaire_id = $` + strconv.Itoa(len(args))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND c.actif = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comptes_tresorerie c JOIN beneficiaires b ON b.id = c.beneficiaire_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where + ` ORDER BY b.raison_sociale, c.id`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, selectColumns+` WHERE c.id = $1`, id))
	if err != nil {
		return Account{}, db.TranslateError(err, nil)
	}
	return a, nil
}

func (r *repository) Create(ctx context.Context, a Account) (Account, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO comptes_tresorerie
(beneficiaire_id, type_compte, banque, rib, nom_caisse, emplacement_caisse, detenteur_caisse, nantissement, actif,
 created_by, updated_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $10, $11, $11)
RETURNING id`,
		a.BeneficiaireID, a.TypeCompte, a.Banque, a.RIB, a.NomCaisse, a.EmplacementCaisse, a.DetenteurCaisse,
		a.Nantissement, a.Actif, a.CreatedBy, now).Scan(&a.ID)
	if err != nil {
		return Account{}, db.TranslateError(err, uniqueFields)
	}
	return r.Get(ctx, a.ID)
}

func (r *repository) Update(ctx context.Context, a Account) error {
	tag, err := r.db.Exec(ctx, `UPDATE comptes_tresorerie SET beneficiaire_id = $1, type_compte = $2, banque = NULLIF($3, ''),
rib = NULLIF($4, ''), nom_caisse = NULLIF($5, ''), emplacement_caisse = NULLIF($6, ''), detenteur_caisse = NULLIF($7, ''),
nantissement = $8, actif = $9, updated_by = $10, updated_at = NOW() WHERE id = $11`,
		a.BeneficiaireID, a.TypeCompte, a.Banque, a.RIB, a.NomCaisse, a.EmplacementCaisse, a.DetenteurCaisse,
		a.Nantissement, a.Actif, a.UpdatedBy, a.ID)
	if err != nil {
		return db.TranslateError(err, uniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comptes_tresorerie WHERE id = $1`, id)
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

func (r *repository) UsedInOrders(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ordres_virement WHERE compte_tresorerie_id = $1 OR compte_emetteur_id = $1)`, id).Scan(&used)
	return used, err
}

func (r *repository) SetAttestation(ctx context.Context, id int64, key string, updatedBy *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE comptes_tresorerie SET attestation_rib_pdf = $1, updated_by = $2, updated_at = NOW() WHERE id = $3`, key, updatedBy, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Options(ctx context.Context, beneficiaryID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE c.actif AND c.beneficiaire_id = $1 ORDER BY c.id`, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
