package contracts

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Contract, int, error)
	Get(ctx context.Context, id int64) (Contract, error)
	Create(ctx context.Context, c Contract) (Contract, error)
	Update(ctx context.Context, c Contract) error
	Delete(ctx context.Context, id int64) error
	SetPDF(ctx context.Context, id int64, key string, updatedBy *int64) error
	Options(ctx context.Context, beneficiaryID int64) ([]Contract, error)
	// Balances returns the active contracts of the given type with the HT
	// total of their invoices.
	Balances(ctx context.Context, typeContrat string) ([]Balance, error)
}

var uniqueFields = map[string]string{
	"contrats_numero_contrat_key": "numero_contrat",
}

const selectColumns = `SELECT c.id, c.beneficiaire_id, b.raison_sociale, c.moe, c.type_contrat, c.numero_contrat, c.objet,
c.date_debut, c.date_fin, c.mode_paiement, c.montant_ht, c.taux_tva, c.taux_ras_tva, c.taux_ras_is, c.taux_rg,
c.contrat_pdf, c.actif, c.created_by, c.updated_by, c.created_at, c.updated_at
FROM contrats c JOIN beneficiaires b ON b.id = c.beneficiaire_id`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner, extra ...any) (Contract, error) {
	var c Contract
	dest := []any{&c.ID, &c.BeneficiaireID, &c.BeneficiaireNom, &c.MOE, &c.TypeContrat, &c.NumeroContrat, &c.Objet,
		&c.DateDebut, &c.DateFin, &c.ModePaiement, &c.MontantHT, &c.TauxTVA, &c.TauxRASTVA, &c.TauxRASIS, &c.TauxRG,
		&c.ContratPDF, &c.Actif, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return c, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Contract, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (c.numero_contrat ILIKE $` + n + ` OR c.objet ILIKE $` + n + ` OR b.raison_sociale ILIKE $` + n + `)`
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contrats c JOIN beneficiaires b ON b.id = c.beneficiaire_id`+where, args...).Scan(&total); err != nil {
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
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Contract, error) {
	c, err := scanContract(r.db.QueryRow(ctx, selectColumns+` WHERE c.id = $1`, id))
	if err != nil {
		return Contract{}, db.TranslateError(err, nil)
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, c Contract) (Contract, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO contrats
(beneficiaire_id, moe, type_contrat, numero_contrat, objet, date_debut, date_fin, mode_paiement, montant_ht,
 taux_tva, taux_ras_tva, taux_ras_is, taux_rg, actif, created_by, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15, $16, $16) RETURNING id`,
		c.BeneficiaireID, c.MOE, c.TypeContrat, c.NumeroContrat, c.Objet, c.DateDebut, c.DateFin, c.ModePaiement,
		c.MontantHT, c.TauxTVA, c.TauxRASTVA, c.TauxRASIS, c.TauxRG, c.Actif, c.CreatedBy, now).Scan(&c.ID)
	if err != nil {
		return Contract{}, db.TranslateError(err, uniqueFields)
	}
	return r.Get(ctx, c.ID)
}

func (r *repository) Update(ctx context.Context, c Contract) error {
	tag, err := r.db.Exec(ctx, `UPDATE contrats SET beneficiaire_id = $1, moe = $2, type_contrat = $3, numero_contrat = $4,
objet = $5, date_debut = $6, date_fin = $7, mode_paiement = $8, montant_ht = $9, taux_tva = $10, taux_ras_tva = $11,
taux_ras_is = $12, taux_rg = $13, actif = $14, updated_by = $15, updated_at = NOW() WHERE id = $16`,
		c.BeneficiaireID, c.MOE, c.TypeContrat, c.NumeroContrat, c.Objet, c.DateDebut, c.DateFin, c.ModePaiement,
		c.MontantHT, c.TauxTVA, c.TauxRASTVA, c.TauxRASIS, c.TauxRG, c.Actif, c.UpdatedBy, c.ID)
	if err != nil {
		return db.TranslateError(err, uniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contrats WHERE id = $1`, id)
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

func (r *repository) SetPDF(ctx context.Context, id int64, key string, updatedBy *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE contrats SET contrat_pdf = $1, updated_by = $2, updated_at = NOW() WHERE id = $3`, key, updatedBy, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Options(ctx context.Context, beneficiaryID int64) ([]Contract, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE c.actif AND c.beneficiaire_id = $1 ORDER BY c.numero_contrat`, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Balances(ctx context.Context, typeContrat string) ([]Balance, error) {
	rows, err := r.db.Query(ctx, `SELECT c.id, c.beneficiaire_id, b.raison_sociale, c.moe, c.type_contrat, c.numero_contrat, c.objet,
c.date_debut, c.date_fin, c.mode_paiement, c.montant_ht, c.taux_tva, c.taux_ras_tva, c.taux_ras_is, c.taux_rg,
c.contrat_pdf, c.actif, c.created_by, c.updated_by, c.created_at, c.updated_at,
COALESCE((SELECT SUM(f.montant_ht) FROM factures f WHERE f.contrat_id = c.id), 0)
FROM contrats c JOIN beneficiaires b ON b.id = c.beneficiaire_id
WHERE c.actif AND c.type_contrat = $1
ORDER BY b.raison_sociale, c.numero_contrat`, typeContrat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		c, err := scanContract(rows, &b.MontantFacture)
		if err != nil {
			return nil, err
		}
		b.Contract = c
		b.Reste = c.MontantHT.Sub(b.MontantFacture)
		out = append(out, b)
	}
	return out, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "date_debut":
		return "c.date_debut " + dir
	case "date_fin":
		return "c.date_fin " + dir
	case "beneficiaire":
		return "b.raison_sociale " + dir
	default:
		return "c.numero_contrat " + dir
	}
}
