package payables

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/platform/db"
)

// Repository defines payables data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filters InvoiceFilters) ([]Invoice, int, error)
	// InvoiceOptions lists the invoices of a beneficiary that are either
	// unassigned or assigned to orderID.
	InvoiceOptions(ctx context.Context, beneficiaryID int64, orderID *int64) ([]Invoice, error)
	ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error)

	GetOrder(ctx context.Context, id int64) (PaymentOrder, error)
	ListOrders(ctx context.Context, filters OrderFilters) ([]PaymentOrder, int, error)
	ListOrderInvoices(ctx context.Context, orderID int64) ([]Invoice, error)
	OrderIDs(ctx context.Context) ([]int64, error)
	ExportRows(ctx context.Context, filters InvoiceFilters) ([]ExportRow, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	LockInvoice(ctx context.Context, id int64) (Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error
	SetInvoiceSettlement(ctx context.Context, id int64, status Status, paidAt *time.Time) error

	CreditTotal(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	InsertCreditNote(ctx context.Context, note CreditNote) (int64, error)
	DeleteCreditNote(ctx context.Context, invoiceID, id int64) error

	LockOrder(ctx context.Context, id int64) (PaymentOrder, error)
	InsertOrder(ctx context.Context, o PaymentOrder) (int64, error)
	UpdateOrder(ctx context.Context, o PaymentOrder) error
	DeleteOrder(ctx context.Context, id int64) error
	SetOrderAmount(ctx context.Context, id int64, amount decimal.Decimal) error
	InvoicesForOrder(ctx context.Context, orderID int64) ([]Invoice, error)
	// DetachInvoices resets every invoice of the order to attente, with no
	// order and no payment date, and returns them as they were before.
	DetachInvoices(ctx context.Context, orderID int64) ([]Invoice, error)

	ContractTerms(ctx context.Context, id int64) (ContractTerms, error)
	AccountOwner(ctx context.Context, accountID int64) (int64, error)
	CompanyID(ctx context.Context, name string) (int64, error)
}

// Ensure implementation
var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

var invoiceUniqueFields = map[string]string{
	"unique_beneficiaire_facture": "num_facture",
}

var orderUniqueFields = map[string]string{
	"ordres_virement_reference_key": "reference",
}

var creditNoteUniqueFields = map[string]string{
	"unique_facture_avoir": "num_avoir",
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx runs fn under ReadCommitted: order and invoice rows are locked
// with SELECT ... FOR UPDATE, so concurrent writers queue on the row lock.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{q: tx})
	})
}

const invoiceColumns = `SELECT f.id, f.beneficiaire_id, b.raison_sociale, f.contrat_id, COALESCE(c.numero_contrat, ''),
f.num_facture, f.date_facture, f.date_echeance, f.montant_ht, f.montant_tva, f.montant_ttc, f.penalite,
f.mnt_ras_tva, f.mnt_ras_is, f.mnt_rg, f.mnt_net_apayer, f.proforma_pdf, f.facture_pdf, f.pv_reception_pdf,
f.date_execution, f.ordre_virement_id, f.date_paiement, f.statut, f.created_by, f.updated_by, f.created_at, f.updated_at
FROM factures f
JOIN beneficiaires b ON b.id = f.beneficiaire_id
LEFT JOIN contrats c ON c.id = f.contrat_id`

const orderColumns = `SELECT o.id, COALESCE(o.reference, ''), o.type_ov, o.beneficiaire_id, b.raison_sociale,
o.compte_tresorerie_id, o.compte_emetteur_id, o.montant, o.date_ov, o.valide_pour_signature, o.date_remise_banque,
o.ov_remis_banque_pdf, o.remis_a_banque, o.date_operation_banque, o.avis_debit_pdf, o.compte_debite,
o.created_by, o.updated_by, o.created_at, o.updated_at
FROM ordres_virement o
JOIN beneficiaires b ON b.id = o.beneficiaire_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.BeneficiaireID, &inv.BeneficiaireNom, &inv.ContratID, &inv.NumeroContrat,
		&inv.NumFacture, &inv.DateFacture, &inv.DateEcheance, &inv.MontantHT, &inv.MontantTVA, &inv.MontantTTC, &inv.Penalite,
		&inv.MntRASTVA, &inv.MntRASIS, &inv.MntRG, &inv.MntNetAPayer, &inv.ProformaPDF, &inv.FacturePDF, &inv.PVReceptionPDF,
		&inv.DateExecution, &inv.OrdreVirementID, &inv.DatePaiement, &inv.Statut, &inv.CreatedBy, &inv.UpdatedBy,
		&inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func scanOrder(row scanner) (PaymentOrder, error) {
	var o PaymentOrder
	err := row.Scan(&o.ID, &o.Reference, &o.TypeOV, &o.BeneficiaireID, &o.BeneficiaireNom,
		&o.CompteTresorerieID, &o.CompteEmetteurID, &o.Montant, &o.DateOV, &o.ValidePourSignature, &o.DateRemiseBanque,
		&o.OVRemisBanquePDF, &o.RemisABanque, &o.DateOperationBanque, &o.AvisDebitPDF, &o.CompteDebite,
		&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectInvoices(rows pgx.Rows, err error) ([]Invoice, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func getInvoice(ctx context.Context, q querier, id int64, lock bool) (Invoice, error) {
	query := invoiceColumns + ` WHERE f.id = $1`
	if lock {
		query += ` FOR UPDATE OF f`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

func getOrder(ctx context.Context, q querier, id int64, lock bool) (PaymentOrder, error) {
	query := orderColumns + ` WHERE o.id = $1`
	if lock {
		query += ` FOR UPDATE OF o`
	}
	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentOrder{}, ErrOrderNotFound
	}
	return o, err
}

func (r *pgRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, r.pool, id, false)
}

func (r *pgRepository) ListInvoices(ctx context.Context, filters InvoiceFilters) ([]Invoice, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where += ` AND ` + clause + `$` + strconv.Itoa(len(args))
	}
	if filters.BeneficiaryID != nil {
		add(`f.beneficiaire_id = `, *filters.BeneficiaryID)
	}
	if filters.OrderID != nil {
		add(`f.ordre_virement_id = `, *filters.OrderID)
	}
	if filters.ContractID != nil {
		add(`f.contrat_id = `, *filters.ContractID)
	}
	if filters.Status != "" {
		add(`f.statut = `, string(filters.Status))
	}
	if filters.Unpaid {
		add(`f.statut <> `, string(StatusPayee))
	}
	if filters.DueBefore != nil {
		add(`f.date_echeance <= `, *filters.DueBefore)
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (f.num_facture ILIKE $` + n + ` OR b.raison_sociale ILIKE $` + n + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM factures f JOIN beneficiaires b ON b.id = f.beneficiaire_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := invoiceColumns + where + ` ORDER BY f.date_echeance, f.id`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	out, err := collectInvoices(r.pool.Query(ctx, query, args...))
	return out, total, err
}

func (r *pgRepository) InvoiceOptions(ctx context.Context, beneficiaryID int64, orderID *int64) ([]Invoice, error) {
	if orderID == nil {
		return collectInvoices(r.pool.Query(ctx, invoiceColumns+`
WHERE f.beneficiaire_id = $1 AND f.ordre_virement_id IS NULL
ORDER BY f.date_echeance, f.id`, beneficiaryID))
	}
	return collectInvoices(r.pool.Query(ctx, invoiceColumns+`
WHERE f.beneficiaire_id = $1 AND (f.ordre_virement_id IS NULL OR f.ordre_virement_id = $2)
ORDER BY f.date_echeance, f.id`, beneficiaryID, *orderID))
}

func (r *pgRepository) ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, facture_id, num_avoir, date_avoir, montant_ht, created_by, created_at
FROM avoirs WHERE facture_id = $1 ORDER BY date_avoir, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreditNote
	for rows.Next() {
		var n CreditNote
		if err := rows.Scan(&n.ID, &n.FactureID, &n.NumAvoir, &n.DateAvoir, &n.MontantHT, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *pgRepository) GetOrder(ctx context.Context, id int64) (PaymentOrder, error) {
	return getOrder(ctx, r.pool, id, false)
}

func (r *pgRepository) ListOrders(ctx context.Context, filters OrderFilters) ([]PaymentOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.BeneficiaryID != nil {
		args = append(args, *filters.BeneficiaryID)
		where += ` AND o.beneficiaire_id = $` + strconv.Itoa(len(args))
	}
	if filters.TypeOV != "" {
		args = append(args, filters.TypeOV)
		where += ` AND o.type_ov = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (o.reference ILIKE $` + n + ` OR b.raison_sociale ILIKE $` + n + `)`
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ordres_virement o JOIN beneficiaires b ON b.id = o.beneficiaire_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := orderColumns + where + ` ORDER BY o.date_ov DESC, o.id DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PaymentOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) ListOrderInvoices(ctx context.Context, orderID int64) ([]Invoice, error) {
	return collectInvoices(r.pool.Query(ctx, invoiceColumns+` WHERE f.ordre_virement_id = $1 ORDER BY f.date_echeance, f.id`, orderID))
}

func (r *pgRepository) OrderIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM ordres_virement ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *pgRepository) ExportRows(ctx context.Context, filters InvoiceFilters) ([]ExportRow, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.BeneficiaryID != nil {
		args = append(args, *filters.BeneficiaryID)
		where += ` AND f.beneficiaire_id = $` + strconv.Itoa(len(args))
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += ` AND f.statut = $` + strconv.Itoa(len(args))
	}
	if filters.Unpaid {
		args = append(args, string(StatusPayee))
		where += ` AND f.statut <> $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, `SELECT f.id, f.beneficiaire_id, b.raison_sociale, f.contrat_id, COALESCE(c.numero_contrat, ''),
f.num_facture, f.date_facture, f.date_echeance, f.montant_ht, f.montant_tva, f.montant_ttc, f.penalite,
f.mnt_ras_tva, f.mnt_ras_is, f.mnt_rg, f.mnt_net_apayer, f.proforma_pdf, f.facture_pdf, f.pv_reception_pdf,
f.date_execution, f.ordre_virement_id, f.date_paiement, f.statut, f.created_by, f.updated_by, f.created_at, f.updated_at,
COALESCE(c.moe, ''), COALESCE(c.mode_paiement, ''), b.code_ice, b.registre_commerce, COALESCE(o.reference, ''), o.date_remise_banque
FROM factures f
JOIN beneficiaires b ON b.id = f.beneficiaire_id
LEFT JOIN contrats c ON c.id = f.contrat_id
LEFT JOIN ordres_virement o ON o.id = f.ordre_virement_id`+where+`
ORDER BY b.raison_sociale, f.date_facture, f.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		inv := &row.Invoice
		if err := rows.Scan(&inv.ID, &inv.BeneficiaireID, &inv.BeneficiaireNom, &inv.ContratID, &inv.NumeroContrat,
			&inv.NumFacture, &inv.DateFacture, &inv.DateEcheance, &inv.MontantHT, &inv.MontantTVA, &inv.MontantTTC, &inv.Penalite,
			&inv.MntRASTVA, &inv.MntRASIS, &inv.MntRG, &inv.MntNetAPayer, &inv.ProformaPDF, &inv.FacturePDF, &inv.PVReceptionPDF,
			&inv.DateExecution, &inv.OrdreVirementID, &inv.DatePaiement, &inv.Statut, &inv.CreatedBy, &inv.UpdatedBy,
			&inv.CreatedAt, &inv.UpdatedAt,
			&row.MOE, &row.ModePaiement, &row.CodeICE, &row.RegistreCommerce, &row.OrderReference, &row.DateReglement); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	q querier
}

func (t *pgTxRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, t.q, id, false)
}

func (t *pgTxRepository) LockInvoice(ctx context.Context, id int64) (Invoice, error) {
	return getInvoice(ctx, t.q, id, true)
}

func (t *pgTxRepository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO factures
(beneficiaire_id, contrat_id, num_facture, date_facture, date_echeance, montant_ht, montant_tva, montant_ttc, penalite,
 mnt_ras_tva, mnt_ras_is, mnt_rg, mnt_net_apayer, proforma_pdf, facture_pdf, pv_reception_pdf, date_execution,
 ordre_virement_id, date_paiement, statut, created_by, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $21)
RETURNING id`,
		inv.BeneficiaireID, inv.ContratID, inv.NumFacture, inv.DateFacture, inv.DateEcheance, inv.MontantHT,
		inv.MontantTVA, inv.MontantTTC, inv.Penalite, inv.MntRASTVA, inv.MntRASIS, inv.MntRG, inv.MntNetAPayer,
		inv.ProformaPDF, inv.FacturePDF, inv.PVReceptionPDF, inv.DateExecution, inv.OrdreVirementID, inv.DatePaiement,
		string(inv.Statut), inv.CreatedBy).Scan(&id)
	if err != nil {
		return 0, db.TranslateError(err, invoiceUniqueFields)
	}
	return id, nil
}

func (t *pgTxRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	tag, err := t.q.Exec(ctx, `UPDATE factures SET beneficiaire_id = $1, contrat_id = $2, num_facture = $3, date_facture = $4,
date_echeance = $5, montant_ht = $6, montant_tva = $7, montant_ttc = $8, penalite = $9, mnt_ras_tva = $10,
mnt_ras_is = $11, mnt_rg = $12, mnt_net_apayer = $13, proforma_pdf = $14, facture_pdf = $15, pv_reception_pdf = $16,
date_execution = $17, ordre_virement_id = $18, date_paiement = $19, statut = $20, updated_by = $21, updated_at = NOW()
WHERE id = $22`,
		inv.BeneficiaireID, inv.ContratID, inv.NumFacture, inv.DateFacture, inv.DateEcheance, inv.MontantHT,
		inv.MontantTVA, inv.MontantTTC, inv.Penalite, inv.MntRASTVA, inv.MntRASIS, inv.MntRG, inv.MntNetAPayer,
		inv.ProformaPDF, inv.FacturePDF, inv.PVReceptionPDF, inv.DateExecution, inv.OrdreVirementID, inv.DatePaiement,
		string(inv.Statut), inv.UpdatedBy, inv.ID)
	if err != nil {
		return db.TranslateError(err, invoiceUniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (t *pgTxRepository) DeleteInvoice(ctx context.Context, id int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM factures WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (t *pgTxRepository) SetInvoiceSettlement(ctx context.Context, id int64, status Status, paidAt *time.Time) error {
	_, err := t.q.Exec(ctx, `UPDATE factures SET statut = $1, date_paiement = $2, updated_at = NOW() WHERE id = $3`, string(status), paidAt, id)
	return err
}

func (t *pgTxRepository) CreditTotal(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.q.QueryRow(ctx, `SELECT COALESCE(SUM(montant_ht), 0) FROM avoirs WHERE facture_id = $1`, invoiceID).Scan(&total)
	return total, err
}

func (t *pgTxRepository) InsertCreditNote(ctx context.Context, note CreditNote) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO avoirs (facture_id, num_avoir, date_avoir, montant_ht, created_by)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, note.FactureID, note.NumAvoir, note.DateAvoir, note.MontantHT, note.CreatedBy).Scan(&id)
	if err != nil {
		return 0, db.TranslateError(err, creditNoteUniqueFields)
	}
	return id, nil
}

func (t *pgTxRepository) DeleteCreditNote(ctx context.Context, invoiceID, id int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM avoirs WHERE id = $1 AND facture_id = $2`, id, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCreditNoteNotFound
	}
	return nil
}

func (t *pgTxRepository) LockOrder(ctx context.Context, id int64) (PaymentOrder, error) {
	return getOrder(ctx, t.q, id, true)
}

func (t *pgTxRepository) InsertOrder(ctx context.Context, o PaymentOrder) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO ordres_virement
(reference, type_ov, beneficiaire_id, compte_tresorerie_id, compte_emetteur_id, montant, date_ov, valide_pour_signature,
 date_remise_banque, ov_remis_banque_pdf, remis_a_banque, date_operation_banque, avis_debit_pdf, compte_debite,
 created_by, updated_by)
VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
RETURNING id`,
		o.Reference, o.TypeOV, o.BeneficiaireID, o.CompteTresorerieID, o.CompteEmetteurID, o.Montant, o.DateOV,
		o.ValidePourSignature, o.DateRemiseBanque, o.OVRemisBanquePDF, o.RemisABanque, o.DateOperationBanque,
		o.AvisDebitPDF, o.CompteDebite, o.CreatedBy).Scan(&id)
	if err != nil {
		return 0, db.TranslateError(err, orderUniqueFields)
	}
	return id, nil
}

func (t *pgTxRepository) UpdateOrder(ctx context.Context, o PaymentOrder) error {
	tag, err := t.q.Exec(ctx, `UPDATE ordres_virement SET reference = NULLIF($1, ''), type_ov = $2, beneficiaire_id = $3,
compte_tresorerie_id = $4, compte_emetteur_id = $5, date_ov = $6, valide_pour_signature = $7, date_remise_banque = $8,
ov_remis_banque_pdf = $9, remis_a_banque = $10, date_operation_banque = $11, avis_debit_pdf = $12, compte_debite = $13,
updated_by = $14, updated_at = NOW() WHERE id = $15`,
		o.Reference, o.TypeOV, o.BeneficiaireID, o.CompteTresorerieID, o.CompteEmetteurID, o.DateOV,
		o.ValidePourSignature, o.DateRemiseBanque, o.OVRemisBanquePDF, o.RemisABanque, o.DateOperationBanque,
		o.AvisDebitPDF, o.CompteDebite, o.UpdatedBy, o.ID)
	if err != nil {
		return db.TranslateError(err, orderUniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *pgTxRepository) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM ordres_virement WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *pgTxRepository) SetOrderAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	_, err := t.q.Exec(ctx, `UPDATE ordres_virement SET montant = $1, updated_at = NOW() WHERE id = $2`, amount, id)
	return err
}

func (t *pgTxRepository) InvoicesForOrder(ctx context.Context, orderID int64) ([]Invoice, error) {
	return collectInvoices(t.q.Query(ctx, invoiceColumns+` WHERE f.ordre_virement_id = $1 ORDER BY f.id FOR UPDATE OF f`, orderID))
}

func (t *pgTxRepository) DetachInvoices(ctx context.Context, orderID int64) ([]Invoice, error) {
	invoices, err := t.InvoicesForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	_, err = t.q.Exec(ctx, `UPDATE factures SET statut = $1, ordre_virement_id = NULL, date_paiement = NULL, updated_at = NOW()
WHERE ordre_virement_id = $2`, string(StatusAttente), orderID)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (t *pgTxRepository) ContractTerms(ctx context.Context, id int64) (ContractTerms, error) {
	var c ContractTerms
	err := t.q.QueryRow(ctx, `SELECT id, beneficiaire_id, taux_tva, taux_ras_tva, taux_ras_is, taux_rg, mode_paiement
FROM contrats WHERE id = $1`, id).Scan(&c.ID, &c.BeneficiaireID, &c.TauxTVA, &c.TauxRASTVA, &c.TauxRASIS, &c.TauxRG, &c.ModePaiement)
	if err != nil {
		return ContractTerms{}, db.TranslateError(err, nil)
	}
	return c, nil
}

func (t *pgTxRepository) AccountOwner(ctx context.Context, accountID int64) (int64, error) {
	var owner int64
	err := t.q.QueryRow(ctx, `SELECT beneficiaire_id FROM comptes_tresorerie WHERE id = $1`, accountID).Scan(&owner)
	if err != nil {
		return 0, db.TranslateError(err, nil)
	}
	return owner, nil
}

func (t *pgTxRepository) CompanyID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `SELECT id FROM beneficiaires WHERE raison_sociale = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrCompanyMissing
	}
	return id, err
}
