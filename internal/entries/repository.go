package entries

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/masterdata/shared"
	"github.com/supratours/virements/internal/platform/db"
)

// Repository defines chart-of-accounts and operation persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListAccounts(ctx context.Context, filters shared.ListFilters) ([]Account, int, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	CreateAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, id int64) error

	ListOperations(ctx context.Context, filters OperationFilters) ([]Operation, int, error)
	GetOperation(ctx context.Context, id int64) (Operation, error)
	CreateOperation(ctx context.Context, op Operation) (Operation, error)
	UpdateOperation(ctx context.Context, op Operation) error
	SetJustif(ctx context.Context, id int64, key string) error
	DeleteOperation(ctx context.Context, id int64) error
}

// TxRepository holds the writes that keep an operation's valide flag in
// step with its lines.
type TxRepository interface {
	LockOperation(ctx context.Context, id int64) (Operation, error)
	Lines(ctx context.Context, operationID int64) ([]Line, error)
	InsertLine(ctx context.Context, l Line) (int64, error)
	DeleteLine(ctx context.Context, operationID, lineID int64) error
	SetValide(ctx context.Context, operationID int64, valide bool) error
	// UpsertAccount reports true when the account did not exist yet.
	UpsertAccount(ctx context.Context, a Account) (bool, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

var accountUniqueFields = map[string]string{
	"comptes_comptables_numero_key": "numero",
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

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{q: tx})
	})
}

func (r *pgRepository) ListAccounts(ctx context.Context, filters shared.ListFilters) ([]Account, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, filters.Search+"%", "%"+filters.Search+"%")
		where += ` AND (numero LIKE $1 OR intitule ILIKE $2)`
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comptes_comptables`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT id, numero, intitule FROM comptes_comptables` + where + ` ORDER BY numero`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Account])
	return out, total, err
}

func (r *pgRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, numero, intitule FROM comptes_comptables WHERE id = $1`, id).
		Scan(&a.ID, &a.Numero, &a.Intitule)
	if err != nil {
		return Account{}, db.TranslateError(err, nil)
	}
	return a, nil
}

func (r *pgRepository) CreateAccount(ctx context.Context, a Account) (Account, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO comptes_comptables (numero, intitule) VALUES ($1, $2) RETURNING id`,
		a.Numero, a.Intitule).Scan(&a.ID)
	if err != nil {
		return Account{}, db.TranslateError(err, accountUniqueFields)
	}
	return a, nil
}

func (r *pgRepository) UpdateAccount(ctx context.Context, a Account) error {
	tag, err := r.pool.Exec(ctx, `UPDATE comptes_comptables SET numero = $2, intitule = $3 WHERE id = $1`, a.ID, a.Numero, a.Intitule)
	if err != nil {
		return db.TranslateError(err, accountUniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comptes_comptables WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const operationColumns = `SELECT o.id, o.libelle, o.date_operation, o.annee_comptable, o.justif_pdf, o.valide, o.created_by, o.created_at,
	COALESCE((SELECT SUM(montant) FROM ecritures_operation e WHERE e.operation_id = o.id AND e.sens_ecriture = 'DEBIT'), 0),
	COALESCE((SELECT SUM(montant) FROM ecritures_operation e WHERE e.operation_id = o.id AND e.sens_ecriture = 'CREDIT'), 0)
FROM operations_diverses o`

func scanOperation(row pgx.Row) (Operation, error) {
	var op Operation
	err := row.Scan(&op.ID, &op.Libelle, &op.DateOperation, &op.AnneeComptable, &op.JustifPDF, &op.Valide,
		&op.CreatedBy, &op.CreatedAt, &op.TotalDebit, &op.TotalCredit)
	return op, err
}

func (r *pgRepository) ListOperations(ctx context.Context, filters OperationFilters) ([]Operation, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Annee > 0 {
		args = append(args, filters.Annee)
		where += ` AND o.annee_comptable = $` + strconv.Itoa(len(args))
	}
	if filters.Valide != nil {
		args = append(args, *filters.Valide)
		where += ` AND o.valide = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND o.libelle ILIKE $` + strconv.Itoa(len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM operations_diverses o`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := operationColumns + where + ` ORDER BY o.date_operation DESC, o.id DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Operation, error) { return scanOperation(row) })
	return out, total, err
}

func (r *pgRepository) GetOperation(ctx context.Context, id int64) (Operation, error) {
	op, err := scanOperation(r.pool.QueryRow(ctx, operationColumns+` WHERE o.id = $1`, id))
	if err != nil {
		return Operation{}, db.TranslateError(err, nil)
	}
	if op.Lines, err = listLines(ctx, r.pool, id); err != nil {
		return Operation{}, err
	}
	return op, nil
}

func (r *pgRepository) CreateOperation(ctx context.Context, op Operation) (Operation, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO operations_diverses (libelle, date_operation, annee_comptable, created_by)
VALUES ($1, $2, $3, $4) RETURNING id, created_at`, op.Libelle, op.DateOperation, op.AnneeComptable, op.CreatedBy).
		Scan(&op.ID, &op.CreatedAt)
	if err != nil {
		return Operation{}, db.TranslateError(err, nil)
	}
	return op, nil
}

func (r *pgRepository) UpdateOperation(ctx context.Context, op Operation) error {
	tag, err := r.pool.Exec(ctx, `UPDATE operations_diverses SET libelle = $2, annee_comptable = $3 WHERE id = $1`,
		op.ID, op.Libelle, op.AnneeComptable)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetJustif(ctx context.Context, id int64, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE operations_diverses SET justif_pdf = $2 WHERE id = $1`, id, key)
	return err
}

func (r *pgRepository) DeleteOperation(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM operations_diverses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func listLines(ctx context.Context, q querier, operationID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT e.id, e.operation_id, e.compte_id, c.numero, c.intitule, e.montant, e.sens_ecriture
FROM ecritures_operation e JOIN comptes_comptables c ON c.id = e.compte_id
WHERE e.operation_id = $1 ORDER BY e.id`, operationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Line])
}

type pgTxRepository struct {
	q querier
}

func (t *pgTxRepository) LockOperation(ctx context.Context, id int64) (Operation, error) {
	var op Operation
	err := t.q.QueryRow(ctx, `SELECT id, libelle, date_operation, annee_comptable, justif_pdf, valide, created_by, created_at
FROM operations_diverses WHERE id = $1 FOR UPDATE`, id).
		Scan(&op.ID, &op.Libelle, &op.DateOperation, &op.AnneeComptable, &op.JustifPDF, &op.Valide, &op.CreatedBy, &op.CreatedAt)
	if err != nil {
		return Operation{}, db.TranslateError(err, nil)
	}
	return op, nil
}

func (t *pgTxRepository) Lines(ctx context.Context, operationID int64) ([]Line, error) {
	return listLines(ctx, t.q, operationID)
}

func (t *pgTxRepository) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO ecritures_operation (operation_id, compte_id, montant, sens_ecriture)
VALUES ($1, $2, $3, $4) RETURNING id`, l.OperationID, l.CompteID, l.Montant, string(l.Sens)).Scan(&id)
	if err != nil {
		return 0, db.TranslateError(err, nil)
	}
	return id, nil
}

func (t *pgTxRepository) DeleteLine(ctx context.Context, operationID, lineID int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM ecritures_operation WHERE id = $1 AND operation_id = $2`, lineID, operationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *pgTxRepository) SetValide(ctx context.Context, operationID int64, valide bool) error {
	_, err := t.q.Exec(ctx, `UPDATE operations_diverses SET valide = $2 WHERE id = $1`, operationID, valide)
	return err
}

func (t *pgTxRepository) UpsertAccount(ctx context.Context, a Account) (bool, error) {
	var inserted bool
	err := t.q.QueryRow(ctx, `INSERT INTO comptes_comptables (numero, intitule) VALUES ($1, $2)
ON CONFLICT (numero) DO UPDATE SET intitule = EXCLUDED.intitule
RETURNING (xmax = 0)`, a.Numero, a.Intitule).Scan(&inserted)
	return inserted, err
}
