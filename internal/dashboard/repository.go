package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the unpaid invoices the aging is built from.
type Repository interface {
	UnpaidInvoices(ctx context.Context) ([]UnpaidInvoice, error)
	MostOverdue(ctx context.Context, asOf time.Time, limit int) ([]UnpaidInvoice, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const unpaidColumns = `SELECT f.id, f.num_facture, f.beneficiaire_id, b.raison_sociale, f.date_echeance, f.mnt_net_apayer
FROM factures f JOIN beneficiaires b ON b.id = f.beneficiaire_id
WHERE f.statut <> 'payee'`

func (r *pgRepository) UnpaidInvoices(ctx context.Context) ([]UnpaidInvoice, error) {
	return collect(r.pool.Query(ctx, unpaidColumns+` ORDER BY b.raison_sociale, f.date_echeance`))
}

func (r *pgRepository) MostOverdue(ctx context.Context, asOf time.Time, limit int) ([]UnpaidInvoice, error) {
	return collect(r.pool.Query(ctx, unpaidColumns+` AND f.date_echeance < $1 ORDER BY f.date_echeance, f.id LIMIT $2`, asOf, limit))
}

func collect(rows pgx.Rows, err error) ([]UnpaidInvoice, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (UnpaidInvoice, error) {
		var inv UnpaidInvoice
		err := row.Scan(&inv.ID, &inv.NumFacture, &inv.BeneficiaireID, &inv.BeneficiaireNom, &inv.DateEcheance, &inv.MntNetAPayer)
		return inv, err
	})
}
