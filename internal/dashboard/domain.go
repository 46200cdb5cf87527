package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket names, ordered from most to least urgent.
const (
	BucketOverdue = "echues"
	Bucket7       = "sous_7_jours"
	Bucket14      = "sous_14_jours"
	Bucket30      = "sous_30_jours"
	BucketLater   = "plus_30_jours"
)

var bucketOrder = []string{BucketOverdue, Bucket7, Bucket14, Bucket30, BucketLater}

// UnpaidInvoice is the slice of an unpaid invoice the aging needs.
type UnpaidInvoice struct {
	ID              int64           `json:"id"`
	NumFacture      string          `json:"num_facture"`
	BeneficiaireID  int64           `json:"beneficiaire_id"`
	BeneficiaireNom string          `json:"beneficiaire_nom"`
	DateEcheance    time.Time       `json:"date_echeance"`
	MntNetAPayer    decimal.Decimal `json:"mnt_net_apayer"`
}

// Bucket aggregates the invoices falling in one due-date window.
type Bucket struct {
	Name  string          `json:"name"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// BeneficiaryAging is the bucketed view of one supplier.
type BeneficiaryAging struct {
	BeneficiaireID  int64           `json:"beneficiaire_id"`
	BeneficiaireNom string          `json:"beneficiaire_nom"`
	Buckets         []Bucket        `json:"buckets"`
	Total           decimal.Decimal `json:"total"`
}

// Summary is the dashboard payload.
type Summary struct {
	AsOf          time.Time          `json:"as_of"`
	Buckets       []Bucket           `json:"buckets"`
	Total         decimal.Decimal    `json:"total"`
	Beneficiaries []BeneficiaryAging `json:"beneficiaries"`
	MostOverdue   []UnpaidInvoice    `json:"most_overdue"`
}

// BucketFor places a due date relative to today.
func BucketFor(due, today time.Time) string {
	days := int(due.Sub(today).Hours() / 24)
	switch {
	case due.Before(today):
		return BucketOverdue
	case days <= 7:
		return Bucket7
	case days <= 14:
		return Bucket14
	case days <= 30:
		return Bucket30
	default:
		return BucketLater
	}
}

func emptyBuckets() []Bucket {
	out := make([]Bucket, len(bucketOrder))
	for i, name := range bucketOrder {
		out[i] = Bucket{Name: name, Total: decimal.Zero}
	}
	return out
}

func bucketIndex(name string) int {
	for i, n := range bucketOrder {
		if n == name {
			return i
		}
	}
	return len(bucketOrder) - 1
}
