package payables

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Export layouts.
const (
	ExportStandard     = "std"
	ExportPaymentTerms = "dlp"
)

// ExportRow is an invoice joined with the contract, beneficiary and order
// columns the exports need.
type ExportRow struct {
	Invoice
	MOE              string
	ModePaiement     string
	CodeICE          string
	RegistreCommerce string
	OrderReference   string
	DateReglement    *time.Time
}

// WriteExportCSV writes rows in the requested layout.
func WriteExportCSV(w io.Writer, layout string, rows []ExportRow) error {
	switch layout {
	case ExportStandard, "":
		return writeStandardCSV(w, rows)
	case ExportPaymentTerms:
		return writePaymentTermsCSV(w, rows)
	default:
		return fmt.Errorf("unknown export layout %q", layout)
	}
}

func writeStandardCSV(w io.Writer, rows []ExportRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{
		"Beneficiaire", "Contrat", "MOE", "Num facture", "Date facture", "Date echeance", "Montant TTC",
		"RAS IS", "RAS TVA", "RG", "Net a payer", "Ordre de virement", "Statut",
	}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write([]string{
			r.BeneficiaireNom,
			r.NumeroContrat,
			r.MOE,
			r.NumFacture,
			formatDate(&r.DateFacture),
			formatDate(&r.DateEcheance),
			formatAmount(r.MontantTTC),
			formatAmount(r.MntRASIS),
			formatAmount(r.MntRASTVA),
			formatAmount(r.MntRG),
			formatAmount(r.MntNetAPayer),
			r.OrderReference,
			r.Statut.Label(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// writePaymentTermsCSV emits the payment delay report layout.
func writePaymentTermsCSV(w io.Writer, rows []ExportRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{
		"MOE", "Contrat", "Date facture", "Num facture", "Montant HT", "Montant TTC", "Fournisseur", "ICE", "RC",
		"Date execution", "Echeance contractuelle", "Date reglement", "Net a payer",
	}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write([]string{
			r.MOE,
			r.NumeroContrat,
			formatDate(&r.DateFacture),
			r.NumFacture,
			formatAmount(r.MontantHT),
			formatAmount(r.MontantTTC),
			r.BeneficiaireNom,
			r.CodeICE,
			r.RegistreCommerce,
			formatDate(r.DateExecution),
			r.ModePaiement,
			formatDate(r.DateReglement),
			formatAmount(r.MntNetAPayer),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// WriteOrdersCSV writes one line per payment order with its settlement date.
func WriteOrdersCSV(w io.Writer, orders []PaymentOrder) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Reference", "Beneficiaire", "Montant", "Date paiement"}); err != nil {
		return err
	}
	for _, o := range orders {
		if err := writer.Write([]string{o.Reference, o.BeneficiaireNom, formatAmount(o.Montant), formatDate(o.DateOperationBanque)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
