package payables

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/shared"
)

type invoiceDates struct {
	facture   time.Time
	echeance  *time.Time
	execution *time.Time
}

// checkInvoiceInput validates the payload on its own: tags, amounts and
// dates.
func checkInvoiceInput(in *InvoiceInput) (invoiceDates, error) {
	in.NumFacture = strings.TrimSpace(in.NumFacture)
	if err := shared.ValidateStruct(*in); err != nil {
		return invoiceDates{}, err
	}
	verr := &shared.ValidationError{}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"montant_ht", in.MontantHT},
		{"montant_tva", in.MontantTVA},
		{"penalite", in.Penalite},
	} {
		if f.value.IsNegative() {
			verr.Add(f.name, "must be greater than or equal to 0")
		}
	}
	if !in.MontantTTC.Equal(in.MontantHT.Add(in.MontantTVA)) {
		verr.Add("montant_ttc", "must equal montant_ht + montant_tva")
	}

	var dates invoiceDates
	var err error
	if dates.facture, err = shared.ParseDate("date_facture", in.DateFacture); err != nil {
		return invoiceDates{}, err
	}
	if dates.echeance, err = shared.ParseOptionalDate("date_echeance", in.DateEcheance); err != nil {
		return invoiceDates{}, err
	}
	if dates.execution, err = shared.ParseOptionalDate("date_execution", in.DateExecution); err != nil {
		return invoiceDates{}, err
	}
	if in.ContratID == nil && dates.echeance == nil {
		verr.Add("date_echeance", "is required when no contract is set")
	}
	if dates.echeance != nil && dates.echeance.Before(dates.facture) {
		verr.Add("date_echeance", "must be on or after date_facture")
	}
	return dates, verr.OrNil()
}

// checkInvoiceRules validates the invoice against its contract and files.
// has reports whether an attachment field is or will be filled.
func checkInvoiceRules(inv Invoice, terms *ContractTerms, has func(field string) bool) error {
	verr := &shared.ValidationError{}
	if terms != nil && terms.BeneficiaireID != inv.BeneficiaireID {
		verr.Add("contrat_id", "contract belongs to another beneficiary")
	}
	if !has(FieldProformaPDF) && !has(FieldFacturePDF) {
		verr.Add(FieldFacturePDF, "a proforma or final invoice PDF is required")
	}
	if terms != nil {
		if !has(FieldPVReceptionPDF) {
			verr.Add(FieldPVReceptionPDF, "is required for invoices under contract")
		}
		if inv.DateExecution == nil {
			verr.Add("date_execution", "is required for invoices under contract")
		}
	}
	return verr.OrNil()
}

type orderDates struct {
	ov        *time.Time
	remise    *time.Time
	operation *time.Time
}

func checkOrderInput(in *OrderInput) (orderDates, error) {
	in.Reference = strings.TrimSpace(in.Reference)
	if err := shared.ValidateStruct(*in); err != nil {
		return orderDates{}, err
	}
	var dates orderDates
	var err error
	if dates.ov, err = shared.ParseOptionalDate("date_ov", in.DateOV); err != nil {
		return orderDates{}, err
	}
	if dates.remise, err = shared.ParseOptionalDate("date_remise_banque", in.DateRemiseBanque); err != nil {
		return orderDates{}, err
	}
	if dates.operation, err = shared.ParseOptionalDate("date_operation_banque", in.DateOperationBanque); err != nil {
		return orderDates{}, err
	}
	return dates, nil
}

// checkOrderMilestones enforces the documents each milestone needs. has
// reports whether an attachment field is or will be filled.
func checkOrderMilestones(o PaymentOrder, has func(field string) bool) error {
	verr := &shared.ValidationError{}
	if o.RemisABanque && (!has(FieldOVRemisBanquePDF) || o.DateRemiseBanque == nil) {
		verr.Add("remis_a_banque", "attach the signed order with the bank receipt and set date_remise_banque first")
	}
	if o.CompteDebite && (!has(FieldAvisDebitPDF) || o.DateOperationBanque == nil) {
		verr.Add("compte_debite", "attach the debit advice and set date_operation_banque first")
	}
	return verr.OrNil()
}

func checkCreditNoteInput(in *CreditNoteInput) (time.Time, error) {
	in.NumAvoir = strings.TrimSpace(in.NumAvoir)
	if err := shared.ValidateStruct(*in); err != nil {
		return time.Time{}, err
	}
	if !in.MontantHT.IsPositive() {
		return time.Time{}, shared.NewValidationError("montant_ht", "must be greater than 0")
	}
	return shared.ParseDate("date_avoir", in.DateAvoir)
}

// checkAmounts rejects inputs whose derived amounts would go negative:
// credit notes above the invoice HT, a penalty above TTC, or deductions
// exceeding TTC.
func checkAmounts(in CalcInput, out Amounts) error {
	verr := &shared.ValidationError{}
	if in.Credit.GreaterThan(in.HT) {
		verr.Add("montant_ht", fmt.Sprintf("credit notes total %s exceeds the invoice amount %s", in.Credit.StringFixed(2), in.HT.StringFixed(2)))
	}
	if in.Penalty.GreaterThan(out.TTC) {
		verr.Add("penalite", "must not exceed montant_ttc")
	}
	if len(verr.Fields) == 0 && out.Net.IsNegative() {
		verr.Add("mnt_net_apayer", "deductions exceed montant_ttc")
	}
	return verr.OrNil()
}

// hasFile builds a presence check over stored keys and pending uploads.
func hasFile(keys map[string]string, files Uploads) func(string) bool {
	return func(field string) bool {
		if keys[field] != "" {
			return true
		}
		_, ok := files[field]
		return ok
	}
}
