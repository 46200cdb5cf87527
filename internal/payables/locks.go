package payables

import "github.com/supratours/virements/internal/fieldlock"

// Fields still open once an order has been handed to the bank, and once
// the bank account has been debited.
var (
	orderSubmittedOpen = []string{"remis_a_banque", "date_operation_banque", "avis_debit_pdf", "compte_debite"}
	orderDebitedOpen   = []string{"avis_debit_pdf", "compte_debite"}
)

// Fields still open on an invoice attached to an order.
var (
	invoiceAttachedOpen = []string{"facture_pdf", "statut"}
	invoiceFiledOpen    = []string{"statut"}
	invoiceToggleOpen   = []string{"ordre_virement", "statut", "date_paiement"}
)

func orderSnapshot(o PaymentOrder) fieldlock.Snapshot {
	return fieldlock.Snapshot{
		{Name: "reference", Value: o.Reference},
		{Name: "type_ov", Value: o.TypeOV},
		{Name: "beneficiaire", Value: o.BeneficiaireID},
		{Name: "compte_tresorerie", Value: o.CompteTresorerieID},
		{Name: "compte_emetteur", Value: o.CompteEmetteurID},
		{Name: "date_ov", Value: o.DateOV},
		{Name: "valide_pour_signature", Value: o.ValidePourSignature},
		{Name: "date_remise_banque", Value: o.DateRemiseBanque},
		{Name: "ov_remis_banque_pdf", Value: o.OVRemisBanquePDF},
		{Name: "remis_a_banque", Value: o.RemisABanque},
		{Name: "date_operation_banque", Value: o.DateOperationBanque},
		{Name: "avis_debit_pdf", Value: o.AvisDebitPDF},
		{Name: "compte_debite", Value: o.CompteDebite},
	}
}

func invoiceSnapshot(inv Invoice) fieldlock.Snapshot {
	return fieldlock.Snapshot{
		{Name: "beneficiaire", Value: inv.BeneficiaireID},
		{Name: "contrat", Value: inv.ContratID},
		{Name: "num_facture", Value: inv.NumFacture},
		{Name: "date_facture", Value: inv.DateFacture},
		{Name: "date_echeance", Value: inv.DateEcheance},
		{Name: "montant_ht", Value: inv.MontantHT},
		{Name: "montant_tva", Value: inv.MontantTVA},
		{Name: "montant_ttc", Value: inv.MontantTTC},
		{Name: "penalite", Value: inv.Penalite},
		{Name: "mnt_ras_tva", Value: inv.MntRASTVA},
		{Name: "mnt_ras_is", Value: inv.MntRASIS},
		{Name: "mnt_rg", Value: inv.MntRG},
		{Name: "mnt_net_apayer", Value: inv.MntNetAPayer},
		{Name: "proforma_pdf", Value: inv.ProformaPDF},
		{Name: "facture_pdf", Value: inv.FacturePDF},
		{Name: "pv_reception_pdf", Value: inv.PVReceptionPDF},
		{Name: "date_execution", Value: inv.DateExecution},
		{Name: "ordre_virement", Value: inv.OrdreVirementID},
		{Name: "date_paiement", Value: inv.DatePaiement},
		{Name: "statut", Value: inv.Statut},
	}
}

// OrderOpenFields returns the fields that may still change on o, or nil
// when the order is fully editable.
func OrderOpenFields(o PaymentOrder) []string {
	switch {
	case o.CompteDebite:
		return orderDebitedOpen
	case o.RemisABanque:
		return orderSubmittedOpen
	default:
		return nil
	}
}

// checkOrderLock rejects changes to fields frozen by the stored milestones.
func checkOrderLock(old, next PaymentOrder) error {
	if old.RemisABanque {
		if err := fieldlock.Check(orderSnapshot(old), orderSnapshot(next), orderSubmittedOpen...); err != nil {
			return err
		}
	}
	if old.CompteDebite {
		if err := fieldlock.Check(orderSnapshot(old), orderSnapshot(next), orderDebitedOpen...); err != nil {
			return err
		}
	}
	return nil
}

// InvoiceOpenFields returns the fields that may still change through the
// regular save path, or nil when the invoice is not attached to an order.
func InvoiceOpenFields(inv Invoice) []string {
	if inv.OrdreVirementID == nil {
		return nil
	}
	if inv.FacturePDF == "" {
		return invoiceAttachedOpen
	}
	return invoiceFiledOpen
}

// checkInvoiceLock rejects changes to an invoice attached to an order.
// open overrides the default open set.
func checkInvoiceLock(old, next Invoice, open ...string) error {
	if old.OrdreVirementID == nil {
		return nil
	}
	if open == nil {
		open = InvoiceOpenFields(old)
	}
	return fieldlock.Check(invoiceSnapshot(old), invoiceSnapshot(next), open...)
}
