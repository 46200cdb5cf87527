package payables

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/supratours/virements/internal/masterdata/contracts"
)

// Status enumerates invoice settlement statuses.
type Status string

const (
	StatusAttente       Status = "attente"
	StatusEtablissement Status = "etablissement"
	StatusSignature     Status = "signature"
	StatusBanque        Status = "banque"
	StatusPayee         Status = "payee"
)

// Label returns the display label of the status.
func (s Status) Label() string {
	switch s {
	case StatusAttente:
		return "En attente"
	case StatusEtablissement:
		return "OV en cours d'établissement"
	case StatusSignature:
		return "OV en cours de signature"
	case StatusBanque:
		return "OV remis à la banque"
	case StatusPayee:
		return "Facture payée"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAttente, StatusEtablissement, StatusSignature, StatusBanque, StatusPayee:
		return true
	}
	return false
}

// Payment order types.
const (
	TypeVirement  = "Virement"
	TypeTransfert = "Transfert"
)

// Invoice is a supplier invoice, optionally linked to a payment order.
type Invoice struct {
	ID              int64           `json:"id"`
	BeneficiaireID  int64           `json:"beneficiaire_id"`
	BeneficiaireNom string          `json:"beneficiaire_nom"`
	ContratID       *int64          `json:"contrat_id,omitempty"`
	NumeroContrat   string          `json:"numero_contrat,omitempty"`
	NumFacture      string          `json:"num_facture"`
	DateFacture     time.Time       `json:"date_facture"`
	DateEcheance    time.Time       `json:"date_echeance"`
	MontantHT       decimal.Decimal `json:"montant_ht"`
	MontantTVA      decimal.Decimal `json:"montant_tva"`
	MontantTTC      decimal.Decimal `json:"montant_ttc"`
	Penalite        decimal.Decimal `json:"penalite"`
	MntRASTVA       decimal.Decimal `json:"mnt_ras_tva"`
	MntRASIS        decimal.Decimal `json:"mnt_ras_is"`
	MntRG           decimal.Decimal `json:"mnt_rg"`
	MntNetAPayer    decimal.Decimal `json:"mnt_net_apayer"`
	ProformaPDF     string          `json:"proforma_pdf"`
	FacturePDF      string          `json:"facture_pdf"`
	PVReceptionPDF  string          `json:"pv_reception_pdf"`
	DateExecution   *time.Time      `json:"date_execution,omitempty"`
	OrdreVirementID *int64          `json:"ordre_virement_id,omitempty"`
	DatePaiement    *time.Time      `json:"date_paiement,omitempty"`
	Statut          Status          `json:"statut"`
	CreatedBy       *int64          `json:"created_by,omitempty"`
	UpdatedBy       *int64          `json:"updated_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreditNote (avoir) reduces the taxable base of an invoice.
type CreditNote struct {
	ID        int64           `json:"id"`
	FactureID int64           `json:"facture_id"`
	NumAvoir  string          `json:"num_avoir"`
	DateAvoir time.Time       `json:"date_avoir"`
	MontantHT decimal.Decimal `json:"montant_ht"`
	CreatedBy *int64          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaymentOrder (ordre de virement) settles the invoices linked to it.
type PaymentOrder struct {
	ID                  int64           `json:"id"`
	Reference           string          `json:"reference"`
	TypeOV              string          `json:"type_ov"`
	BeneficiaireID      int64           `json:"beneficiaire_id"`
	BeneficiaireNom     string          `json:"beneficiaire_nom"`
	CompteTresorerieID  *int64          `json:"compte_tresorerie_id,omitempty"`
	CompteEmetteurID    *int64          `json:"compte_emetteur_id,omitempty"`
	Montant             decimal.Decimal `json:"montant"`
	DateOV              time.Time       `json:"date_ov"`
	ValidePourSignature bool            `json:"valide_pour_signature"`
	DateRemiseBanque    *time.Time      `json:"date_remise_banque,omitempty"`
	OVRemisBanquePDF    string          `json:"ov_remis_banque_pdf"`
	RemisABanque        bool            `json:"remis_a_banque"`
	DateOperationBanque *time.Time      `json:"date_operation_banque,omitempty"`
	AvisDebitPDF        string          `json:"avis_debit_pdf"`
	CompteDebite        bool            `json:"compte_debite"`
	CreatedBy           *int64          `json:"created_by,omitempty"`
	UpdatedBy           *int64          `json:"updated_by,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ContractTerms carries the contract fields the calculator and invoice
// validation need.
type ContractTerms struct {
	ID             int64
	BeneficiaireID int64
	TauxTVA        decimal.Decimal
	TauxRASTVA     decimal.Decimal
	TauxRASIS      decimal.Decimal
	TauxRG         decimal.Decimal
	ModePaiement   contracts.PaymentTerm
}

// Rates returns the calculator rates of the contract.
func (c ContractTerms) Rates() *Rates {
	return &Rates{TVA: c.TauxTVA, RASTVA: c.TauxRASTVA, RASIS: c.TauxRASIS, RG: c.TauxRG}
}

// --- Input DTOs ---

// InvoiceInput is the payload accepted on invoice create and update. Files
// travel separately as multipart parts.
type InvoiceInput struct {
	BeneficiaireID  int64           `json:"beneficiaire_id" validate:"required,gt=0"`
	ContratID       *int64          `json:"contrat_id" validate:"omitempty,gt=0"`
	NumFacture      string          `json:"num_facture" validate:"required,max=50"`
	DateFacture     string          `json:"date_facture" validate:"required,datetime=2006-01-02"`
	DateEcheance    string          `json:"date_echeance" validate:"omitempty,datetime=2006-01-02"`
	DateExecution   string          `json:"date_execution" validate:"omitempty,datetime=2006-01-02"`
	MontantHT       decimal.Decimal `json:"montant_ht"`
	MontantTVA      decimal.Decimal `json:"montant_tva"`
	MontantTTC      decimal.Decimal `json:"montant_ttc"`
	Penalite        decimal.Decimal `json:"penalite"`
	OrdreVirementID *int64          `json:"ordre_virement_id" validate:"omitempty,gt=0"`
}

// OrderInput is the payload accepted on payment order create and update.
type OrderInput struct {
	Reference           string `json:"reference" validate:"max=15"`
	TypeOV              string `json:"type_ov" validate:"required,oneof=Virement Transfert"`
	BeneficiaireID      int64  `json:"beneficiaire_id" validate:"required,gt=0"`
	CompteTresorerieID  int64  `json:"compte_tresorerie_id" validate:"required,gt=0"`
	CompteEmetteurID    int64  `json:"compte_emetteur_id" validate:"required,gt=0"`
	DateOV              string `json:"date_ov" validate:"omitempty,datetime=2006-01-02"`
	ValidePourSignature bool   `json:"valide_pour_signature"`
	DateRemiseBanque    string `json:"date_remise_banque" validate:"omitempty,datetime=2006-01-02"`
	RemisABanque        bool   `json:"remis_a_banque"`
	DateOperationBanque string `json:"date_operation_banque" validate:"omitempty,datetime=2006-01-02"`
	CompteDebite        bool   `json:"compte_debite"`
}

// CreditNoteInput is the payload accepted when adding a credit note.
type CreditNoteInput struct {
	NumAvoir  string          `json:"num_avoir" validate:"required,max=50"`
	DateAvoir string          `json:"date_avoir" validate:"required,datetime=2006-01-02"`
	MontantHT decimal.Decimal `json:"montant_ht"`
}

// AssociationInput links or unlinks an invoice and a payment order.
type AssociationInput struct {
	OrdreVirementID int64 `json:"ordre_virement_id" validate:"required,gt=0"`
	IsAssociated    *bool `json:"is_associated" validate:"required"`
}

// Invoice attachment fields.
const (
	FieldProformaPDF    = "proforma_pdf"
	FieldFacturePDF     = "facture_pdf"
	FieldPVReceptionPDF = "pv_reception_pdf"
)

// Payment order attachment fields.
const (
	FieldOVRemisBanquePDF = "ov_remis_banque_pdf"
	FieldAvisDebitPDF     = "avis_debit_pdf"
)

// InvoiceFileFields lists the uploadable invoice fields.
var InvoiceFileFields = []string{FieldProformaPDF, FieldFacturePDF, FieldPVReceptionPDF}

// OrderFileFields lists the uploadable payment order fields.
var OrderFileFields = []string{FieldOVRemisBanquePDF, FieldAvisDebitPDF}

// InvoiceFilters narrows invoice listings.
type InvoiceFilters struct {
	BeneficiaryID *int64
	OrderID       *int64
	ContractID    *int64
	Status        Status
	Unpaid        bool
	DueBefore     *time.Time
	Search        string
	Limit         int
	Offset        int
}

// OrderFilters narrows payment order listings.
type OrderFilters struct {
	BeneficiaryID *int64
	TypeOV        string
	Search        string
	Limit         int
	Offset        int
}
