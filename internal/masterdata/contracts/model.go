package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract types.
const (
	TypeMarche     = "marche"
	TypeCommande   = "commande"
	TypeContrat    = "contrat"
	TypeConvention = "convention"
)

// Contract binds a beneficiary to tax and withholding rates.
type Contract struct {
	ID              int64           `json:"id"`
	BeneficiaireID  int64           `json:"beneficiaire_id"`
	BeneficiaireNom string          `json:"beneficiaire_nom"`
	MOE             string          `json:"moe"`
	TypeContrat     string          `json:"type_contrat"`
	NumeroContrat   string          `json:"numero_contrat"`
	Objet           string          `json:"objet"`
	DateDebut       time.Time       `json:"date_debut"`
	DateFin         time.Time       `json:"date_fin"`
	ModePaiement    PaymentTerm     `json:"mode_paiement"`
	MontantHT       decimal.Decimal `json:"montant_ht"`
	TauxTVA         decimal.Decimal `json:"taux_tva"`
	TauxRASTVA      decimal.Decimal `json:"taux_ras_tva"`
	TauxRASIS       decimal.Decimal `json:"taux_ras_is"`
	TauxRG          decimal.Decimal `json:"taux_rg"`
	ContratPDF      string          `json:"contrat_pdf"`
	Actif           bool            `json:"actif"`
	CreatedBy       *int64          `json:"created_by,omitempty"`
	UpdatedBy       *int64          `json:"updated_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Input is the payload accepted on create and update.
type Input struct {
	BeneficiaireID int64           `json:"beneficiaire_id" validate:"required,gt=0"`
	MOE            string          `json:"moe" validate:"omitempty,oneof=fm services tourisme cfo support"`
	TypeContrat    string          `json:"type_contrat" validate:"omitempty,oneof=marche commande contrat convention"`
	NumeroContrat  string          `json:"numero_contrat" validate:"required,max=20"`
	Objet          string          `json:"objet" validate:"required,max=500"`
	DateDebut      string          `json:"date_debut" validate:"required,datetime=2006-01-02"`
	DateFin        string          `json:"date_fin" validate:"required,datetime=2006-01-02"`
	ModePaiement   string          `json:"mode_paiement"`
	MontantHT      decimal.Decimal `json:"montant_ht"`
	TauxTVA        decimal.Decimal `json:"taux_tva"`
	TauxRASTVA     decimal.Decimal `json:"taux_ras_tva"`
	TauxRASIS      decimal.Decimal `json:"taux_ras_is"`
	TauxRG         decimal.Decimal `json:"taux_rg"`
	Actif          *bool           `json:"actif"`
}

// Option is a compact lookup row.
type Option struct {
	ID            int64  `json:"id"`
	NumeroContrat string `json:"numero_contrat"`
	Objet         string `json:"objet"`
}

// Balance reports how much of a purchase order remains to be invoiced.
type Balance struct {
	Contract
	MontantFacture decimal.Decimal `json:"montant_facture"`
	Reste          decimal.Decimal `json:"reste"`
}
