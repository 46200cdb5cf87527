package accounts

import "time"

// Account types.
const (
	TypeBancaire = "bancaire"
	TypeCaisse   = "caisse"
)

// Account is a bank account or a cash box owned by a beneficiary.
type Account struct {
	ID                int64     `json:"id"`
	BeneficiaireID    int64     `json:"beneficiaire_id"`
	BeneficiaireNom   string    `json:"beneficiaire_nom"`
	TypeCompte        string    `json:"type_compte"`
	Banque            string    `json:"banque"`
	RIB               string    `json:"rib"`
	AttestationRIBPDF string    `json:"attestation_rib_pdf"`
	NomCaisse         string    `json:"nom_caisse"`
	EmplacementCaisse string    `json:"emplacement_caisse"`
	DetenteurCaisse   string    `json:"detenteur_caisse"`
	Nantissement      bool      `json:"nantissement"`
	Actif             bool      `json:"actif"`
	CreatedBy         *int64    `json:"created_by,omitempty"`
	UpdatedBy         *int64    `json:"updated_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Label renders the account the way it appears on payment orders.
func (a Account) Label() string {
	if a.TypeCompte == TypeCaisse {
		return "Caisse: " + a.NomCaisse + " - " + a.EmplacementCaisse
	}
	return a.Banque + " - " + a.RIB
}

// Input is the payload accepted on create and update.
type Input struct {
	BeneficiaireID    int64  `json:"beneficiaire_id" validate:"required,gt=0"`
	TypeCompte        string `json:"type_compte" validate:"required,oneof=bancaire caisse"`
	Banque            string `json:"banque" validate:"max=50"`
	RIB               string `json:"rib" validate:"omitempty,len=24,numeric"`
	NomCaisse         string `json:"nom_caisse" validate:"max=50"`
	EmplacementCaisse string `json:"emplacement_caisse" validate:"max=100"`
	DetenteurCaisse   string `json:"detenteur_caisse" validate:"max=100"`
	Nantissement      bool   `json:"nantissement"`
	Actif             *bool  `json:"actif"`
}

// Option is a compact lookup row.
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}
