package beneficiaries

import (
	"time"
)

// Beneficiary is a payee or the company itself.
type Beneficiary struct {
	ID                 int64     `json:"id"`
	RaisonSociale      string    `json:"raison_sociale"`
	Adresse            string    `json:"adresse"`
	Ville              string    `json:"ville"`
	Telephone          string    `json:"telephone"`
	RegistreCommerce   string    `json:"registre_commerce"`
	IdentifiantFiscale string    `json:"identifiant_fiscale"`
	CodeICE            string    `json:"code_ice"`
	Actif              bool      `json:"actif"`
	CreatedBy          *int64    `json:"created_by,omitempty"`
	UpdatedBy          *int64    `json:"updated_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Input is the payload accepted on create and update.
type Input struct {
	RaisonSociale      string `json:"raison_sociale" validate:"required,max=100"`
	Adresse            string `json:"adresse" validate:"max=50"`
	Ville              string `json:"ville" validate:"max=20"`
	Telephone          string `json:"telephone" validate:"omitempty,len=10,numeric"`
	RegistreCommerce   string `json:"registre_commerce" validate:"required,max=20"`
	IdentifiantFiscale string `json:"identifiant_fiscale" validate:"required,max=20"`
	CodeICE            string `json:"code_ice" validate:"required,len=15"`
	Actif              *bool  `json:"actif"`
}

// Order types drive the beneficiary lookup.
const (
	TypeVirement  = "Virement"
	TypeTransfert = "Transfert"
)

// Option is a compact lookup row.
type Option struct {
	ID            int64  `json:"id"`
	RaisonSociale string `json:"raison_sociale"`
}
