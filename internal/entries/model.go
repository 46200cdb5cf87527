package entries

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of an entry line.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// Account is a chart-of-accounts entry.
type Account struct {
	ID       int64  `json:"id"`
	Numero   string `json:"numero"`
	Intitule string `json:"intitule"`
}

type AccountInput struct {
	Numero   string `json:"numero" validate:"required,max=20"`
	Intitule string `json:"intitule" validate:"required,max=255"`
}

// Operation is a miscellaneous accounting operation. It is valide once it
// carries lines and its debits equal its credits.
type Operation struct {
	ID             int64           `json:"id"`
	Libelle        string          `json:"libelle"`
	DateOperation  time.Time       `json:"date_operation"`
	AnneeComptable int             `json:"annee_comptable"`
	JustifPDF      string          `json:"justif_pdf"`
	Valide         bool            `json:"valide"`
	CreatedBy      *int64          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []Line          `json:"lignes,omitempty"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
}

// Line posts an amount to one account on one side.
type Line struct {
	ID             int64           `json:"id"`
	OperationID    int64           `json:"operation_id"`
	CompteID       int64           `json:"compte_id"`
	CompteNumero   string          `json:"compte_numero"`
	CompteIntitule string          `json:"compte_intitule"`
	Montant        decimal.Decimal `json:"montant"`
	Sens           Direction       `json:"sens_ecriture"`
}

type OperationInput struct {
	Libelle        string `json:"libelle" validate:"required,max=255"`
	AnneeComptable int    `json:"annee_comptable" validate:"required"`
}

type LineInput struct {
	CompteID int64  `json:"compte_id" validate:"required,gt=0"`
	Montant  decimal.Decimal `json:"montant"`
	Sens     string `json:"sens_ecriture" validate:"required,oneof=DEBIT CREDIT"`
}

// OperationFilters narrows operation listings.
type OperationFilters struct {
	Annee  int
	Valide *bool
	Search string
	Limit  int
	Offset int
}

// ImportResult counts the accounts touched by an import.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}
