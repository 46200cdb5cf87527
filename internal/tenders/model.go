package tenders

import "time"

// Tender is a published call for tenders (appel d'offres).
type Tender struct {
	ID            int64     `json:"id"`
	Numero        string    `json:"numero"`
	Objet         string    `json:"objet"`
	DateOuverture time.Time `json:"date_ouverture"`
	AOPDF         string    `json:"ao_pdf"`
	Actif         bool      `json:"actif"`
	CreatedAt     time.Time `json:"created_at"`
}

// Input is the payload accepted on create and update.
type Input struct {
	Numero        string `json:"numero" validate:"required,max=16"`
	Objet         string `json:"objet" validate:"required,max=255"`
	DateOuverture string `json:"date_ouverture" validate:"required,datetime=2006-01-02"`
	Actif         *bool  `json:"actif"`
}
