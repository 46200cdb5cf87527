package omra

import "time"

// Event is an Omra departure advertised on the public site.
type Event struct {
	ID        int64     `json:"id"`
	Objet     string    `json:"objet"`
	DateDebut time.Time `json:"date_debut"`
	Image     string    `json:"image"`
	Actif     bool      `json:"actif"`
	CreatedAt time.Time `json:"created_at"`
}

type Input struct {
	Objet     string `json:"objet" validate:"required,max=15"`
	DateDebut string `json:"date_debut" validate:"required,datetime=2006-01-02"`
	Actif     *bool  `json:"actif"`
}
