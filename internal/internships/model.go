package internships

import "time"

// City is a selectable town for the applicant's home and school.
type City struct {
	ID    int64  `json:"id"`
	Ville string `json:"ville"`
	Actif bool   `json:"actif"`
}

// Period is an internship session applicants choose from.
type Period struct {
	ID      int64  `json:"id"`
	Periode string `json:"periode"`
	Actif   bool   `json:"actif"`
}

// Application is an internship candidacy submitted from the public site.
type Application struct {
	ID            int64     `json:"id"`
	Civilite      string    `json:"civilite"`
	Nom           string    `json:"nom"`
	Prenom        string    `json:"prenom"`
	CIN           string    `json:"cin"`
	DateNaissance time.Time `json:"date_naissance"`
	Tel           string    `json:"tel"`
	Email         string    `json:"email"`
	Adresse       string    `json:"adresse"`
	VilleID       int64     `json:"ville_id"`
	VilleNom      string    `json:"ville_nom"`
	Niveau        string    `json:"niveau"`
	Ecole         string    `json:"ecole"`
	Specialite    string    `json:"specialite"`
	VilleEcoleID  int64     `json:"ville_ecole_id"`
	VilleEcoleNom string    `json:"ville_ecole_nom"`
	PeriodeID     int64     `json:"periode_id"`
	PeriodeNom    string    `json:"periode_nom"`
	CVPDF         string    `json:"cv_pdf"`
	LettrePDF     string    `json:"lettre_pdf"`
	Traite        bool      `json:"traite"`
	Commentaire   *string   `json:"commentaire,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ApplicationInput is the public submission payload.
type ApplicationInput struct {
	Civilite      string `json:"civilite" validate:"required,max=10"`
	Nom           string `json:"nom" validate:"required,max=30"`
	Prenom        string `json:"prenom" validate:"required,max=30"`
	CIN           string `json:"cin" validate:"required,max=10,alphanum"`
	DateNaissance string `json:"date_naissance" validate:"required,datetime=2006-01-02"`
	Tel           string `json:"tel" validate:"required,len=10,numeric"`
	Email         string `json:"email" validate:"required,email"`
	Adresse       string `json:"adresse" validate:"required"`
	VilleID       int64  `json:"ville_id" validate:"required,gt=0"`
	Niveau        string `json:"niveau" validate:"required,max=30"`
	Ecole         string `json:"ecole" validate:"required,max=50"`
	Specialite    string `json:"specialite" validate:"required,max=50"`
	VilleEcoleID  int64  `json:"ville_ecole_id" validate:"required,gt=0"`
	PeriodeID     int64  `json:"periode_id" validate:"required,gt=0"`
}

// ReviewInput records the back-office follow-up of an application.
type ReviewInput struct {
	Traite      bool    `json:"traite"`
	Commentaire *string `json:"commentaire"`
}

// Filters narrows application listings.
type Filters struct {
	Traite    *bool
	PeriodeID *int64
	Search    string
	Limit     int
	Offset    int
}
