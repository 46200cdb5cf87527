package notify

import (
	"context"

	"github.com/supratours/virements/internal/internships"
	"github.com/supratours/virements/internal/omra"
	"github.com/supratours/virements/internal/tenders"
	"github.com/supratours/virements/internal/view"
	"github.com/supratours/virements/jobs"
)

var (
	_ tenders.Notifier     = (*Service)(nil)
	_ omra.Notifier        = (*Service)(nil)
	_ internships.Notifier = (*Service)(nil)
)

// TenderCreated announces a new call for tenders.
func (s *Service) TenderCreated(ctx context.Context, t tenders.Tender) error {
	return s.RecordCreated(ctx, s.recipients.TenderTo, s.recipients.TenderCc, "Nouveau AO",
		"Un nouvel appel d'offres a été publié par "+actorLabel(ctx)+".",
		[]Line{
			{Label: "Numéro", Value: t.Numero},
			{Label: "Objet", Value: t.Objet},
			{Label: "Date d'ouverture", Value: view.FormatDate(t.DateOuverture)},
		})
}

// OmraCreated announces a new omra departure.
func (s *Service) OmraCreated(ctx context.Context, e omra.Event) error {
	return s.RecordCreated(ctx, s.recipients.OmraTo, s.recipients.OmraCc, "Nouveau Evenement Omra",
		"Un nouvel événement Omra a été publié par "+actorLabel(ctx)+".",
		[]Line{
			{Label: "Objet", Value: e.Objet},
			{Label: "Date de début", Value: view.FormatDate(e.DateDebut)},
		})
}

// ApplicationReceived acknowledges an internship application to the
// applicant, with the HR list in blind copy.
func (s *Service) ApplicationReceived(ctx context.Context, a internships.Application) error {
	var to []string
	if a.Email != "" {
		to = []string{a.Email}
	}
	if len(to) == 0 && len(s.recipients.InternshipBcc) == 0 {
		return nil
	}
	data := struct {
		Prenom  string
		Nom     string
		Ville   string
		Periode string
	}{Prenom: a.Prenom, Nom: a.Nom, Ville: a.VilleNom, Periode: a.PeriodeNom}
	payload := jobs.SendEmailPayload{To: to, Bcc: s.recipients.InternshipBcc, Subject: "Candidature de stage"}
	return s.send(ctx, payload, "mail/internship_ack", data)
}
