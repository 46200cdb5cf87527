package beneficiaries

import (
	"strings"

	core "github.com/supratours/virements/internal/shared"
)

func normalize(in Input) Input {
	in.RaisonSociale = strings.TrimSpace(in.RaisonSociale)
	in.Adresse = strings.TrimSpace(in.Adresse)
	in.Ville = strings.TrimSpace(in.Ville)
	in.Telephone = strings.TrimSpace(in.Telephone)
	in.RegistreCommerce = strings.TrimSpace(in.RegistreCommerce)
	in.IdentifiantFiscale = strings.TrimSpace(in.IdentifiantFiscale)
	in.CodeICE = strings.TrimSpace(in.CodeICE)
	return in
}

func (s *Service) validate(in Input) error {
	return core.ValidateStruct(in)
}
