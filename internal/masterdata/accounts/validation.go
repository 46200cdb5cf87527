package accounts

import (
	"strings"

	core "github.com/supratours/virements/internal/shared"
)

func normalize(in Input) Input {
	in.TypeCompte = strings.TrimSpace(in.TypeCompte)
	if in.TypeCompte == "" {
		in.TypeCompte = TypeBancaire
	}
	in.Banque = strings.TrimSpace(in.Banque)
	in.RIB = strings.ReplaceAll(strings.TrimSpace(in.RIB), " ", "")
	in.NomCaisse = strings.TrimSpace(in.NomCaisse)
	in.EmplacementCaisse = strings.TrimSpace(in.EmplacementCaisse)
	in.DetenteurCaisse = strings.TrimSpace(in.DetenteurCaisse)
	return in
}

// validate applies tag rules then the type-dependent requirements.
func validate(in Input) error {
	if err := core.ValidateStruct(in); err != nil {
		return err
	}
	verr := &core.ValidationError{}
	switch in.TypeCompte {
	case TypeBancaire:
		if in.Banque == "" {
			verr.Add("banque", "is required for a bank account")
		}
		if in.RIB == "" {
			verr.Add("rib", "is required for a bank account")
		}
	case TypeCaisse:
		if in.NomCaisse == "" {
			verr.Add("nom_caisse", "is required for a cash box")
		}
		if in.EmplacementCaisse == "" {
			verr.Add("emplacement_caisse", "is required for a cash box")
		}
	}
	return verr.OrNil()
}
