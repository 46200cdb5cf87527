package contracts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	core "github.com/supratours/virements/internal/shared"
)

var rateCeilings = []struct {
	field string
	max   int64
	get   func(Input) decimal.Decimal
}{
	{"taux_tva", 25, func(in Input) decimal.Decimal { return in.TauxTVA }},
	{"taux_ras_tva", 100, func(in Input) decimal.Decimal { return in.TauxRASTVA }},
	{"taux_ras_is", 40, func(in Input) decimal.Decimal { return in.TauxRASIS }},
	{"taux_rg", 10, func(in Input) decimal.Decimal { return in.TauxRG }},
}

func normalize(in Input) Input {
	in.NumeroContrat = strings.TrimSpace(in.NumeroContrat)
	in.Objet = strings.TrimSpace(in.Objet)
	if in.MOE == "" {
		in.MOE = "fm"
	}
	if in.TypeContrat == "" {
		in.TypeContrat = TypeMarche
	}
	return in
}

// validate checks tags, rate bounds and the date range, returning the
// parsed dates and payment term.
func validate(in Input) (start, end time.Time, term PaymentTerm, err error) {
	if err = core.ValidateStruct(in); err != nil {
		return
	}
	verr := &core.ValidationError{}
	if in.MontantHT.IsNegative() {
		verr.Add("montant_ht", "must be greater than or equal to 0")
	}
	for _, c := range rateCeilings {
		v := c.get(in)
		if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(c.max)) {
			verr.Add(c.field, "must be between 0 and "+decimal.NewFromInt(c.max).String())
		}
	}
	var termErr error
	term, termErr = ParsePaymentTerm(in.ModePaiement)
	if termErr != nil {
		verr.Add("mode_paiement", termErr.Error())
	}
	start, _ = time.Parse(core.DateLayout, in.DateDebut)
	end, _ = time.Parse(core.DateLayout, in.DateFin)
	if start.After(end) {
		verr.Add("date_debut", "must be on or before date_fin")
	}
	err = verr.OrNil()
	return
}
