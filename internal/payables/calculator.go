package payables

import "github.com/shopspring/decimal"

// RASTVAThreshold is the TTC amount above which VAT withholding applies.
var RASTVAThreshold = decimal.NewFromInt(5000)

var hundred = decimal.NewFromInt(100)

// Rates are contract percentages, expressed out of 100.
type Rates struct {
	TVA    decimal.Decimal
	RASTVA decimal.Decimal
	RASIS  decimal.Decimal
	RG     decimal.Decimal
}

// CalcInput feeds Compute. Contract is nil for invoices without contract,
// in which case the supplied TVA is used as is.
type CalcInput struct {
	HT       decimal.Decimal
	TVA      decimal.Decimal
	Credit   decimal.Decimal
	Penalty  decimal.Decimal
	Contract *Rates
}

// Amounts are the derived invoice amounts, rounded to cents.
type Amounts struct {
	Base   decimal.Decimal
	TVA    decimal.Decimal
	TTC    decimal.Decimal
	RASTVA decimal.Decimal
	RASIS  decimal.Decimal
	RG     decimal.Decimal
	Net    decimal.Decimal
}

// Compute derives VAT, withholdings, retained guarantee and net payable.
// Every intermediate amount is rounded half away from zero to 2 decimals
// before it feeds the next one, so Net always equals TTC minus the
// displayed deductions.
func Compute(in CalcInput) Amounts {
	base := in.HT.Sub(in.Credit).Round(2)
	penalty := in.Penalty.Round(2)

	if in.Contract == nil {
		vat := in.TVA.Round(2)
		ttc := base.Add(vat)
		return Amounts{
			Base:   base,
			TVA:    vat,
			TTC:    ttc,
			RASTVA: decimal.Zero,
			RASIS:  decimal.Zero,
			RG:     decimal.Zero,
			Net:    ttc.Sub(penalty),
		}
	}

	r := in.Contract
	vat := percent(base, r.TVA)
	ttc := base.Add(vat)
	rasTVA := decimal.Zero
	if ttc.GreaterThan(RASTVAThreshold) {
		rasTVA = percent(vat, r.RASTVA)
	}
	rasIS := percent(base, r.RASIS)
	rg := percent(ttc, r.RG)
	net := ttc.Sub(rasTVA.Add(rasIS).Add(rg).Add(penalty))
	return Amounts{
		Base:   base,
		TVA:    vat,
		TTC:    ttc,
		RASTVA: rasTVA,
		RASIS:  rasIS,
		RG:     rg,
		Net:    net,
	}
}

func percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}

// apply copies computed amounts onto the invoice.
func (a Amounts) apply(inv *Invoice) {
	inv.MontantTVA = a.TVA
	inv.MontantTTC = a.TTC
	inv.MntRASTVA = a.RASTVA
	inv.MntRASIS = a.RASIS
	inv.MntRG = a.RG
	inv.MntNetAPayer = a.Net
}
