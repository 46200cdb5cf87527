package entries

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	core "github.com/supratours/virements/internal/shared"
)

// Totals sums the debit and credit sides.
func Totals(lines []Line) (debit, credit decimal.Decimal) {
	for _, l := range lines {
		switch l.Sens {
		case Debit:
			debit = debit.Add(l.Montant)
		case Credit:
			credit = credit.Add(l.Montant)
		}
	}
	return debit, credit
}

// Balanced reports whether an operation with these lines is valide.
func Balanced(lines []Line) bool {
	if len(lines) == 0 {
		return false
	}
	debit, credit := Totals(lines)
	return debit.Equal(credit)
}

// CheckYear accepts the current fiscal year and the previous one.
func CheckYear(year int, now time.Time) error {
	current := now.Year()
	if year != current && year != current-1 {
		return core.NewValidationError("annee_comptable", fmt.Sprintf("must be %d or %d", current, current-1))
	}
	return nil
}
