package payables

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var frenchUnits = [...]string{
	"zéro", "un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf",
	"dix", "onze", "douze", "treize", "quatorze", "quinze", "seize",
}

var frenchTens = [...]string{"", "dix", "vingt", "trente", "quarante", "cinquante", "soixante"}

// AmountInWords spells an amount the way it is written on payment orders:
// "Mille deux cents Dirhams et cinquante Centimes".
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Abs().Round(2)
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()
	out := capitalize(frenchNumber(whole.IntPart())) + " Dirhams"
	if cents > 0 {
		out += " et " + frenchNumber(cents) + " Centimes"
	}
	return out
}

func frenchNumber(n int64) string {
	if n == 0 {
		return frenchUnits[0]
	}
	var parts []string
	if b := n / 1_000_000_000; b > 0 {
		parts = append(parts, scaled(b, "milliard"))
		n %= 1_000_000_000
	}
	if m := n / 1_000_000; m > 0 {
		parts = append(parts, scaled(m, "million"))
		n %= 1_000_000
	}
	if t := n / 1000; t > 0 {
		if t == 1 {
			parts = append(parts, "mille")
		} else {
			parts = append(parts, belowThousand(t, false)+" mille")
		}
		n %= 1000
	}
	if n > 0 {
		parts = append(parts, belowThousand(n, true))
	}
	return strings.Join(parts, " ")
}

func scaled(n int64, unit string) string {
	word := belowThousand(n, false) + " " + unit
	if n > 1 {
		word += "s"
	}
	return word
}

// belowThousand spells 1..999. final reports whether the group ends the
// number, which is when "cents" and "quatre-vingts" take their plural.
func belowThousand(n int64, final bool) string {
	hundreds, rest := n/100, n%100
	if hundreds == 0 {
		return belowHundred(rest, final)
	}
	word := "cent"
	if hundreds > 1 {
		word = frenchUnits[hundreds] + " cent"
		if rest == 0 && final {
			word += "s"
		}
	}
	if rest == 0 {
		return word
	}
	return word + " " + belowHundred(rest, final)
}

func belowHundred(n int64, final bool) string {
	switch {
	case n <= 16:
		return frenchUnits[n]
	case n < 20:
		return "dix-" + frenchUnits[n-10]
	}
	tens, unit := n/10, n%10
	switch tens {
	case 7:
		if unit == 1 {
			return "soixante et onze"
		}
		return "soixante-" + belowHundred(10+unit, final)
	case 8:
		if unit == 0 {
			if final {
				return "quatre-vingts"
			}
			return "quatre-vingt"
		}
		return "quatre-vingt-" + frenchUnits[unit]
	case 9:
		return "quatre-vingt-" + belowHundred(10+unit, final)
	}
	word := frenchTens[tens]
	switch unit {
	case 0:
		return word
	case 1:
		return word + " et un"
	default:
		return word + "-" + frenchUnits[unit]
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
