package contracts

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PaymentTerm is a contract payment code such as 60J (sixty days) or
// 60JFDM (sixty days, end of month).
type PaymentTerm string

// DefaultPaymentTerm applies when a contract does not state one.
const DefaultPaymentTerm PaymentTerm = "90JFDM"

// PaymentTerms lists the accepted codes.
var PaymentTerms = []PaymentTerm{"30J", "30JFDM", "60J", "60JFDM", "90J", "90JFDM", "120J", "120JFDM"}

// ParsePaymentTerm validates a code. An empty code yields the default.
func ParsePaymentTerm(raw string) (PaymentTerm, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return DefaultPaymentTerm, nil
	}
	for _, t := range PaymentTerms {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown payment term %q", raw)
}

// Days returns the number of days in the term.
func (p PaymentTerm) Days() int {
	s := strings.TrimSuffix(string(p), "FDM")
	s = strings.TrimSuffix(s, "J")
	n, _ := strconv.Atoi(s)
	return n
}

// EndOfMonth reports whether the due date rolls to the end of the month.
func (p PaymentTerm) EndOfMonth() bool {
	return strings.HasSuffix(string(p), "FDM")
}

// DueDate computes the due date of an invoice dated from.
func (p PaymentTerm) DueDate(from time.Time) time.Time {
	due := from.AddDate(0, 0, p.Days())
	if !p.EndOfMonth() {
		return due
	}
	y, m, _ := due.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, due.Location())
}
