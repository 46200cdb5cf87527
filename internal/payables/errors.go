package payables

import (
	"errors"
	"fmt"

	"github.com/supratours/virements/internal/shared"
)

var (
	ErrInvoiceNotFound    = fmt.Errorf("invoice not found: %w", shared.ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("payment order not found: %w", shared.ErrNotFound)
	ErrCreditNoteNotFound = fmt.Errorf("credit note not found: %w", shared.ErrNotFound)
	// ErrCompanyMissing is returned when COMPANY_NAME does not match a beneficiary.
	ErrCompanyMissing = fmt.Errorf("company beneficiary not found: %w", shared.ErrConfiguration)
)

// SideEffectError reports a best-effort step that failed after the state
// change was committed. The mutation itself succeeded.
type SideEffectError struct {
	Err     error
	Message string
}

func (e *SideEffectError) Error() string {
	return e.Message
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}

func wrapSideEffect(step string, err error) *SideEffectError {
	if err == nil {
		return nil
	}
	return &SideEffectError{
		Err:     err,
		Message: fmt.Sprintf("Changes saved but %s failed (%s)", step, err.Error()),
	}
}

// AsSideEffect reports whether err only carries post-commit warnings.
func AsSideEffect(err error) (*SideEffectError, bool) {
	var se *SideEffectError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
