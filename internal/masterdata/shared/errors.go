package shared

import (
	"fmt"

	core "github.com/supratours/virements/internal/shared"
)

var (
	ErrNotFound  = core.ErrNotFound
	ErrDuplicate = core.ErrDuplicate
	ErrInvalidID = fmt.Errorf("invalid ID: %w", core.ErrValidation)
	// ErrInUse is returned when a record is still referenced elsewhere.
	ErrInUse = fmt.Errorf("record still referenced: %w", core.ErrConflict)
)
