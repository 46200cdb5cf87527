// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/supratours/virements/internal/fieldlock"
	"github.com/supratours/virements/internal/shared"
)

// Sentinel errors re-exported for handlers that do not import shared.
var (
	ErrNotFound     = shared.ErrNotFound
	ErrDuplicate    = shared.ErrDuplicate
	ErrValidation   = shared.ErrValidation
	ErrForbidden    = shared.ErrForbidden
	ErrUnauthorized = shared.ErrUnauthorized
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validationErr *shared.ValidationError
		lockedErr     *fieldlock.LockedFieldError
		duplicateErr  *shared.DuplicateError
	)
	switch {
	case errors.As(err, &lockedErr):
		ProblemWithFields(w, http.StatusConflict, "Locked Field", err.Error(), map[string]string{lockedErr.Field: lockedErr.Error()})
	case errors.As(err, &validationErr):
		ProblemWithFields(w, http.StatusUnprocessableEntity, "Validation Failed", validationErr.Message, validationErr.Fields)
	case errors.As(err, &duplicateErr):
		ProblemWithFields(w, http.StatusConflict, "Duplicate", err.Error(), map[string]string{duplicateErr.Field: err.Error()})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConfiguration):
		Problem(w, http.StatusInternalServerError, "Configuration Error", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
