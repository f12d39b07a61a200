package shared

import (
	"errors"
	"fmt"

	"github.com/depot-ops/depot-ops/internal/platform/httpx"
)

var (
	ErrNotFound      = httpx.ErrNotFound
	ErrDuplicate     = httpx.ErrDuplicate
	ErrValidation    = httpx.ErrValidation
	ErrInvalidID     = fmt.Errorf("%w: invalid ID", httpx.ErrValidation)
	ErrRequiredField = errors.New("field is required")
)

// Required wraps ErrRequiredField for field so handlers report a 400.
func Required(field string) error {
	return fmt.Errorf("%w: %s %w", ErrValidation, field, ErrRequiredField)
}
