package customers

import (
	"fmt"

	"github.com/depot-ops/depot-ops/internal/platform/httpx"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", httpx.ErrNotFound)
	ErrInUse    = fmt.Errorf("%w: customer has orders", httpx.ErrConflict)
	ErrInvalid  = httpx.ErrValidation
)
