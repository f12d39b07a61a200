package orders

import (
	"errors"
	"fmt"

	"github.com/depot-ops/depot-ops/internal/platform/httpx"
)

var (
	ErrNotFound          = fmt.Errorf("order %w", httpx.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: order already delivered", httpx.ErrConflict)
	ErrOnTrip            = fmt.Errorf("%w: order is assigned to a trip", httpx.ErrConflict)
	ErrNotPending        = fmt.Errorf("%w: only pending orders can be deleted", httpx.ErrConflict)
	ErrNoItems           = fmt.Errorf("%w: order needs at least one item", httpx.ErrValidation)
	ErrProductInactive   = fmt.Errorf("%w: product is not active", httpx.ErrValidation)
	ErrAlreadyPaid       = fmt.Errorf("%w: order already paid", httpx.ErrConflict)
	errIdempotentReplay  = errors.New("idempotent replay")
)
