package products

import (
	"fmt"

	"github.com/depot-ops/depot-ops/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if p.Name == "" {
		return shared.Required("product name")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}
	if !shared.ValidStatus(p.Status) {
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, p.Status)
	}
	return nil
}
