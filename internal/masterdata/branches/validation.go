package branches

import (
	"fmt"
	"strings"

	"github.com/depot-ops/depot-ops/internal/masterdata/shared"
	internalShared "github.com/depot-ops/depot-ops/internal/shared"
)

func (s *Service) validate(b Branch) error {
	if b.Name == "" {
		return shared.Required("branch name")
	}
	// "All" and "Shared" are scope markers, not branches.
	if strings.EqualFold(b.Name, internalShared.AllBranches) || strings.EqualFold(b.Name, internalShared.SharedScope) {
		return fmt.Errorf("%w: branch name %q is reserved", shared.ErrValidation, b.Name)
	}
	if !shared.ValidStatus(b.Status) {
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, b.Status)
	}
	return nil
}
