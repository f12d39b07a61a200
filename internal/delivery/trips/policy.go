package trips

import (
	"fmt"
	"strings"

	"github.com/depot-ops/depot-ops/internal/shared"
)

// Mode selects the trip model of a deployment.
type Mode string

const (
	// ModeShared keeps one cross-branch roster pool with append-only assignment.
	ModeShared Mode = "shared"
	// ModeBranch gives every branch private trips that operators may reorder.
	ModeBranch Mode = "branch"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeShared, ModeBranch:
		return true
	default:
		return false
	}
}

// ParseMode maps a config value onto a Mode. Empty means shared.
func ParseMode(v string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(v)))
	if m == "" {
		return ModeShared, nil
	}
	if !m.IsValid() {
		return "", fmt.Errorf("unknown trip mode %q", v)
	}
	return m, nil
}

// Policy holds the mode-dependent rules of the engine.
type Policy struct {
	Mode Mode
}

// ScopeFor returns the branch scope a trip created by actor belongs to.
// requested is only consulted for cross-branch actors in branch mode.
func (p Policy) ScopeFor(actor shared.Actor, requested string) (string, error) {
	if p.Mode == ModeShared {
		return shared.SharedScope, nil
	}
	if !actor.AllBranches() {
		return actor.BranchFilter(), nil
	}
	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, shared.AllBranches) || requested == shared.SharedScope {
		return "", fmt.Errorf("%w: branch is required to create a trip", ErrInvalidInput)
	}
	return requested, nil
}

// Visible reports whether actor may see and act on trip.
func (p Policy) Visible(actor shared.Actor, trip Trip) bool {
	if trip.Branch == shared.SharedScope {
		return true
	}
	return actor.SeesBranch(trip.Branch)
}

// AllowsReorder reports whether rosters may be rearranged by hand.
func (p Policy) AllowsReorder() bool {
	return p.Mode == ModeBranch
}

// AssignStatus returns the trip status after an assignment, or
// ErrInvalidTransition when the trip cannot take new orders.
func (p Policy) AssignStatus(trip Trip) (Status, error) {
	switch trip.Status {
	case StatusPending, StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		if p.Mode == ModeShared && len(trip.OrderIDs) == 0 {
			return StatusInProgress, nil
		}
		return "", fmt.Errorf("%w: trip %s is completed", ErrInvalidTransition, trip.Name)
	default:
		return "", fmt.Errorf("%w: trip %s has unknown status %q", ErrInvalidTransition, trip.Name, trip.Status)
	}
}
