package shared

import "strings"

// Scope values with special meaning for branch visibility.
const (
	// AllBranches grants cross-branch visibility.
	AllBranches = "All"
	// SharedScope marks trips visible to every branch.
	SharedScope = "Shared"
)

// Role is the closed set of depot roles.
type Role string

const (
	RoleSales    Role = "sales"
	RoleOperator Role = "operator"
	RoleFinance  Role = "finance"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSales, RoleOperator, RoleFinance, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor identifies who performs an operation and which branches they see.
type Actor struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Branch string `json:"branch"`
}

// AllBranches reports whether the actor has cross-branch visibility.
func (a Actor) AllBranches() bool {
	return strings.EqualFold(strings.TrimSpace(a.Branch), AllBranches)
}

// SeesBranch reports whether orders or customers of branch are visible to the actor.
func (a Actor) SeesBranch(branch string) bool {
	if a.AllBranches() {
		return true
	}
	return strings.TrimSpace(branch) == strings.TrimSpace(a.Branch)
}

// BranchFilter returns the branch to filter on, or "" for every branch.
func (a Actor) BranchFilter() string {
	if a.AllBranches() {
		return ""
	}
	return strings.TrimSpace(a.Branch)
}
