package auth

import (
	"time"

	"github.com/depot-ops/depot-ops/internal/shared"
)

// Profile status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Profile represents a signed-in account with its role and branch.
type Profile struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         shared.Role
	Branch       string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the profile may sign in.
func (p Profile) IsActive() bool {
	return p.Status == StatusActive
}

// Actor projects the profile into the identity carried by requests.
func (p Profile) Actor() shared.Actor {
	return shared.Actor{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role, Branch: p.Branch}
}
