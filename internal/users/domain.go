package users

import (
	"time"

	"github.com/depot-ops/depot-ops/internal/shared"
)

// User represents a profile managed by admins.
type User struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      shared.Role `json:"role"`
	Branch    string      `json:"branch"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewUser carries the fields required to create a profile.
type NewUser struct {
	Email    string      `json:"email" validate:"required,email"`
	Name     string      `json:"name" validate:"required,max=120"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     shared.Role `json:"role" validate:"required"`
	Branch   string      `json:"branch" validate:"required"`
}

// UserUpdate changes a profile's name, role or branch. Nil fields are left alone.
type UserUpdate struct {
	Name   *string      `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Role   *shared.Role `json:"role,omitempty"`
	Branch *string      `json:"branch,omitempty" validate:"omitempty,min=1"`
}
