package branches

import (
	"time"
)

// Branch is a depot location. Orders, customers and profiles refer to it by name.
type Branch struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
