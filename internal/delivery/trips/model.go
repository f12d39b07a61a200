// Package trips owns the order to trip assignment: trip rosters, their
// delivery sequence and the resolution of orders to delivered.
package trips

import (
	"time"

	"github.com/depot-ops/depot-ops/internal/sales/orders"
)

// Status is the lifecycle state of a trip.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is a known trip status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Direction moves an order one slot within a roster.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionUp, DirectionDown:
		return true
	default:
		return false
	}
}

// Trip is a delivery run. OrderIDs is the roster; position is delivery sequence.
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TripDate  time.Time `json:"trip_date"`
	Driver    string    `json:"driver"`
	Branch    string    `json:"branch"`
	OrderIDs  []string  `json:"order_ids"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Position returns the index of orderID in the roster, or -1.
func (t Trip) Position(orderID string) int {
	for i, id := range t.OrderIDs {
		if id == orderID {
			return i
		}
	}
	return -1
}

// without returns a copy of the roster with every id in drop removed.
func (t Trip) without(drop map[string]bool) []string {
	out := make([]string, 0, len(t.OrderIDs))
	for _, id := range t.OrderIDs {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

// OrderState is the slice of an order row the engine locks and decides on.
type OrderState struct {
	ID     string
	Branch string
	Status orders.Status
}

// DeliveryResult reports what ConfirmDelivery changed.
type DeliveryResult struct {
	OrderID        string        `json:"order_id"`
	TripID         string        `json:"trip_id,omitempty"`
	TripCompleted  bool          `json:"trip_completed"`
	EvidenceSource string        `json:"evidence_source,omitempty"`
	Order          *orders.Order `json:"order,omitempty"`
	Replayed       bool          `json:"replayed,omitempty"`
}

// CompletionResult reports what CompleteTrip changed.
type CompletionResult struct {
	Trip      *Trip    `json:"trip"`
	Delivered []string `json:"delivered"`
}
