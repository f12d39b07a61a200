package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/depot-ops/depot-ops/internal/masterdata/shared"
)

// Product is an item on the depot price list. Refill products carry the
// customer's per-unit discount on orders.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsRefill  bool            `json:"is_refill"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Orderable reports whether the product can be put on a new order line.
func (p Product) Orderable() bool {
	return p.Status == shared.StatusActive
}
