package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a delivery address with its WhatsApp contact and the per-unit
// discount applied to refill products.
type Customer struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	WhatsApp  string          `json:"whatsapp"`
	Branch    string          `json:"branch"`
	Discount  decimal.Decimal `json:"discount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
