package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the delivery state of an order. Transitions belong to the trip engine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusDelivered Status = "delivered"
)

// IsValid reports whether s is a known order status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusDelivered:
		return true
	default:
		return false
	}
}

// Editable reports whether the order's items and customer may still change.
func (s Status) Editable() bool {
	switch s {
	case StatusPending, StatusScheduled:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks whether an order has been paid.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// IsValid reports whether p is a known payment status.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentUnpaid, PaymentPaid:
		return true
	default:
		return false
	}
}

// Order is a customer order with its line items. Customer fields are copied
// at creation and edit so later customer changes do not rewrite history.
type Order struct {
	ID               string          `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerAddress  string          `json:"customer_address"`
	CustomerWhatsApp string          `json:"customer_whatsapp"`
	CustomerDiscount decimal.Decimal `json:"customer_discount"`
	Branch           string          `json:"branch"`
	Items            []Item          `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DeliveryDate     time.Time       `json:"delivery_date"`
	Status           Status          `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaidDate         *time.Time      `json:"paid_date,omitempty"`
	PaymentEvidence  *string         `json:"payment_evidence,omitempty"`
	DeliveredDate    *time.Time      `json:"delivered_date,omitempty"`
	DeliveryEvidence *string         `json:"delivery_evidence,omitempty"`
	CreatedBy        int64           `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Item is one order line. Discount is per unit.
type Item struct {
	ProductID int64           `json:"product_id"`
	Product   string          `json:"product"`
	IsRefill  bool            `json:"is_refill"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// Filter narrows catalog listings. Empty fields match everything.
type Filter struct {
	Branch        string
	Status        Status
	PaymentStatus PaymentStatus
	Limit         int
}

// Summary counts orders by status and sums what is still unpaid.
type Summary struct {
	Pending    int             `json:"pending"`
	Scheduled  int             `json:"scheduled"`
	Delivered  int             `json:"delivered"`
	Paid       int             `json:"paid"`
	Unpaid     int             `json:"unpaid"`
	Receivable decimal.Decimal `json:"receivable"`
}
