package customers

import "github.com/shopspring/decimal"

type CreateCustomerRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Address  string          `json:"address" validate:"required,max=500"`
	WhatsApp string          `json:"whatsapp" validate:"required,max=30"`
	Branch   string          `json:"branch,omitempty" validate:"omitempty,max=80"`
	Discount decimal.Decimal `json:"discount"`
}

type UpdateCustomerRequest struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Address  *string          `json:"address,omitempty" validate:"omitempty,min=1,max=500"`
	WhatsApp *string          `json:"whatsapp,omitempty" validate:"omitempty,min=1,max=30"`
	Branch   *string          `json:"branch,omitempty" validate:"omitempty,min=1,max=80"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
}

type ListCustomersRequest struct {
	Branch string
	Search string
	Limit  int
	Offset int
}
