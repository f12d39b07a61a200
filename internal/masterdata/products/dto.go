package products

import "github.com/shopspring/decimal"

type ProductForm struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Price    decimal.Decimal `json:"price"`
	IsRefill bool            `json:"is_refill"`
	Status   string          `json:"status" validate:"omitempty,oneof=active inactive"`
}

type StatusForm struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}
