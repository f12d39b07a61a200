package orders

type ItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,lte=10000"`
}

// OrderRequest is used for create and for edit; edits replace all items.
type OrderRequest struct {
	CustomerID   int64         `json:"customer_id" validate:"required,gt=0"`
	Branch       string        `json:"branch,omitempty" validate:"omitempty,max=80"`
	DeliveryDate string        `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	Items        []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ListRequest struct {
	Status        Status
	PaymentStatus PaymentStatus
	Limit         int
}
