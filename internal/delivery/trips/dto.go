package trips

// CreateTripRequest is the body of POST /trips. Branch is read only for
// all-branch actors in branch mode.
type CreateTripRequest struct {
	Branch string `json:"branch,omitempty" validate:"omitempty,max=80"`
}

// AssignRequest names the order to add to a trip.
type AssignRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

// MoveRequest shifts an order one slot within its trip.
type MoveRequest struct {
	Direction Direction `json:"direction" validate:"required,oneof=up down"`
}

// CompleteRequest must carry confirm=true to deliver the whole trip.
type CompleteRequest struct {
	Confirm bool `json:"confirm"`
}

// DriverRequest allows an empty driver; overlong names are cut by the service.
type DriverRequest struct {
	Driver string `json:"driver" validate:"max=1000"`
}
