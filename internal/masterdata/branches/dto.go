package branches

type BranchForm struct {
	Name   string `json:"name" validate:"required,max=80"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive"`
}

type StatusForm struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}
