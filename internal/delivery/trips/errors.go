package trips

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("trip or order not found")
	ErrConflict             = errors.New("order was changed by another operator")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNonEmptyTrip         = errors.New("trip still has assigned orders")
	ErrNoOrders             = errors.New("trip has no orders for your branch")
	ErrConfirmationRequired = errors.New("completion must be confirmed")
	ErrEvidenceRequired     = errors.New("delivery photo is required")
	ErrInvalidInput         = errors.New("invalid input")
	errIdempotentReplay     = errors.New("idempotent replay")
)

// StoreWriteError reports a persistence failure inside an engine operation.
// Committed is true only when some write became durable before the failure.
type StoreWriteError struct {
	Op        string
	Step      string
	Committed bool
	Err       error
}

func (e *StoreWriteError) Error() string {
	state := "rolled back"
	if e.Committed {
		state = "partially committed"
	}
	return fmt.Sprintf("%s: %s failed (%s): %v", e.Op, e.Step, state, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// EvidenceUploadError means neither the blob store nor the inline fallback
// could hold the delivery photo.
type EvidenceUploadError struct {
	Err error
}

func (e *EvidenceUploadError) Error() string {
	return fmt.Sprintf("delivery evidence: %v", e.Err)
}

func (e *EvidenceUploadError) Unwrap() error {
	return e.Err
}
