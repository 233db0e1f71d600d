package order

import (
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
)

// Status is the overall lifecycle state of an order.
type Status string

// remember to add new statuses to validStatuses and, unless terminal side
// states, to statusOrdinals
const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// statusOrdinals is the fixed forward sequence. Cancelled sits outside it.
var statusOrdinals = map[Status]int{
	StatusPending:    0,
	StatusPaid:       1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusCompleted:  4,
}

var validStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusPaid:       {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func (s Status) String() string {
	return string(s)
}

// ToStatus parses s.
func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}

	return "", fmt.Errorf("%w: invalid order status %q", errs.ErrInvalidArgument, s)
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusPaid,
		StatusProcessing,
		StatusShipped,
		StatusCompleted,
		StatusCancelled,
	}
}

// IsLocked reports whether s is terminal.
func (s Status) IsLocked() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsCommitted reports whether an order in status s counts towards sales.
func (s Status) IsCommitted() bool {
	switch s {
	case StatusPaid, StatusProcessing, StatusShipped, StatusCompleted:
		return true
	default:
		return false
	}
}

// ValidateTransition checks a move from -> to against the lifecycle:
// forward-only along the ordinal sequence, cancelled from any unlocked state,
// nothing out of completed or cancelled.
func ValidateTransition(from, to Status) error {
	if from.IsLocked() {
		return fmt.Errorf("%w: order is %s", errs.ErrInvalidTransition, from)
	}

	if _, ok := validStatuses[to]; !ok {
		return fmt.Errorf("%w: unknown status %q", errs.ErrInvalidTransition, to)
	}

	if to == StatusCancelled {
		return nil
	}

	if from == to {
		return fmt.Errorf("%w: order is already %s", errs.ErrInvalidTransition, from)
	}

	if statusOrdinals[to] < statusOrdinals[from] {
		return fmt.Errorf("%w: cannot move from %s back to %s", errs.ErrInvalidTransition, from, to)
	}

	return nil
}
