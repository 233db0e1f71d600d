// Package errs holds the error taxonomy shared by the order, dispute and
// notification services. Call sites wrap these sentinels with fmt.Errorf and
// %w so the transport layer can classify them with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidTransition is returned when a status or dispute move violates
	// the state machine, including requests that lost a concurrent race.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDuplicateDispute is returned when the order already has an unresolved dispute.
	ErrDuplicateDispute = errors.New("duplicate dispute")
	// ErrDisputeClosed is returned when appending to a resolved dispute.
	ErrDisputeClosed = errors.New("dispute closed")
	// ErrMissingPaymentReference is returned when verifying payment of an order without a reference.
	ErrMissingPaymentReference = errors.New("missing payment reference")
	// ErrEmptyMessage is returned when a dispute message has neither body nor attachments.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNotFound is returned for unknown order, dispute or notification ids.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor lacks ownership or role for the mutation.
	ErrForbidden = errors.New("forbidden")
	// ErrOrderLocked is returned when a dispute is opened against a completed or cancelled order.
	ErrOrderLocked = errors.New("order locked")
	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRequestInProgress is returned when a retried request arrives while the
	// first one with the same idempotency key is still running.
	ErrRequestInProgress = errors.New("request in progress")
)

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrDuplicateDispute):
		return "duplicate_dispute"
	case errors.Is(err, ErrDisputeClosed):
		return "dispute_closed"
	case errors.Is(err, ErrMissingPaymentReference):
		return "missing_payment_reference"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrOrderLocked):
		return "order_locked"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrRequestInProgress):
		return "request_in_progress"
	default:
		return "internal"
	}
}
