package dispute

import (
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/google/uuid"
)

// Status is the state of a dispute.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusResolved Status = "resolved"
)

// ToStatus parses s.
func ToStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusOpen, StatusAccepted, StatusRejected, StatusResolved:
		return st, nil
	default:
		return "", fmt.Errorf("%w: invalid dispute status %q", errs.ErrInvalidArgument, s)
	}
}

func (s Status) String() string {
	return string(s)
}

// IsActive reports whether a dispute in status s still blocks a new one on
// the same order.
func (s Status) IsActive() bool {
	return s != StatusResolved
}

// Dispute is a buyer complaint thread tied to one order.
type Dispute struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"orderId"`
	BuyerID    string     `json:"buyerId"`
	SellerID   *string    `json:"sellerId,omitempty"`
	Reason     string     `json:"reason"`
	Details    *string    `json:"details,omitempty"`
	Status     Status     `json:"status"`
	Resolution *string    `json:"resolution,omitempty"`
	Messages   []Message  `json:"messages"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// LastMessageAt returns the timestamp of the newest message, or the dispute's
// creation time when the thread is empty.
func (d Dispute) LastMessageAt() time.Time {
	if n := len(d.Messages); n > 0 {
		return d.Messages[n-1].CreatedAt
	}

	return d.CreatedAt
}
