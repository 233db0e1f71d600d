package dispute

import (
	"fmt"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/google/uuid"
)

// messageTick separates messages that would otherwise share a timestamp.
// Postgres keeps microseconds, so anything finer would collapse on reload.
const messageTick = time.Microsecond

// Opening is a buyer's request to open a dispute.
type Opening struct {
	Reason      string
	SellerID    *string
	Details     string
	Attachments []string
}

// Open creates a dispute against o. active is the order's current
// non-resolved dispute, if any.
func Open(a actor.Actor, o order.Order, op Opening, active *Dispute, id uuid.UUID, now time.Time) (Dispute, error) {
	if !a.IsBuyer() || a.ID != o.BuyerID {
		return Dispute{}, fmt.Errorf("%w: only the order's buyer can open a dispute", errs.ErrForbidden)
	}

	reason := strings.TrimSpace(op.Reason)
	if reason == "" {
		return Dispute{}, fmt.Errorf("%w: reason is empty", errs.ErrInvalidArgument)
	}

	if o.Status.IsLocked() {
		return Dispute{}, fmt.Errorf("%w: order is %s", errs.ErrOrderLocked, o.Status)
	}

	if op.SellerID != nil && !o.HasSeller(*op.SellerID) {
		return Dispute{}, fmt.Errorf("%w: seller %s has no items in order", errs.ErrInvalidArgument, *op.SellerID)
	}

	if active != nil && active.Status.IsActive() {
		return Dispute{}, fmt.Errorf("%w: dispute %s is %s", errs.ErrDuplicateDispute, active.ID, active.Status)
	}

	now = now.Truncate(messageTick)
	d := Dispute{
		ID:        id,
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		SellerID:  op.SellerID,
		Reason:    reason,
		Status:    StatusOpen,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	details := strings.TrimSpace(op.Details)
	if details != "" {
		d.Details = &details
	}

	if details != "" || len(op.Attachments) > 0 {
		msg, err := newMessage(d.ID, a, details, op.Attachments, now)
		if err != nil {
			return Dispute{}, err
		}
		d.Messages = append(d.Messages, msg)
	}

	return d, nil
}

// CanParticipate reports whether a may read and write the thread. A seller
// participates when named on the dispute, or on order-wide disputes when they
// own items in the order.
func (d Dispute) CanParticipate(a actor.Actor, o order.Order) bool {
	switch a.Role {
	case actor.RoleAdmin:
		return true
	case actor.RoleBuyer:
		return a.ID == d.BuyerID
	case actor.RoleSeller:
		if d.SellerID != nil {
			return *d.SellerID == a.ID
		}

		return o.HasSeller(a.ID)
	default:
		return false
	}
}

// AppendMessage adds a message to the thread without changing the status.
func (d *Dispute) AppendMessage(sender actor.Actor, body string, attachments []string, now time.Time) (Message, error) {
	if d.Status == StatusResolved {
		return Message{}, fmt.Errorf("%w: dispute %s", errs.ErrDisputeClosed, d.ID)
	}

	return d.appendMessage(sender, body, attachments, now)
}

func (d *Dispute) appendMessage(sender actor.Actor, body string, attachments []string, now time.Time) (Message, error) {
	msg, err := newMessage(d.ID, sender, body, attachments, d.nextMessageAt(now))
	if err != nil {
		return Message{}, err
	}

	d.Messages = append(d.Messages, msg)
	d.UpdatedAt = msg.CreatedAt

	return msg, nil
}

// nextMessageAt keeps the thread strictly ordered: never before the dispute
// itself and always after the previous message.
func (d *Dispute) nextMessageAt(now time.Time) time.Time {
	at := now.Truncate(messageTick)
	if at.Before(d.CreatedAt) {
		at = d.CreatedAt
	}

	if n := len(d.Messages); n > 0 {
		if last := d.Messages[n-1].CreatedAt; !at.After(last) {
			at = last.Add(messageTick)
		}
	}

	return at
}

// ValidateTransition checks a dispute status move.
//
//	open              -> accepted | rejected | resolved
//	accepted|rejected -> resolved
func ValidateTransition(from, to Status) error {
	switch {
	case from == StatusResolved:
		return fmt.Errorf("%w: dispute is resolved", errs.ErrInvalidTransition)
	case from == StatusOpen && (to == StatusAccepted || to == StatusRejected || to == StatusResolved):
		return nil
	case (from == StatusAccepted || from == StatusRejected) && to == StatusResolved:
		return nil
	default:
		return fmt.Errorf("%w: cannot move dispute from %s to %s", errs.ErrInvalidTransition, from, to)
	}
}

// Resolution is an admin disposition of a dispute.
type Resolution struct {
	Status         Status
	Resolution     *string
	MessageToBuyer string
}

// Transition applies an admin disposition. When a message to the buyer is
// given it is appended in the same step, so the caller persists both or
// neither.
func (d *Dispute) Transition(admin actor.Actor, r Resolution, now time.Time) (from Status, msg *Message, err error) {
	if !admin.IsAdmin() {
		return "", nil, fmt.Errorf("%w: only admins can change dispute status", errs.ErrForbidden)
	}

	if err := ValidateTransition(d.Status, r.Status); err != nil {
		return "", nil, err
	}

	// blank resolution text counts as none
	if r.Resolution != nil {
		text := strings.TrimSpace(*r.Resolution)
		r.Resolution = &text
		if text == "" {
			r.Resolution = nil
		}
	}

	if r.Resolution != nil && r.Status != StatusResolved {
		return "", nil, fmt.Errorf("%w: resolution text is only accepted when resolving", errs.ErrInvalidArgument)
	}

	if strings.TrimSpace(r.MessageToBuyer) != "" {
		m, err := d.appendMessage(admin, r.MessageToBuyer, nil, now)
		if err != nil {
			return "", nil, err
		}
		msg = &m
	}

	from = d.Status
	d.Status = r.Status
	at := d.nextStatusAt(now)
	d.UpdatedAt = at

	if r.Status == StatusResolved {
		d.Resolution = r.Resolution
		d.ResolvedAt = &at
	}

	return from, msg, nil
}

func (d *Dispute) nextStatusAt(now time.Time) time.Time {
	at := now.Truncate(messageTick)
	if at.Before(d.UpdatedAt) {
		return d.UpdatedAt
	}

	return at
}
