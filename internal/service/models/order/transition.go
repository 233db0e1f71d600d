package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
)

// Transition describes a status change applied to an order.
type Transition struct {
	From Status
	To   Status
	At   time.Time
}

// RequestStatusChange validates and applies a status change requested by a.
//
// Role policy: admins may request any target; the buyer may cancel while the
// order is pending or paid and complete it once shipped; sellers with items
// in the order may move it to processing or shipped. Moving to paid is the
// admin's payment verification and requires a submitted payment reference.
//
// A completed or cancelled order rejects every request from a party to the
// order with ErrInvalidTransition, whatever the target.
func (o *Order) RequestStatusChange(a actor.Actor, to Status, now time.Time) (Transition, error) {
	if err := o.authorizeParty(a); err != nil {
		return Transition{}, err
	}

	if o.Status.IsLocked() {
		return Transition{}, fmt.Errorf("%w: order is %s", errs.ErrInvalidTransition, o.Status)
	}

	if err := authorizeTarget(a, to); err != nil {
		return Transition{}, err
	}

	if err := ValidateTransition(o.Status, to); err != nil {
		return Transition{}, err
	}

	if a.IsBuyer() {
		switch {
		case to == StatusCancelled && o.Status != StatusPending && o.Status != StatusPaid:
			return Transition{}, fmt.Errorf("%w: buyer cannot cancel a %s order", errs.ErrForbidden, o.Status)
		case to == StatusCompleted && o.Status != StatusShipped:
			return Transition{}, fmt.Errorf("%w: buyer can complete only shipped orders", errs.ErrForbidden)
		}
	}

	if to == StatusPaid && (o.PaymentReference == nil || strings.TrimSpace(*o.PaymentReference) == "") {
		return Transition{}, fmt.Errorf("%w: order %s", errs.ErrMissingPaymentReference, o.ID)
	}

	t := Transition{From: o.Status, To: to, At: now}
	o.Status = to
	o.StatusChangedAt = now
	o.UpdatedAt = now

	return t, nil
}

func (o *Order) authorizeParty(a actor.Actor) error {
	switch a.Role {
	case actor.RoleAdmin:
		return nil
	case actor.RoleBuyer:
		if a.ID != o.BuyerID {
			return fmt.Errorf("%w: order belongs to another buyer", errs.ErrForbidden)
		}
	case actor.RoleSeller:
		if !o.HasSeller(a.ID) {
			return fmt.Errorf("%w: seller has no items in order", errs.ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", errs.ErrForbidden, a.Role)
	}

	return nil
}

func authorizeTarget(a actor.Actor, to Status) error {
	switch {
	case a.IsBuyer() && to != StatusCancelled && to != StatusCompleted:
		return fmt.Errorf("%w: buyer cannot set status %s", errs.ErrForbidden, to)
	case a.IsSeller() && to != StatusProcessing && to != StatusShipped:
		return fmt.Errorf("%w: seller cannot set status %s", errs.ErrForbidden, to)
	}

	return nil
}

// SubmitPaymentReference records the reference of an external payment. Only
// the buyer may submit it, and only while the order awaits payment.
func (o *Order) SubmitPaymentReference(a actor.Actor, reference string, now time.Time) error {
	if !a.IsBuyer() || a.ID != o.BuyerID {
		return fmt.Errorf("%w: only the buyer can submit a payment reference", errs.ErrForbidden)
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return fmt.Errorf("%w: payment reference is empty", errs.ErrInvalidArgument)
	}

	if o.Status != StatusPending {
		return fmt.Errorf("%w: payment reference can only be submitted for pending orders, order is %s",
			errs.ErrInvalidTransition, o.Status)
	}

	o.PaymentReference = &reference
	o.UpdatedAt = now

	return nil
}

// CanView reports whether a may read the order.
func (o Order) CanView(a actor.Actor) bool {
	switch a.Role {
	case actor.RoleAdmin:
		return true
	case actor.RoleBuyer:
		return a.ID == o.BuyerID
	case actor.RoleSeller:
		return o.HasSeller(a.ID)
	default:
		return false
	}
}
