package order_test

import (
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    order.Status
		to      order.Status
		wantErr error
	}{
		{name: "pending to paid: ok", from: order.StatusPending, to: order.StatusPaid},
		{name: "pending to shipped skips ahead: ok", from: order.StatusPending, to: order.StatusShipped},
		{name: "processing to shipped: ok", from: order.StatusProcessing, to: order.StatusShipped},
		{name: "processing to cancelled: ok", from: order.StatusProcessing, to: order.StatusCancelled},
		{name: "shipped to completed: ok", from: order.StatusShipped, to: order.StatusCompleted},
		{name: "processing to pending: fail", from: order.StatusProcessing, to: order.StatusPending, wantErr: errs.ErrInvalidTransition},
		{name: "shipped to processing: fail", from: order.StatusShipped, to: order.StatusProcessing, wantErr: errs.ErrInvalidTransition},
		{name: "same status: fail", from: order.StatusPaid, to: order.StatusPaid, wantErr: errs.ErrInvalidTransition},
		{name: "completed to cancelled: fail", from: order.StatusCompleted, to: order.StatusCancelled, wantErr: errs.ErrInvalidTransition},
		{name: "cancelled to completed: fail", from: order.StatusCancelled, to: order.StatusCompleted, wantErr: errs.ErrInvalidTransition},
		{name: "unknown target: fail", from: order.StatusPending, to: "refunded", wantErr: errs.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := order.ValidateTransition(tt.from, tt.to)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLockedOrdersRejectEveryTarget(t *testing.T) {
	parties := []struct {
		name  string
		actor func(o order.Order) actor.Actor
	}{
		{name: "admin", actor: func(order.Order) actor.Actor { return admin }},
		{name: "buyer", actor: func(o order.Order) actor.Actor {
			return actor.Actor{ID: o.BuyerID, Role: actor.RoleBuyer}
		}},
		{name: "seller", actor: func(o order.Order) actor.Actor {
			return actor.Actor{ID: o.OrderItems[0].SellerID, Role: actor.RoleSeller}
		}},
	}

	for _, locked := range []order.Status{order.StatusCompleted, order.StatusCancelled} {
		for _, party := range parties {
			for _, target := range order.Statuses() {
				t.Run(string(locked)+" "+party.name+" to "+string(target), func(t *testing.T) {
					o := randomOrder()
					o.Status = locked
					o.PaymentReference = ptr("ref-1")

					_, err := o.RequestStatusChange(party.actor(o), target, time.Now())
					require.ErrorIs(t, err, errs.ErrInvalidTransition)
					assert.Equal(t, locked, o.Status)
				})
			}
		}
	}
}

func TestLockedOrdersStillRejectOutsiders(t *testing.T) {
	tests := []struct {
		name    string
		actor   actor.Actor
		wantErr error
	}{
		{name: "other buyer", actor: actor.Actor{ID: "buyer-x", Role: actor.RoleBuyer}, wantErr: errs.ErrForbidden},
		{name: "seller without items", actor: actor.Actor{ID: "seller-x", Role: actor.RoleSeller}, wantErr: errs.ErrForbidden},
		{name: "unknown role", actor: actor.Actor{ID: "x", Role: "courier"}, wantErr: errs.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := randomOrder()
			o.Status = order.StatusCompleted

			_, err := o.RequestStatusChange(tt.actor, order.StatusCancelled, time.Now())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStatusNeverMovesBackwards(t *testing.T) {
	forward := []order.Status{
		order.StatusPending,
		order.StatusPaid,
		order.StatusProcessing,
		order.StatusShipped,
		order.StatusCompleted,
	}

	for i, from := range forward {
		for j, to := range forward {
			err := order.ValidateTransition(from, to)
			switch {
			case from.IsLocked(), j <= i:
				assert.ErrorIs(t, err, errs.ErrInvalidTransition, "%s -> %s", from, to)
			default:
				assert.NoError(t, err, "%s -> %s", from, to)
			}
		}
	}
}

func TestShippedOrderScenario(t *testing.T) {
	o := randomOrder()
	o.Status = order.StatusShipped
	now := time.Now()

	_, err := o.RequestStatusChange(admin, order.StatusProcessing, now)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	tr, err := o.RequestStatusChange(admin, order.StatusCompleted, now)
	require.NoError(t, err)
	assert.Equal(t, order.Transition{From: order.StatusShipped, To: order.StatusCompleted, At: now}, tr)
	assert.Equal(t, order.StatusCompleted, o.Status)
	assert.Equal(t, now, o.StatusChangedAt)

	for _, target := range order.Statuses() {
		_, err := o.RequestStatusChange(admin, target, now)
		require.ErrorIs(t, err, errs.ErrInvalidTransition, "target %s", target)
	}
}

func TestToStatus(t *testing.T) {
	for _, s := range order.Statuses() {
		got, err := order.ToStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := order.ToStatus("archived")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}
