package ordersvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/marketplace/internal/dal/uow"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/marketplace/internal/service/settlement"
	"github.com/google/uuid"
)

// ChangeStatus moves the order to status to on behalf of a. The write is
// conditional on the status and version that were read, so of two concurrent
// requests from the same state exactly one commits and the other gets
// ErrInvalidTransition.
func (s *OrderService) ChangeStatus(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
	to order.Status,
) (order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ChangeStatus")
	defer span.End()

	var (
		updated    order.Order
		transition order.Transition
	)

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		o, err := getWithItems(ctx, work, orderID, false)
		if err != nil {
			return err
		}

		version := o.Version
		transition, err = o.RequestStatusChange(a, to, s.now())
		if err != nil {
			return err
		}

		if o.Version, err = work.OrderRepository().UpdateStatus(ctx, o, transition.From, version); err != nil {
			return err
		}

		err = work.AuditRepository().LogStatusChange(ctx, auditlog.OrderStatusChange{
			OrderID:    o.ID,
			FromStatus: transition.From.String(),
			ToStatus:   transition.To.String(),
			ActorID:    a.ID,
			ActorRole:  a.Role,
			ChangedAt:  transition.At,
		})
		if err != nil {
			return err
		}

		updated = o

		return s.enqueue(ctx, work, a, event.OrderStatusChanged, o.ID, event.OrderStatusChangedPayload{
			OrderRef: orderRef(o),
			From:     transition.From.String(),
			To:       transition.To.String(),
		})
	})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to change order status: %w", err)
	}

	metrics.StatusTransitions.WithLabelValues(transition.From.String(), transition.To.String()).Inc()
	slog.Info("Order status changed",
		"order_id", updated.ID,
		"from", transition.From,
		"to", transition.To,
		"actor_id", a.ID,
		"actor_role", a.Role,
	)

	return updated, nil
}

// MarkItemShipping advances the shipping state of one item. Only the seller
// owning the item or an admin may do it, and only while the order is paid,
// processing or shipped. The order status itself is never changed here.
func (s *OrderService) MarkItemShipping(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
	productID string,
	next orderitem.ShippingStatus,
) (order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.MarkItemShipping")
	defer span.End()

	var updated order.Order

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		o, err := getWithItems(ctx, work, orderID, true)
		if err != nil {
			return err
		}

		item, idx, ok := o.Item(productID)
		if !ok {
			return fmt.Errorf("product %s in order %s: %w", productID, orderID, errs.ErrNotFound)
		}

		if !a.IsAdmin() && !(a.IsSeller() && a.ID == item.SellerID) {
			return fmt.Errorf("%w: only the item's seller or an admin can update shipping", errs.ErrForbidden)
		}

		switch o.Status {
		case order.StatusPaid, order.StatusProcessing, order.StatusShipped:
		default:
			return fmt.Errorf("%w: items of a %s order cannot be shipped", errs.ErrInvalidTransition, o.Status)
		}

		prev := item.ShippingStatus
		now := s.now()
		if err := item.AdvanceShipping(next, now); err != nil {
			return err
		}

		if err := work.OrderItemRepository().UpdateShipping(ctx, item, prev); err != nil {
			return err
		}

		o.OrderItems[idx] = item
		updated = o

		return s.enqueue(ctx, work, a, event.OrderItemShippingChanged, o.ID, event.OrderItemShippingChangedPayload{
			OrderRef:        orderRef(o),
			ProductID:       item.ProductID,
			ItemSellerID:    item.SellerID,
			Title:           item.Title,
			From:            prev.String(),
			To:              item.ShippingStatus.String(),
			AllItemsShipped: settlement.AllItemsShipped(o),
		})
	})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to update item shipping: %w", err)
	}

	metrics.ItemShippingChanges.WithLabelValues(next.String()).Inc()
	slog.Info("Item shipping changed",
		"order_id", orderID,
		"product_id", productID,
		"to", next,
		"actor_id", a.ID,
	)

	return updated, nil
}
