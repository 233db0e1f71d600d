package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corray333/backend-labs/marketplace/internal/dal/uow"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
)

// PlaceOrderItem is one requested line of a new order.
type PlaceOrderItem struct {
	ProductID string
	SellerID  string
	Title     string
	UnitPrice money.Amount
	Quantity  int
}

// PlaceOrderInput is the buyer's checkout request.
type PlaceOrderInput struct {
	ShippingAddress order.ShippingAddress
	PaymentMethod   order.PaymentMethod
	// Currency is optional, the configured default applies when empty.
	Currency string
	Items    []PlaceOrderItem
}

// PlaceOrder creates a pending order for the buyer. With a non-empty
// idempotencyKey a retried request returns the order created by the first one.
func (s *OrderService) PlaceOrder(
	ctx context.Context,
	a actor.Actor,
	in PlaceOrderInput,
	idempotencyKey string,
) (order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if !a.IsBuyer() {
		return order.Order{}, fmt.Errorf("%w: only buyers place orders", errs.ErrForbidden)
	}

	return idempotency.Do(ctx, s.idem, "order:"+a.ID, idempotencyKey,
		func(o order.Order) uuid.UUID { return o.ID },
		func(ctx context.Context, id uuid.UUID) (order.Order, error) {
			return getWithItems(ctx, s.newUOW(), id, false)
		},
		func(ctx context.Context) (order.Order, error) {
			return s.placeOrder(ctx, a, in)
		},
	)
}

func (s *OrderService) placeOrder(ctx context.Context, a actor.Actor, in PlaceOrderInput) (order.Order, error) {
	currency := s.currency
	if strings.TrimSpace(in.Currency) != "" {
		c, err := money.ParseCurrency(in.Currency)
		if err != nil {
			return order.Order{}, err
		}
		currency = c
	}

	items := make([]orderitem.OrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, orderitem.OrderItem{
			ProductID:      strings.TrimSpace(item.ProductID),
			SellerID:       strings.TrimSpace(item.SellerID),
			Title:          strings.TrimSpace(item.Title),
			UnitPrice:      item.UnitPrice,
			Quantity:       item.Quantity,
			CommissionRate: s.commission.RateFor(strings.TrimSpace(item.SellerID)),
		})
	}

	o, err := order.Place(order.Placement{
		BuyerID:         a.ID,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Currency:        currency,
		TaxRate:         s.taxRate,
		Items:           items,
	}, uuid.New(), s.now())
	if err != nil {
		return order.Order{}, err
	}

	work := s.newUOW()
	err = uow.Run(ctx, work, func(ctx context.Context) error {
		if err := work.OrderRepository().Insert(ctx, o); err != nil {
			return err
		}

		if err := work.OrderItemRepository().BulkInsert(ctx, o.OrderItems); err != nil {
			return err
		}

		return s.enqueue(ctx, work, a, event.OrderPlaced, o.ID, event.OrderPlacedPayload{
			OrderRef:   orderRef(o),
			TotalCents: int64(o.Total),
			Currency:   o.Currency.String(),
			ItemCount:  len(o.OrderItems),
		})
	})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to place order: %w", err)
	}

	metrics.OrdersPlaced.Inc()
	slog.Info("Order placed", "order_id", o.ID, "buyer_id", o.BuyerID, "total", o.Total.String())

	return o, nil
}

// SubmitPaymentReference records the external payment reference of a pending
// order so an admin can verify it.
func (s *OrderService) SubmitPaymentReference(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
	reference string,
) (order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.SubmitPaymentReference")
	defer span.End()

	var updated order.Order

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		o, err := getWithItems(ctx, work, orderID, false)
		if err != nil {
			return err
		}

		version := o.Version
		if err := o.SubmitPaymentReference(a, reference, s.now()); err != nil {
			return err
		}

		if o.Version, err = work.OrderRepository().UpdatePaymentReference(ctx, o, version); err != nil {
			return err
		}

		updated = o

		return s.enqueue(ctx, work, a, event.OrderPaymentSubmitted, o.ID, event.OrderPaymentSubmittedPayload{
			OrderRef:      orderRef(o),
			PaymentMethod: string(o.PaymentMethod),
			Reference:     *o.PaymentReference,
		})
	})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to submit payment reference: %w", err)
	}

	slog.Info("Payment reference submitted", "order_id", updated.ID, "buyer_id", a.ID)

	return updated, nil
}
