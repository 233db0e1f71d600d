package orderitem

import (
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
)

// ShippingStatus is the per-item fulfilment state, independent of the order status.
type ShippingStatus string

// remember to add new statuses to shippingOrdinals
const (
	ShippingPending   ShippingStatus = "pending"
	ShippingShipped   ShippingStatus = "shipped"
	ShippingDelivered ShippingStatus = "delivered"
)

var shippingOrdinals = map[ShippingStatus]int{
	ShippingPending:   0,
	ShippingShipped:   1,
	ShippingDelivered: 2,
}

func (s ShippingStatus) String() string {
	return string(s)
}

// ToShippingStatus parses s.
func ToShippingStatus(s string) (ShippingStatus, error) {
	status := ShippingStatus(s)
	if _, ok := shippingOrdinals[status]; ok {
		return status, nil
	}

	return "", fmt.Errorf("%w: invalid shipping status %q", errs.ErrInvalidArgument, s)
}

// AdvanceShipping moves the item to next, which must be strictly later in
// pending -> shipped -> delivered. Shipped and delivered timestamps are stamped
// once and never rewritten.
func (i *OrderItem) AdvanceShipping(next ShippingStatus, now time.Time) error {
	to, ok := shippingOrdinals[next]
	if !ok {
		return fmt.Errorf("%w: invalid shipping status %q", errs.ErrInvalidArgument, next)
	}

	if to <= shippingOrdinals[i.ShippingStatus] {
		return fmt.Errorf("%w: item %s cannot move from %s to %s",
			errs.ErrInvalidTransition, i.ProductID, i.ShippingStatus, next)
	}

	if i.ShippedAt == nil {
		shippedAt := now
		i.ShippedAt = &shippedAt
	}
	if next == ShippingDelivered && i.DeliveredAt == nil {
		deliveredAt := now
		i.DeliveredAt = &deliveredAt
	}

	i.ShippingStatus = next
	i.UpdatedAt = now

	return nil
}
