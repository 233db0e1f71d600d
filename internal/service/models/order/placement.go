package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Placement carries everything needed to create an order. Items must already
// carry their commission rate snapshot.
type Placement struct {
	BuyerID         string
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Currency        money.Currency
	TaxRate         decimal.Decimal
	Items           []orderitem.OrderItem
}

// Place validates p and builds a pending order with computed totals.
func Place(p Placement, id uuid.UUID, now time.Time) (Order, error) {
	if strings.TrimSpace(p.BuyerID) == "" {
		return Order{}, fmt.Errorf("%w: buyer id is empty", errs.ErrInvalidArgument)
	}
	if len(p.Items) == 0 {
		return Order{}, fmt.Errorf("%w: no items in order", errs.ErrInvalidArgument)
	}
	if err := p.ShippingAddress.Validate(); err != nil {
		return Order{}, err
	}
	if _, err := ToPaymentMethod(string(p.PaymentMethod)); err != nil {
		return Order{}, err
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Order{}, fmt.Errorf("%w: tax rate must be within [0, 1]", errs.ErrInvalidArgument)
	}

	var subtotal money.Amount
	seen := make(map[string]struct{}, len(p.Items))
	items := make([]orderitem.OrderItem, 0, len(p.Items))
	for i, item := range p.Items {
		if err := validateItem(item); err != nil {
			return Order{}, fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := seen[item.ProductID]; dup {
			return Order{}, fmt.Errorf("%w: product %s appears twice", errs.ErrInvalidArgument, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}

		// each gross is at most MaxAmount, so the sum cannot wrap before the check
		subtotal = subtotal.Add(item.Gross())
		if subtotal > money.MaxAmount {
			return Order{}, fmt.Errorf("%w: order subtotal exceeds %s", errs.ErrInvalidArgument, money.MaxAmount)
		}

		item.ID = uuid.New()
		item.OrderID = id
		item.ShippingStatus = orderitem.ShippingPending
		item.ShippedAt = nil
		item.DeliveredAt = nil
		item.CreatedAt = now
		item.UpdatedAt = now
		items = append(items, item)
	}

	o := Order{
		ID:              id,
		BuyerID:         p.BuyerID,
		Status:          StatusPending,
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   p.PaymentMethod,
		Currency:        p.Currency,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusChangedAt: now,
		OrderItems:      items,
	}
	o.Subtotal = o.ItemsSubtotal()
	o.Tax = o.Subtotal.ApplyRate(p.TaxRate)
	o.Total = o.Subtotal.Add(o.Tax)

	return o, nil
}

func validateItem(item orderitem.OrderItem) error {
	switch {
	case strings.TrimSpace(item.ProductID) == "":
		return fmt.Errorf("%w: product id is empty", errs.ErrInvalidArgument)
	case strings.TrimSpace(item.SellerID) == "":
		return fmt.Errorf("%w: seller id is empty", errs.ErrInvalidArgument)
	case item.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", errs.ErrInvalidArgument)
	case item.UnitPrice <= 0:
		return fmt.Errorf("%w: unit price must be positive", errs.ErrInvalidArgument)
	case !fitsLedger(item):
		return fmt.Errorf("%w: line amount exceeds %s", errs.ErrInvalidArgument, money.MaxAmount)
	case item.CommissionRate.IsNegative() || item.CommissionRate.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: commission rate must be within [0, 1]", errs.ErrInvalidArgument)
	}

	return nil
}

func fitsLedger(item orderitem.OrderItem) bool {
	_, ok := item.UnitPrice.MulChecked(item.Quantity)
	return ok
}
