package order

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Order represents a buyer's checkout, possibly spanning several sellers.
type Order struct {
	ID               uuid.UUID             `json:"id"`
	BuyerID          string                `json:"buyerId"`
	Status           Status                `json:"status"`
	ShippingAddress  ShippingAddress       `json:"shippingAddress"`
	PaymentMethod    PaymentMethod         `json:"paymentMethod"`
	PaymentReference *string               `json:"paymentReference,omitempty"`
	Currency         money.Currency        `json:"currency"`
	Subtotal         money.Amount          `json:"subtotalCents"`
	Tax              money.Amount          `json:"taxCents"`
	Total            money.Amount          `json:"totalCents"`
	Version          int64                 `json:"version"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	StatusChangedAt  time.Time             `json:"statusChangedAt"`
	OrderItems       []orderitem.OrderItem `json:"orderItems"`
}

// SellerIDs returns the distinct sellers of the order's items in item order.
func (o Order) SellerIDs() []string {
	return lo.Uniq(lo.Map(o.OrderItems, func(item orderitem.OrderItem, _ int) string {
		return item.SellerID
	}))
}

// HasSeller reports whether sellerID owns at least one item.
func (o Order) HasSeller(sellerID string) bool {
	return lo.ContainsBy(o.OrderItems, func(item orderitem.OrderItem) bool {
		return item.SellerID == sellerID
	})
}

// Item returns the item for productID.
func (o Order) Item(productID string) (orderitem.OrderItem, int, bool) {
	for i, item := range o.OrderItems {
		if item.ProductID == productID {
			return item, i, true
		}
	}

	return orderitem.OrderItem{}, -1, false
}

// ItemsSubtotal sums price times quantity over all items.
func (o Order) ItemsSubtotal() money.Amount {
	var subtotal money.Amount
	for _, item := range o.OrderItems {
		subtotal = subtotal.Add(item.Gross())
	}

	return subtotal
}
