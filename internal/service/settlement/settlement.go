// Package settlement computes how an order's money splits between the
// marketplace and its sellers. Everything here is a pure function of the
// order and its item snapshots.
//
// Commission is gross times the item's commission rate snapshot, rounded
// half-to-even to whole cents, and clamped to [0, gross]. Net is gross minus
// commission, so net + commission == gross holds for every item.
package settlement

import (
	"sort"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Gross returns price times quantity.
func Gross(item orderitem.OrderItem) money.Amount {
	return item.Gross()
}

// Commission returns the marketplace's share of the item.
func Commission(item orderitem.OrderItem) money.Amount {
	gross := Gross(item)
	if gross <= 0 {
		return 0
	}

	c := gross.ApplyRate(item.CommissionRate)
	switch {
	case c < 0:
		return 0
	case c > gross:
		return gross
	default:
		return c
	}
}

// Net returns what the seller is paid out for the item.
func Net(item orderitem.OrderItem) money.Amount {
	return Gross(item).Sub(Commission(item))
}

func sellerItems(o order.Order, sellerID string) []orderitem.OrderItem {
	return lo.Filter(o.OrderItems, func(item orderitem.OrderItem, _ int) bool {
		return item.SellerID == sellerID
	})
}

func sumBy(items []orderitem.OrderItem, f func(orderitem.OrderItem) money.Amount) money.Amount {
	return lo.Reduce(items, func(acc money.Amount, item orderitem.OrderItem, _ int) money.Amount {
		return acc.Add(f(item))
	}, 0)
}

// SellerSubtotal sums the gross of sellerID's items.
func SellerSubtotal(o order.Order, sellerID string) money.Amount {
	return sumBy(sellerItems(o, sellerID), Gross)
}

// SellerCommission sums the commission of sellerID's items.
func SellerCommission(o order.Order, sellerID string) money.Amount {
	return sumBy(sellerItems(o, sellerID), Commission)
}

// SellerNet sums the net payout of sellerID's items.
func SellerNet(o order.Order, sellerID string) money.Amount {
	return sumBy(sellerItems(o, sellerID), Net)
}

// AllItemsShipped reports whether every item has left the seller. It is
// advisory only and never moves the order status.
func AllItemsShipped(o order.Order) bool {
	if len(o.OrderItems) == 0 {
		return false
	}

	return lo.EveryBy(o.OrderItems, func(item orderitem.OrderItem) bool {
		return item.ShippingStatus == orderitem.ShippingShipped ||
			item.ShippingStatus == orderitem.ShippingDelivered
	})
}

// Line is the settlement of a single item.
type Line struct {
	OrderItemID    uuid.UUID                `json:"orderItemId"`
	ProductID      string                   `json:"productId"`
	Title          string                   `json:"title"`
	Quantity       int                      `json:"quantity"`
	UnitPrice      money.Amount             `json:"unitPriceCents"`
	CommissionRate decimal.Decimal          `json:"commissionRate"`
	Gross          money.Amount             `json:"grossCents"`
	Commission     money.Amount             `json:"commissionCents"`
	Net            money.Amount             `json:"netCents"`
	ShippingStatus orderitem.ShippingStatus `json:"shippingStatus"`
}

// SellerPart is one seller's share of an order.
type SellerPart struct {
	SellerID   string       `json:"sellerId"`
	Lines      []Line       `json:"lines"`
	Gross      money.Amount `json:"grossCents"`
	Commission money.Amount `json:"commissionCents"`
	Net        money.Amount `json:"netCents"`
	AllShipped bool         `json:"allShipped"`
}

// OrderSettlement is the per-seller breakdown of an order.
type OrderSettlement struct {
	OrderID         uuid.UUID      `json:"orderId"`
	Currency        money.Currency `json:"currency"`
	Sellers         []SellerPart   `json:"sellers"`
	Gross           money.Amount   `json:"grossCents"`
	Commission      money.Amount   `json:"commissionCents"`
	Net             money.Amount   `json:"netCents"`
	AllItemsShipped bool           `json:"allItemsShipped"`
}

// ForOrder breaks o down by seller, sellers in order of first appearance.
func ForOrder(o order.Order) OrderSettlement {
	s := OrderSettlement{
		OrderID:         o.ID,
		Currency:        o.Currency,
		Sellers:         make([]SellerPart, 0),
		AllItemsShipped: AllItemsShipped(o),
	}

	for _, sellerID := range o.SellerIDs() {
		part := SellerPart{SellerID: sellerID, AllShipped: true}
		for _, item := range sellerItems(o, sellerID) {
			line := Line{
				OrderItemID:    item.ID,
				ProductID:      item.ProductID,
				Title:          item.Title,
				Quantity:       item.Quantity,
				UnitPrice:      item.UnitPrice,
				CommissionRate: item.CommissionRate,
				Gross:          Gross(item),
				Commission:     Commission(item),
				Net:            Net(item),
				ShippingStatus: item.ShippingStatus,
			}
			part.Lines = append(part.Lines, line)
			part.Gross = part.Gross.Add(line.Gross)
			part.Commission = part.Commission.Add(line.Commission)
			part.Net = part.Net.Add(line.Net)
			if item.ShippingStatus == orderitem.ShippingPending {
				part.AllShipped = false
			}
		}

		s.Sellers = append(s.Sellers, part)
		s.Gross = s.Gross.Add(part.Gross)
		s.Commission = s.Commission.Add(part.Commission)
		s.Net = s.Net.Add(part.Net)
	}

	return s
}

// OnlySeller narrows the settlement to sellerID's part. Totals are
// recomputed from what remains.
func (s OrderSettlement) OnlySeller(sellerID string) OrderSettlement {
	parts := lo.Filter(s.Sellers, func(p SellerPart, _ int) bool {
		return p.SellerID == sellerID
	})

	out := s
	out.Sellers = parts
	out.Gross, out.Commission, out.Net = 0, 0, 0
	for _, p := range parts {
		out.Gross = out.Gross.Add(p.Gross)
		out.Commission = out.Commission.Add(p.Commission)
		out.Net = out.Net.Add(p.Net)
	}

	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)

	return keys
}
