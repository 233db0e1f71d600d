package orderitem

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem represents a line within an order, bound to one seller and one
// product at a price and commission snapshot.
type OrderItem struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"orderId"`
	ProductID      string          `json:"productId"`
	SellerID       string          `json:"sellerId"`
	Title          string          `json:"title"`
	UnitPrice      money.Amount    `json:"unitPriceCents"`
	Quantity       int             `json:"quantity"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	ShippingStatus ShippingStatus  `json:"shippingStatus"`
	ShippedAt      *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Gross returns unit price times quantity.
func (i OrderItem) Gross() money.Amount {
	return i.UnitPrice.Mul(i.Quantity)
}
