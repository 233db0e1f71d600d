package event

import (
	"github.com/google/uuid"
)

// OrderRef identifies the parties of an order. Every order event carries it
// so the fan-out can address recipients without reading the order back.
type OrderRef struct {
	OrderID   uuid.UUID `json:"orderId"`
	BuyerID   string    `json:"buyerId"`
	SellerIDs []string  `json:"sellerIds"`
}

type OrderPlacedPayload struct {
	OrderRef
	TotalCents int64  `json:"totalCents"`
	Currency   string `json:"currency"`
	ItemCount  int    `json:"itemCount"`
}

type OrderStatusChangedPayload struct {
	OrderRef
	From string `json:"from"`
	To   string `json:"to"`
}

type OrderPaymentSubmittedPayload struct {
	OrderRef
	PaymentMethod string `json:"paymentMethod"`
	Reference     string `json:"reference"`
}

type OrderItemShippingChangedPayload struct {
	OrderRef
	ProductID       string `json:"productId"`
	ItemSellerID    string `json:"itemSellerId"`
	Title           string `json:"title"`
	From            string `json:"from"`
	To              string `json:"to"`
	AllItemsShipped bool   `json:"allItemsShipped"`
}

// DisputeRef identifies a dispute and who may follow it.
type DisputeRef struct {
	DisputeID uuid.UUID `json:"disputeId"`
	OrderID   uuid.UUID `json:"orderId"`
	BuyerID   string    `json:"buyerId"`
	// SellerIDs are the sellers following the thread: the named seller, or
	// every seller in the order for order-wide disputes.
	SellerIDs []string `json:"sellerIds"`
}

type DisputeOpenedPayload struct {
	DisputeRef
	Reason string `json:"reason"`
}

type DisputeMessageAddedPayload struct {
	DisputeRef
	MessageID  uuid.UUID `json:"messageId"`
	SenderID   string    `json:"senderId"`
	SenderRole string    `json:"senderRole"`
	Preview    string    `json:"preview"`
}

type DisputeStatusChangedPayload struct {
	DisputeRef
	From       string  `json:"from"`
	To         string  `json:"to"`
	Resolution *string `json:"resolution,omitempty"`

	// MessageID and MessagePreview are set when the admin wrote to the buyer
	// together with the status change.
	MessageID      *uuid.UUID `json:"messageId,omitempty"`
	MessagePreview string     `json:"messagePreview,omitempty"`
}
