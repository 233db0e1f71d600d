package createorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
)

// IdempotencyHeader carries the client's retry key.
const IdempotencyHeader = "Idempotency-Key"

// service is an interface for the service layer.
type service interface {
	PlaceOrder(ctx context.Context, a actor.Actor, in ordersvc.PlaceOrderInput, idempotencyKey string) (order.Order, error)
}

// itemInCreateOrderRequest represents an item in a create order request.
type itemInCreateOrderRequest struct {
	ProductID      string `json:"productId"      validate:"required"`
	SellerID       string `json:"sellerId"       validate:"required"`
	Title          string `json:"title"          validate:"required"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"gt=0,lte=100000000000000"`
	Quantity       int    `json:"quantity"       validate:"gt=0"`
}

type addressInCreateOrderRequest struct {
	Recipient  string `json:"recipient"  validate:"required"`
	Phone      string `json:"phone"      validate:"required"`
	Line1      string `json:"line1"      validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city"       validate:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"    validate:"required"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	ShippingAddress addressInCreateOrderRequest `json:"shippingAddress"`
	PaymentMethod   string                      `json:"paymentMethod"   validate:"required"`
	Currency        string                      `json:"currency"`
	Items           []itemInCreateOrderRequest  `json:"items"           validate:"required,min=1,dive"`
}

// toInput converts the request to the service input.
func (r *createOrderRequest) toInput() (ordersvc.PlaceOrderInput, error) {
	method, err := order.ToPaymentMethod(r.PaymentMethod)
	if err != nil {
		return ordersvc.PlaceOrderInput{}, err
	}

	items := make([]ordersvc.PlaceOrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = ordersvc.PlaceOrderItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Title:     item.Title,
			UnitPrice: money.Amount(item.UnitPriceCents),
			Quantity:  item.Quantity,
		}
	}

	return ordersvc.PlaceOrderInput{
		ShippingAddress: order.ShippingAddress(r.ShippingAddress),
		PaymentMethod:   method,
		Currency:        r.Currency,
		Items:           items,
	}, nil
}

// CreateOrder handles checkout. A repeated request with the same
// Idempotency-Key returns the order created by the first one.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	req := createOrderRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	in, err := req.toInput()
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	created, err := service.PlaceOrder(r.Context(), a, in, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusCreated, created)
}
