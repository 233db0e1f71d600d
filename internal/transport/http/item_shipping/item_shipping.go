package itemshipping

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type service interface {
	MarkItemShipping(
		ctx context.Context,
		a actor.Actor,
		orderID uuid.UUID,
		productID string,
		next orderitem.ShippingStatus,
	) (order.Order, error)
}

type markItemShippingRequest struct {
	ShippingStatus string `json:"shippingStatus" validate:"required"`
}

// MarkItemShipping advances one item's shipping status and responds with
// the updated item.
func MarkItemShipping(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	id, err := httpio.UUIDParam(r, "id")
	if err != nil {
		httpio.Error(w, r, err)

		return
	}
	productID := chi.URLParam(r, "productId")

	req := markItemShippingRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	next, err := orderitem.ToShippingStatus(req.ShippingStatus)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	o, err := service.MarkItemShipping(r.Context(), a, id, productID, next)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	item, _, ok := o.Item(productID)
	if !ok {
		httpio.Error(w, r, fmt.Errorf("item %s: %w", productID, errs.ErrNotFound))

		return
	}

	httpio.JSON(w, http.StatusOK, item)
}
