package changestatus

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	ChangeStatus(ctx context.Context, a actor.Actor, orderID uuid.UUID, to order.Status) (order.Order, error)
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ChangeStatus requests an order status transition. Admin payment
// verification goes through here with status "paid".
func ChangeStatus(w http.ResponseWriter, r *http.Request, service service) {
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

	req := changeStatusRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	to, err := order.ToStatus(req.Status)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	o, err := service.ChangeStatus(r.Context(), a, id, to)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, o)
}
