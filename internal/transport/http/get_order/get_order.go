package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	GetOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID) (order.Order, error)
}

func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
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

	o, err := service.GetOrder(r.Context(), a, id)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, o)
}
