package paymentreference

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	SubmitPaymentReference(ctx context.Context, a actor.Actor, orderID uuid.UUID, reference string) (order.Order, error)
}

type submitPaymentReferenceRequest struct {
	Reference string `json:"reference" validate:"required,max=128"`
}

// SubmitPaymentReference records the buyer's external payment reference.
func SubmitPaymentReference(w http.ResponseWriter, r *http.Request, service service) {
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

	req := submitPaymentReferenceRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	o, err := service.SubmitPaymentReference(r.Context(), a, id, req.Reference)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, o)
}
