package opendispute

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

// IdempotencyHeader carries the client's retry key.
const IdempotencyHeader = "Idempotency-Key"

type service interface {
	OpenDispute(
		ctx context.Context,
		a actor.Actor,
		orderID uuid.UUID,
		op dispute.Opening,
		idempotencyKey string,
	) (dispute.Dispute, error)
}

type openDisputeRequest struct {
	Reason      string   `json:"reason"      validate:"required,max=200"`
	SellerID    *string  `json:"sellerId"    validate:"omitempty,min=1"`
	Details     string   `json:"details"     validate:"max=4000"`
	Attachments []string `json:"attachments" validate:"max=10"`
}

// OpenDispute opens a dispute on the order in the URL.
func OpenDispute(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	orderID, err := httpio.UUIDParam(r, "id")
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	req := openDisputeRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	d, err := service.OpenDispute(r.Context(), a, orderID, dispute.Opening{
		Reason:      req.Reason,
		SellerID:    req.SellerID,
		Details:     req.Details,
		Attachments: req.Attachments,
	}, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusCreated, d)
}
