package transitiondispute

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	TransitionDispute(ctx context.Context, admin actor.Actor, disputeID uuid.UUID, r dispute.Resolution) (dispute.Dispute, error)
}

type transitionDisputeRequest struct {
	Status     string  `json:"status"     validate:"required"`
	Resolution *string `json:"resolution" validate:"omitempty,max=2000"`
	Message    string  `json:"message"    validate:"max=4000"`
}

// TransitionDispute applies an admin disposition.
func TransitionDispute(w http.ResponseWriter, r *http.Request, service service) {
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

	req := transitionDisputeRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	status, err := dispute.ToStatus(req.Status)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	d, err := service.TransitionDispute(r.Context(), a, id, dispute.Resolution{
		Status:         status,
		Resolution:     req.Resolution,
		MessageToBuyer: req.Message,
	})
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, d)
}
