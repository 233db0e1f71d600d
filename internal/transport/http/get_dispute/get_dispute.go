package getdispute

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	GetDispute(ctx context.Context, a actor.Actor, disputeID uuid.UUID) (dispute.Dispute, error)
	ActiveDisputeForOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID) (dispute.Dispute, error)
}

// GetDispute returns a dispute with its thread.
func GetDispute(w http.ResponseWriter, r *http.Request, service service) {
	get(w, r, service.GetDispute)
}

// ActiveDisputeForOrder returns the unresolved dispute of the order in the URL.
func ActiveDisputeForOrder(w http.ResponseWriter, r *http.Request, service service) {
	get(w, r, service.ActiveDisputeForOrder)
}

func get(
	w http.ResponseWriter,
	r *http.Request,
	load func(ctx context.Context, a actor.Actor, id uuid.UUID) (dispute.Dispute, error),
) {
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

	d, err := load(r.Context(), a, id)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, d)
}
