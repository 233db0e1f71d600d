package listdisputes

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
)

type service interface {
	ListDisputes(ctx context.Context, a actor.Actor, filter dispute.QueryDisputesModel) ([]dispute.Dispute, error)
}

type queryDisputesRequest struct {
	OrderIds []string `schema:"orderIds,omitempty"`
	Statuses []string `schema:"status,omitempty"`
	Limit    int      `schema:"limit,omitempty"`
	Offset   int      `schema:"offset,omitempty"`
}

func (q *queryDisputesRequest) ToModel() (dispute.QueryDisputesModel, error) {
	orderIDs, err := httpio.ParseUUIDs(q.OrderIds)
	if err != nil {
		return dispute.QueryDisputesModel{}, err
	}

	statuses := make([]dispute.Status, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		st, err := dispute.ToStatus(s)
		if err != nil {
			return dispute.QueryDisputesModel{}, err
		}
		statuses = append(statuses, st)
	}

	return dispute.QueryDisputesModel{
		OrderIds: orderIDs,
		Statuses: statuses,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}, nil
}

// ListDisputes serves both the admin queue and participants' own lists.
func ListDisputes(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	query := &queryDisputesRequest{}
	if err := httpio.DecodeQuery(r, query); err != nil {
		httpio.Error(w, r, err)

		return
	}

	filter, err := query.ToModel()
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	disputes, err := service.ListDisputes(r.Context(), a, filter)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, disputes)
}
