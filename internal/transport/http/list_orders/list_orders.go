package listorders

import (
	"context"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
)

type service interface {
	ListOrders(ctx context.Context, a actor.Actor, filter order.QueryOrdersModel) ([]order.Order, error)
}

type queryOrdersRequest struct {
	Ids           []string    `schema:"ids,omitempty"`
	Statuses      []string    `schema:"status,omitempty"`
	CreatedAfter  *time.Time  `schema:"createdAfter,omitempty"`
	CreatedBefore *time.Time  `schema:"createdBefore,omitempty"`
	Limit         int         `schema:"limit,omitempty"`
	Offset        int         `schema:"offset,omitempty"`
}

func (q *queryOrdersRequest) ToModel() (order.QueryOrdersModel, error) {
	ids, err := httpio.ParseUUIDs(q.Ids)
	if err != nil {
		return order.QueryOrdersModel{}, err
	}

	statuses := make([]order.Status, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		st, err := order.ToStatus(s)
		if err != nil {
			return order.QueryOrdersModel{}, err
		}
		statuses = append(statuses, st)
	}

	return order.QueryOrdersModel{
		Ids:           ids,
		Statuses:      statuses,
		CreatedAfter:  q.CreatedAfter,
		CreatedBefore: q.CreatedBefore,
		Limit:         q.Limit,
		Offset:        q.Offset,
	}, nil
}

func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	query := &queryOrdersRequest{}
	if err := httpio.DecodeQuery(r, query); err != nil {
		httpio.Error(w, r, err)

		return
	}

	filter, err := query.ToModel()
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	orders, err := service.ListOrders(r.Context(), a, filter)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, orders)
}
