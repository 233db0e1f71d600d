package salesreport

import (
	"context"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/settlement"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
)

type service interface {
	SalesReport(ctx context.Context, a actor.Actor, q ordersvc.SalesReportQuery) (settlement.Report, error)
}

type salesReportRequest struct {
	From   *time.Time `schema:"from,omitempty"`
	To     *time.Time `schema:"to,omitempty"`
	Bucket string     `schema:"bucket,omitempty"`
}

func (q *salesReportRequest) ToQuery() (ordersvc.SalesReportQuery, error) {
	bucket, err := settlement.ToBucket(q.Bucket)
	if err != nil {
		return ordersvc.SalesReportQuery{}, err
	}

	return ordersvc.SalesReportQuery{From: q.From, To: q.To, Bucket: bucket}, nil
}

// SalesReport aggregates committed sales per bucket and seller.
func SalesReport(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	req := &salesReportRequest{}
	if err := httpio.DecodeQuery(r, req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	q, err := req.ToQuery()
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	report, err := service.SalesReport(r.Context(), a, q)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, report)
}
