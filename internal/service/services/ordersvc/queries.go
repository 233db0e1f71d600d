package ordersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/settlement"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// GetOrder returns the order if a may see it. Orders outside the actor's
// visibility are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID) (order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	o, err := getWithItems(ctx, s.newUOW(), orderID, false)
	if err != nil {
		return order.Order{}, err
	}

	if !o.CanView(a) {
		return order.Order{}, fmt.Errorf("order %s: %w", orderID, errs.ErrNotFound)
	}

	return o, nil
}

// ListOrders returns orders matching filter, narrowed to what a may see:
// buyers get their own orders, sellers the orders containing their items.
func (s *OrderService) ListOrders(
	ctx context.Context,
	a actor.Actor,
	filter order.QueryOrdersModel,
) ([]order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	switch a.Role {
	case actor.RoleAdmin:
	case actor.RoleBuyer:
		filter.BuyerIds = []string{a.ID}
	case actor.RoleSeller:
		filter.SellerIds = []string{a.ID}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", errs.ErrForbidden, a.Role)
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	filter.Limit = min(filter.Limit, maxListLimit)
	filter.Offset = max(filter.Offset, 0)

	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, err
	}

	if err := attachItems(ctx, work, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// History returns the status transitions of a visible order, oldest first.
func (s *OrderService) History(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
) ([]auditlog.OrderStatusChange, error) {
	ctx, span := tracer.Start(ctx, "OrderService.History")
	defer span.End()

	if _, err := s.GetOrder(ctx, a, orderID); err != nil {
		return nil, err
	}

	return s.newUOW().AuditRepository().History(ctx, orderID)
}

// Settlement returns the per-seller money breakdown of an order. Admins see
// every seller, a seller sees only their own part, buyers have no access.
func (s *OrderService) Settlement(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
) (settlement.OrderSettlement, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Settlement")
	defer span.End()

	o, err := s.GetOrder(ctx, a, orderID)
	if err != nil {
		return settlement.OrderSettlement{}, err
	}

	switch {
	case a.IsAdmin():
		return settlement.ForOrder(o), nil
	case a.IsSeller():
		return settlement.ForOrder(o).OnlySeller(a.ID), nil
	default:
		return settlement.OrderSettlement{}, fmt.Errorf("%w: settlement is visible to sellers and admins", errs.ErrForbidden)
	}
}

// SalesReportQuery selects the orders a sales report covers.
type SalesReportQuery struct {
	From   *time.Time
	To     *time.Time
	Bucket settlement.Bucket
}

// SalesReport aggregates committed orders created in [From, To) by time
// bucket and seller. It is recomputed from order rows on every call.
func (s *OrderService) SalesReport(
	ctx context.Context,
	a actor.Actor,
	q SalesReportQuery,
) (settlement.Report, error) {
	ctx, span := tracer.Start(ctx, "OrderService.SalesReport")
	defer span.End()

	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return settlement.Report{}, fmt.Errorf("%w: report range is empty", errs.ErrInvalidArgument)
	}

	filter := order.QueryOrdersModel{
		Statuses: lo.Filter(order.Statuses(), func(st order.Status, _ int) bool {
			return st.IsCommitted()
		}),
		CreatedAfter:  q.From,
		CreatedBefore: q.To,
	}

	switch {
	case a.IsAdmin():
	case a.IsSeller():
		filter.SellerIds = []string{a.ID}
	default:
		return settlement.Report{}, fmt.Errorf("%w: reports are visible to sellers and admins", errs.ErrForbidden)
	}

	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return settlement.Report{}, err
	}

	if err := attachItems(ctx, work, orders); err != nil {
		return settlement.Report{}, err
	}

	report := settlement.BuildReport(orders, q.Bucket, s.location)
	if a.IsSeller() {
		report = report.OnlySeller(a.ID)
	}

	return report, nil
}
