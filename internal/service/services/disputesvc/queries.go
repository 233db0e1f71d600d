package disputesvc

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/google/uuid"
)

// GetDispute returns the dispute with its thread. Disputes the actor does not
// participate in are reported as not found.
func (s *DisputeService) GetDispute(ctx context.Context, a actor.Actor, disputeID uuid.UUID) (dispute.Dispute, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.GetDispute")
	defer span.End()

	work := s.newUOW()

	d, err := work.DisputeRepository().Get(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}

	o, err := getOrder(ctx, work, d.OrderID, false)
	if err != nil {
		return dispute.Dispute{}, err
	}

	if !d.CanParticipate(a, o) {
		return dispute.Dispute{}, fmt.Errorf("dispute %s: %w", disputeID, errs.ErrNotFound)
	}

	return d, nil
}

// ActiveDisputeForOrder returns the order's unresolved dispute.
func (s *DisputeService) ActiveDisputeForOrder(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
) (dispute.Dispute, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.ActiveDisputeForOrder")
	defer span.End()

	work := s.newUOW()

	o, err := getOrder(ctx, work, orderID, false)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if !o.CanView(a) {
		return dispute.Dispute{}, fmt.Errorf("order %s: %w", orderID, errs.ErrNotFound)
	}

	active, err := work.DisputeRepository().ActiveForOrder(ctx, orderID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if active == nil || !active.CanParticipate(a, o) {
		return dispute.Dispute{}, fmt.Errorf("active dispute for order %s: %w", orderID, errs.ErrNotFound)
	}

	return *active, nil
}

// ListDisputes returns disputes without their threads, newest first. Admins
// see the whole queue, buyers their own disputes and sellers the disputes
// they follow.
func (s *DisputeService) ListDisputes(
	ctx context.Context,
	a actor.Actor,
	filter dispute.QueryDisputesModel,
) ([]dispute.Dispute, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.ListDisputes")
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

	return s.newUOW().DisputeRepository().Query(ctx, &filter)
}
