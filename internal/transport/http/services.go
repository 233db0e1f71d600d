package httptransport

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/settlement"
	"github.com/google/uuid"
)

// The endpoint packages declare their own unexported service interfaces;
// these mirror them so the transport can be built from concrete services or
// test doubles alike.

type createOrderService interface {
	PlaceOrder(ctx context.Context, a actor.Actor, in ordersvc.PlaceOrderInput, idempotencyKey string) (order.Order, error)
}

type listOrdersService interface {
	ListOrders(ctx context.Context, a actor.Actor, filter order.QueryOrdersModel) ([]order.Order, error)
}

type getOrderService interface {
	GetOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID) (order.Order, error)
}

type paymentReferenceService interface {
	SubmitPaymentReference(ctx context.Context, a actor.Actor, orderID uuid.UUID, reference string) (order.Order, error)
}

type changeStatusService interface {
	ChangeStatus(ctx context.Context, a actor.Actor, orderID uuid.UUID, to order.Status) (order.Order, error)
}

type itemShippingService interface {
	MarkItemShipping(
		ctx context.Context,
		a actor.Actor,
		orderID uuid.UUID,
		productID string,
		next orderitem.ShippingStatus,
	) (order.Order, error)
}

type historyService interface {
	History(ctx context.Context, a actor.Actor, orderID uuid.UUID) ([]auditlog.OrderStatusChange, error)
}

type settlementService interface {
	Settlement(ctx context.Context, a actor.Actor, orderID uuid.UUID) (settlement.OrderSettlement, error)
}

type salesReportService interface {
	SalesReport(ctx context.Context, a actor.Actor, q ordersvc.SalesReportQuery) (settlement.Report, error)
}

type openDisputeService interface {
	OpenDispute(
		ctx context.Context,
		a actor.Actor,
		orderID uuid.UUID,
		op dispute.Opening,
		idempotencyKey string,
	) (dispute.Dispute, error)
}

type getDisputeService interface {
	GetDispute(ctx context.Context, a actor.Actor, disputeID uuid.UUID) (dispute.Dispute, error)
	ActiveDisputeForOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID) (dispute.Dispute, error)
}

type listDisputesService interface {
	ListDisputes(ctx context.Context, a actor.Actor, filter dispute.QueryDisputesModel) ([]dispute.Dispute, error)
}

type appendMessageService interface {
	AppendMessage(ctx context.Context, a actor.Actor, disputeID uuid.UUID, body string, attachments []string) (dispute.Message, error)
	AppendMessageToOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID, body string, attachments []string) (dispute.Message, error)
}

type transitionDisputeService interface {
	TransitionDispute(ctx context.Context, admin actor.Actor, disputeID uuid.UUID, r dispute.Resolution) (dispute.Dispute, error)
}

type notificationService interface {
	List(ctx context.Context, a actor.Actor, limit int) (notification.Page, error)
	UnreadCount(ctx context.Context, a actor.Actor) (int, error)
	MarkRead(ctx context.Context, a actor.Actor, id uuid.UUID) (notification.Notification, error)
	MarkAllRead(ctx context.Context, a actor.Actor) (int64, error)
}
