package iorderrepo

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/google/uuid"
)

// IOrderRepository is an interface for order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) error
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	UpdateStatus(ctx context.Context, o order.Order, expected order.Status, expectedVersion int64) (int64, error)
	UpdatePaymentReference(ctx context.Context, o order.Order, expectedVersion int64) (int64, error)
}
