package iauditrepo

import (
	"context"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/google/uuid"
)

// IAuditRepository is interface for the order status history.
type IAuditRepository interface {
	LogStatusChange(ctx context.Context, change auditlog.OrderStatusChange) error
	History(ctx context.Context, orderID uuid.UUID) ([]auditlog.OrderStatusChange, error)
}
