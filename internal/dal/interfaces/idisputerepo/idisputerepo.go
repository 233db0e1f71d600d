package idisputerepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/google/uuid"
)

// IDisputeRepository is an interface for dispute postgres repository.
type IDisputeRepository interface {
	Insert(ctx context.Context, d dispute.Dispute) error
	Get(ctx context.Context, id uuid.UUID) (dispute.Dispute, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (dispute.Dispute, error)
	ActiveForOrder(ctx context.Context, orderID uuid.UUID) (*dispute.Dispute, error)
	Query(ctx context.Context, filter *dispute.QueryDisputesModel) ([]dispute.Dispute, error)
	UpdateStatus(ctx context.Context, d dispute.Dispute, expected dispute.Status) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertMessage(ctx context.Context, msg dispute.Message) error
}
