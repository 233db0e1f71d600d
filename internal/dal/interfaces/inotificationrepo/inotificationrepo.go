package inotificationrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/google/uuid"
)

// INotificationRepository is an interface for notification postgres repository.
type INotificationRepository interface {
	InsertMany(ctx context.Context, notifications []notification.Notification) ([]notification.Notification, error)
	List(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID string, id uuid.UUID, at time.Time) (notification.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
}
