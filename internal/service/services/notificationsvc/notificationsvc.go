package notificationsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/inotificationrepo"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var tracer = otel.Tracer("notificationsvc")

// pusher delivers a frame to every live connection of the recipient.
type pusher interface {
	Push(ctx context.Context, recipientID string, push notification.Push) error
}

// NotificationService writes notification records and pushes them to
// connected clients.
type NotificationService struct {
	repo         inotificationrepo.INotificationRepository
	pusher       pusher
	adminIDs     []string
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

type option func(*NotificationService)

// MustNewNotificationService creates a new NotificationService.
func MustNewNotificationService(opts ...option) *NotificationService {
	s := &NotificationService{
		defaultLimit: defaultPageLimit,
		maxLimit:     maxPageLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.repo == nil {
		panic("notificationsvc: repository is required")
	}

	return s
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithRepository(repo inotificationrepo.INotificationRepository) option {
	return func(s *NotificationService) {
		s.repo = repo
	}
}

// WithPusher sets the real-time channel. Without one notifications are only
// stored.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPusher(p pusher) option {
	return func(s *NotificationService) {
		s.pusher = p
	}
}

// WithAdminIDs sets who receives admin notifications.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAdminIDs(ids []string) option {
	return func(s *NotificationService) {
		s.adminIDs = ids
	}
}

// WithPageLimits sets the default and maximum page size of List.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPageLimits(def, maximum int) option {
	return func(s *NotificationService) {
		if def > 0 {
			s.defaultLimit = def
		}
		if maximum > 0 {
			s.maxLimit = maximum
		}
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *NotificationService) {
		s.now = now
	}
}

// HandleEvent stores one notification per recipient of e and then pushes the
// new ones. Redelivered events insert nothing and push nothing. Push failures
// are logged and never returned.
func (s *NotificationService) HandleEvent(ctx context.Context, e event.Event) error {
	ctx, span := tracer.Start(ctx, "NotificationService.HandleEvent", trace.WithAttributes(
		attribute.String("event.id", e.ID.String()),
		attribute.String("event.type", string(e.Type)),
	))
	defer span.End()

	notifications, err := Compose(e, s.adminIDs, s.now())
	if err != nil {
		return fmt.Errorf("failed to compose notifications for event %s: %w", e.ID, err)
	}

	created, err := s.repo.InsertMany(ctx, notifications)
	if err != nil {
		return fmt.Errorf("failed to store notifications for event %s: %w", e.ID, err)
	}

	for _, n := range created {
		metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
		s.push(ctx, n)
	}

	slog.Debug("Event fanned out", "event_id", e.ID, "type", e.Type, "created", len(created))

	return nil
}

func (s *NotificationService) push(ctx context.Context, n notification.Notification) {
	if s.pusher == nil {
		return
	}

	if err := s.pusher.Push(ctx, n.RecipientID, notification.NewPush(n)); err != nil {
		metrics.PushFailures.Inc()
		slog.Warn("Failed to push notification",
			"notification_id", n.ID,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
}

// List returns the actor's newest notifications and their unread count.
func (s *NotificationService) List(ctx context.Context, a actor.Actor, limit int) (notification.Page, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.List")
	defer span.End()

	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, s.maxLimit)

	items, err := s.repo.List(ctx, a.ID, limit)
	if err != nil {
		return notification.Page{}, err
	}

	unread, err := s.repo.UnreadCount(ctx, a.ID)
	if err != nil {
		return notification.Page{}, err
	}

	return notification.Page{Items: items, UnreadCount: unread}, nil
}

// UnreadCount returns how many of the actor's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, a actor.Actor) (int, error) {
	return s.repo.UnreadCount(ctx, a.ID)
}

// MarkRead marks one notification read. Repeating it is harmless.
func (s *NotificationService) MarkRead(
	ctx context.Context,
	a actor.Actor,
	id uuid.UUID,
) (notification.Notification, error) {
	return s.repo.MarkRead(ctx, a.ID, id, s.now())
}

// MarkAllRead marks every unread notification of the actor read.
func (s *NotificationService) MarkAllRead(ctx context.Context, a actor.Actor) (int64, error) {
	return s.repo.MarkAllRead(ctx, a.ID, s.now())
}
