package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var notificationColumns = []string{
	"id",
	"event_id",
	"recipient_id",
	"type",
	"severity",
	"icon",
	"title",
	"body",
	"link",
	"read",
	"created_at",
	"read_at",
}

// NotificationDal represents notification data access layer model.
type NotificationDal struct {
	Id          uuid.UUID  `db:"id"`
	EventId     uuid.UUID  `db:"event_id"`
	RecipientId string     `db:"recipient_id"`
	Type        string     `db:"type"`
	Severity    string     `db:"severity"`
	Icon        string     `db:"icon"`
	Title       string     `db:"title"`
	Body        string     `db:"body"`
	Link        *string    `db:"link"`
	Read        bool       `db:"read"`
	CreatedAt   time.Time  `db:"created_at"`
	ReadAt      *time.Time `db:"read_at"`
}

func (n *NotificationDal) scanTargets() []any {
	return []any{
		&n.Id,
		&n.EventId,
		&n.RecipientId,
		&n.Type,
		&n.Severity,
		&n.Icon,
		&n.Title,
		&n.Body,
		&n.Link,
		&n.Read,
		&n.CreatedAt,
		&n.ReadAt,
	}
}

// ToModel converts NotificationDal to service layer Notification model.
func (n *NotificationDal) ToModel() notification.Notification {
	return notification.Notification{
		ID:          n.Id,
		EventID:     n.EventId,
		RecipientID: n.RecipientId,
		Type:        notification.Type(n.Type),
		Severity:    notification.Severity(n.Severity),
		Icon:        n.Icon,
		Title:       n.Title,
		Body:        n.Body,
		Link:        n.Link,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
		ReadAt:      n.ReadAt,
	}
}

// PostgresNotificationRepository represents a Postgres notification repository.
type PostgresNotificationRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresNotificationRepository creates a new Postgres notification repository.
func NewPostgresNotificationRepository(conn postgres.Conn) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InsertMany stores notifications and returns only the ones that were new.
// A redelivered event produces no duplicates because (event_id, recipient_id)
// is unique.
func (r *PostgresNotificationRepository) InsertMany(
	ctx context.Context,
	notifications []notification.Notification,
) ([]notification.Notification, error) {
	if len(notifications) == 0 {
		return []notification.Notification{}, nil
	}

	query := r.sb.Insert("notifications").Columns(notificationColumns...)
	for _, n := range notifications {
		query = query.Values(
			n.ID,
			n.EventID,
			n.RecipientID,
			string(n.Type),
			string(n.Severity),
			n.Icon,
			n.Title,
			n.Body,
			n.Link,
			n.Read,
			n.CreatedAt,
			n.ReadAt,
		)
	}

	sql, args, err := query.
		Suffix("ON CONFLICT (event_id, recipient_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notifications: %w", err)
	}
	defer rows.Close()

	inserted := make(map[uuid.UUID]struct{}, len(notifications))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan notification id: %w", err)
		}
		inserted[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	result := make([]notification.Notification, 0, len(inserted))
	for _, n := range notifications {
		if _, ok := inserted[n.ID]; ok {
			result = append(result, n)
		}
	}

	return result, nil
}

// List returns the recipient's newest notifications first.
func (r *PostgresNotificationRepository) List(
	ctx context.Context,
	recipientID string,
	limit int,
) ([]notification.Notification, error) {
	query := r.sb.Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID}).
		OrderBy("created_at DESC", "id DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	result := make([]notification.Notification, 0)
	for rows.Next() {
		var dal NotificationDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UnreadCount counts the recipient's unread notifications.
func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID, "read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead marks one of the recipient's notifications read. Marking an
// already-read notification keeps its original read_at. Ids that belong to
// someone else are reported as not found.
func (r *PostgresNotificationRepository) MarkRead(
	ctx context.Context,
	recipientID string,
	id uuid.UUID,
	at time.Time,
) (notification.Notification, error) {
	sql, args, err := r.sb.Update("notifications").
		Set("read", true).
		Set("read_at", sq.Expr("COALESCE(read_at, ?)", at)).
		Where(sq.Eq{"id": id, "recipient_id": recipientID}).
		Suffix("RETURNING " + strings.Join(notificationColumns, ", ")).
		ToSql()
	if err != nil {
		return notification.Notification{}, fmt.Errorf("failed to build update query: %w", err)
	}

	var dal NotificationDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notification.Notification{}, fmt.Errorf("notification %s: %w", id, errs.ErrNotFound)
		}

		return notification.Notification{}, fmt.Errorf("failed to mark notification read: %w", err)
	}

	return dal.ToModel(), nil
}

// MarkAllRead marks every unread notification of the recipient and returns
// how many changed.
func (r *PostgresNotificationRepository) MarkAllRead(
	ctx context.Context,
	recipientID string,
	at time.Time,
) (int64, error) {
	sql, args, err := r.sb.Update("notifications").
		Set("read", true).
		Set("read_at", at).
		Where(sq.Eq{"recipient_id": recipientID, "read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	return tag.RowsAffected(), nil
}
