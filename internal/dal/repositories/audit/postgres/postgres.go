package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/auditlog"
	"github.com/google/uuid"
)

// PostgresAuditRepository stores the order status history.
type PostgresAuditRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresAuditRepository creates a new Postgres audit repository.
func NewPostgresAuditRepository(conn postgres.Conn) *PostgresAuditRepository {
	return &PostgresAuditRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// LogStatusChange appends one transition to the order history.
func (r *PostgresAuditRepository) LogStatusChange(ctx context.Context, change auditlog.OrderStatusChange) error {
	sql, args, err := r.sb.Insert("order_status_history").
		Columns("order_id", "from_status", "to_status", "actor_id", "actor_role", "changed_at").
		Values(
			change.OrderID,
			change.FromStatus,
			change.ToStatus,
			change.ActorID,
			change.ActorRole.String(),
			change.ChangedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert status change: %w", err)
	}

	return nil
}

// History returns the order's transitions oldest first.
func (r *PostgresAuditRepository) History(ctx context.Context, orderID uuid.UUID) ([]auditlog.OrderStatusChange, error) {
	sql, args, err := r.sb.
		Select("id", "order_id", "from_status", "to_status", "actor_id", "actor_role", "changed_at").
		From("order_status_history").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	result := make([]auditlog.OrderStatusChange, 0)
	for rows.Next() {
		var (
			change auditlog.OrderStatusChange
			role   string
		)
		err := rows.Scan(
			&change.ID,
			&change.OrderID,
			&change.FromStatus,
			&change.ToStatus,
			&change.ActorID,
			&role,
			&change.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		change.ActorRole = actor.Role(role)
		result = append(result, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
