package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation  = "23505"
	activeDisputeIdx = "disputes_one_active_per_order_idx"
)

var disputeColumns = []string{
	"id",
	"order_id",
	"buyer_id",
	"seller_id",
	"reason",
	"details",
	"status",
	"resolution",
	"created_at",
	"updated_at",
	"resolved_at",
}

var messageColumns = []string{
	"id",
	"dispute_id",
	"sender_id",
	"sender_role",
	"body",
	"attachments",
	"created_at",
}

// DisputeDal represents dispute data access layer model.
type DisputeDal struct {
	Id         uuid.UUID  `db:"id"`
	OrderId    uuid.UUID  `db:"order_id"`
	BuyerId    string     `db:"buyer_id"`
	SellerId   *string    `db:"seller_id"`
	Reason     string     `db:"reason"`
	Details    *string    `db:"details"`
	Status     string     `db:"status"`
	Resolution *string    `db:"resolution"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
}

func (d *DisputeDal) scanTargets() []any {
	return []any{
		&d.Id,
		&d.OrderId,
		&d.BuyerId,
		&d.SellerId,
		&d.Reason,
		&d.Details,
		&d.Status,
		&d.Resolution,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ResolvedAt,
	}
}

// ToModel converts DisputeDal to the service layer model without messages.
func (d *DisputeDal) ToModel() (dispute.Dispute, error) {
	status, err := dispute.ToStatus(d.Status)
	if err != nil {
		return dispute.Dispute{}, err
	}

	return dispute.Dispute{
		ID:         d.Id,
		OrderID:    d.OrderId,
		BuyerID:    d.BuyerId,
		SellerID:   d.SellerId,
		Reason:     d.Reason,
		Details:    d.Details,
		Status:     status,
		Resolution: d.Resolution,
		Messages:   []dispute.Message{},
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		ResolvedAt: d.ResolvedAt,
	}, nil
}

// MessageDal represents dispute message data access layer model.
type MessageDal struct {
	Id          uuid.UUID `db:"id"`
	DisputeId   uuid.UUID `db:"dispute_id"`
	SenderId    string    `db:"sender_id"`
	SenderRole  string    `db:"sender_role"`
	Body        *string   `db:"body"`
	Attachments []string  `db:"attachments"`
	CreatedAt   time.Time `db:"created_at"`
}

func (m *MessageDal) scanTargets() []any {
	return []any{
		&m.Id,
		&m.DisputeId,
		&m.SenderId,
		&m.SenderRole,
		&m.Body,
		&m.Attachments,
		&m.CreatedAt,
	}
}

// ToModel converts MessageDal to the service layer model.
func (m *MessageDal) ToModel() dispute.Message {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	return dispute.Message{
		ID:          m.Id,
		DisputeID:   m.DisputeId,
		SenderID:    m.SenderId,
		SenderRole:  actor.Role(m.SenderRole),
		Body:        m.Body,
		Attachments: attachments,
		CreatedAt:   m.CreatedAt,
	}
}

// PostgresDisputeRepository represents a Postgres dispute repository.
type PostgresDisputeRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresDisputeRepository creates a new Postgres dispute repository.
func NewPostgresDisputeRepository(conn postgres.Conn) *PostgresDisputeRepository {
	return &PostgresDisputeRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new dispute together with its initial messages. A second
// unresolved dispute on the same order is rejected by the partial unique index.
func (r *PostgresDisputeRepository) Insert(ctx context.Context, d dispute.Dispute) error {
	sql, args, err := r.sb.Insert("disputes").
		Columns(disputeColumns...).
		Values(
			d.ID,
			d.OrderID,
			d.BuyerID,
			d.SellerID,
			d.Reason,
			d.Details,
			d.Status.String(),
			d.Resolution,
			d.CreatedAt,
			d.UpdatedAt,
			d.ResolvedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeDisputeIdx {
			return fmt.Errorf("order %s: %w", d.OrderID, errs.ErrDuplicateDispute)
		}

		return fmt.Errorf("failed to insert dispute: %w", err)
	}

	for _, msg := range d.Messages {
		if err := r.InsertMessage(ctx, msg); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the dispute with its thread.
func (r *PostgresDisputeRepository) Get(ctx context.Context, id uuid.UUID) (dispute.Dispute, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate is Get holding a row lock until the surrounding transaction ends.
func (r *PostgresDisputeRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (dispute.Dispute, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresDisputeRepository) get(ctx context.Context, id uuid.UUID, lock bool) (dispute.Dispute, error) {
	query := r.sb.Select(disputeColumns...).From("disputes").Where(sq.Eq{"id": id})
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return dispute.Dispute{}, fmt.Errorf("failed to build query: %w", err)
	}

	var dal DisputeDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dispute.Dispute{}, fmt.Errorf("dispute %s: %w", id, errs.ErrNotFound)
		}

		return dispute.Dispute{}, fmt.Errorf("failed to get dispute: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return dispute.Dispute{}, fmt.Errorf("failed to convert dispute dal to model: %w", err)
	}

	model.Messages, err = r.Messages(ctx, id)
	if err != nil {
		return dispute.Dispute{}, err
	}

	return model, nil
}

// ActiveForOrder returns the order's unresolved dispute, or nil.
func (r *PostgresDisputeRepository) ActiveForOrder(ctx context.Context, orderID uuid.UUID) (*dispute.Dispute, error) {
	sql, args, err := r.sb.Select("id").
		From("disputes").
		Where(sq.Eq{"order_id": orderID}).
		Where(sq.NotEq{"status": dispute.StatusResolved.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var id uuid.UUID
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to find active dispute: %w", err)
	}

	active, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &active, nil
}

// Query lists disputes without their threads, newest first. A seller filter
// matches disputes naming the seller and order-wide disputes on orders the
// seller has items in.
func (r *PostgresDisputeRepository) Query(
	ctx context.Context,
	filter *dispute.QueryDisputesModel,
) ([]dispute.Dispute, error) {
	query := r.sb.Select(disputeColumns...).From("disputes")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	if len(filter.BuyerIds) > 0 {
		query = query.Where(sq.Eq{"buyer_id": filter.BuyerIds})
	}

	if len(filter.SellerIds) > 0 {
		query = query.Where(sq.Or{
			sq.Expr("seller_id = ANY(?)", filter.SellerIds),
			sq.And{
				sq.Eq{"seller_id": nil},
				sq.Expr("order_id IN (SELECT order_id FROM order_items WHERE seller_id = ANY(?))", filter.SellerIds),
			},
		})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, s.String())
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	query = query.OrderBy("created_at DESC", "id")

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query disputes: %w", err)
	}
	defer rows.Close()

	result := make([]dispute.Dispute, 0)
	for rows.Next() {
		var dal DisputeDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert dispute dal to model: %w", err)
		}
		result = append(result, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateStatus persists status, resolution and timestamps if the stored
// dispute is still in expected.
func (r *PostgresDisputeRepository) UpdateStatus(
	ctx context.Context,
	d dispute.Dispute,
	expected dispute.Status,
) error {
	sql, args, err := r.sb.Update("disputes").
		Set("status", d.Status.String()).
		Set("resolution", d.Resolution).
		Set("resolved_at", d.ResolvedAt).
		Set("updated_at", d.UpdatedAt).
		Where(sq.Eq{"id": d.ID, "status": expected.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update dispute: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispute %s changed concurrently: %w", d.ID, errs.ErrInvalidTransition)
	}

	return nil
}

// Touch bumps updated_at after a message is appended.
func (r *PostgresDisputeRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	sql, args, err := r.sb.Update("disputes").
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to touch dispute: %w", err)
	}

	return nil
}

// InsertMessage appends msg to its dispute thread.
func (r *PostgresDisputeRepository) InsertMessage(ctx context.Context, msg dispute.Message) error {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	sql, args, err := r.sb.Insert("dispute_messages").
		Columns(messageColumns...).
		Values(
			msg.ID,
			msg.DisputeID,
			msg.SenderID,
			msg.SenderRole.String(),
			msg.Body,
			attachments,
			msg.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert dispute message: %w", err)
	}

	return nil
}

// Messages returns the thread oldest first.
func (r *PostgresDisputeRepository) Messages(ctx context.Context, disputeID uuid.UUID) ([]dispute.Message, error) {
	sql, args, err := r.sb.Select(messageColumns...).
		From("dispute_messages").
		Where(sq.Eq{"dispute_id": disputeID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispute messages: %w", err)
	}
	defer rows.Close()

	result := make([]dispute.Message, 0)
	for rows.Next() {
		var dal MessageDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan dispute message: %w", err)
		}
		result = append(result, dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
