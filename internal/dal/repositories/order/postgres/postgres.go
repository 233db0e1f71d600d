package postgresrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var orderColumns = []string{
	"id",
	"buyer_id",
	"status",
	"shipping_address",
	"payment_method",
	"payment_reference",
	"currency",
	"subtotal_cents",
	"tax_cents",
	"total_cents",
	"version",
	"created_at",
	"updated_at",
	"status_changed_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id               uuid.UUID `db:"id"`
	BuyerId          string    `db:"buyer_id"`
	Status           string    `db:"status"`
	ShippingAddress  []byte    `db:"shipping_address"`
	PaymentMethod    string    `db:"payment_method"`
	PaymentReference *string   `db:"payment_reference"`
	Currency         string    `db:"currency"`
	SubtotalCents    int64     `db:"subtotal_cents"`
	TaxCents         int64     `db:"tax_cents"`
	TotalCents       int64     `db:"total_cents"`
	Version          int64     `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	StatusChangedAt  time.Time `db:"status_changed_at"`
}

func (o *OrderDal) scanTargets() []any {
	return []any{
		&o.Id,
		&o.BuyerId,
		&o.Status,
		&o.ShippingAddress,
		&o.PaymentMethod,
		&o.PaymentReference,
		&o.Currency,
		&o.SubtotalCents,
		&o.TaxCents,
		&o.TotalCents,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.StatusChangedAt,
	}
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (order.Order, error) {
	status, err := order.ToStatus(o.Status)
	if err != nil {
		return order.Order{}, err
	}

	cur, err := money.ParseCurrency(o.Currency)
	if err != nil {
		return order.Order{}, err
	}

	var addr order.ShippingAddress
	if err := json.Unmarshal(o.ShippingAddress, &addr); err != nil {
		return order.Order{}, fmt.Errorf("failed to decode shipping address: %w", err)
	}

	return order.Order{
		ID:               o.Id,
		BuyerID:          o.BuyerId,
		Status:           status,
		ShippingAddress:  addr,
		PaymentMethod:    order.PaymentMethod(o.PaymentMethod),
		PaymentReference: o.PaymentReference,
		Currency:         cur,
		Subtotal:         money.Amount(o.SubtotalCents),
		Tax:              money.Amount(o.TaxCents),
		Total:            money.Amount(o.TotalCents),
		Version:          o.Version,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		StatusChangedAt:  o.StatusChangedAt,
		OrderItems:       []orderitem.OrderItem{}, // Will be populated separately
	}, nil
}

// OrderDalFromModel converts service layer Order model to OrderDal.
func OrderDalFromModel(o order.Order) (OrderDal, error) {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return OrderDal{}, fmt.Errorf("failed to encode shipping address: %w", err)
	}

	return OrderDal{
		Id:               o.ID,
		BuyerId:          o.BuyerID,
		Status:           o.Status.String(),
		ShippingAddress:  addr,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentReference: o.PaymentReference,
		Currency:         o.Currency.String(),
		SubtotalCents:    int64(o.Subtotal),
		TaxCents:         int64(o.Tax),
		TotalCents:       int64(o.Total),
		Version:          o.Version,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		StatusChangedAt:  o.StatusChangedAt,
	}, nil
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.Conn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new order without its items.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) error {
	dal, err := OrderDalFromModel(o)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.Insert("orders").
		Columns(orderColumns...).
		Values(
			dal.Id,
			dal.BuyerId,
			dal.Status,
			dal.ShippingAddress,
			dal.PaymentMethod,
			dal.PaymentReference,
			dal.Currency,
			dal.SubtotalCents,
			dal.TaxCents,
			dal.TotalCents,
			dal.Version,
			dal.CreatedAt,
			dal.UpdatedAt,
			dal.StatusChangedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// Get returns the order without items.
func (r *PostgresOrderRepository) Get(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate returns the order and locks its row until the transaction ends.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresOrderRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build query: %w", err)
	}

	var dal OrderDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, fmt.Errorf("order %s: %w", id, errs.ErrNotFound)
		}

		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return dal.ToModel()
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.BuyerIds) > 0 {
		query = query.Where(sq.Eq{"buyer_id": filter.BuyerIds})
	}

	if len(filter.SellerIds) > 0 {
		query = query.Where(sq.Expr(
			"id IN (SELECT order_id FROM order_items WHERE seller_id = ANY(?))",
			filter.SellerIds,
		))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = s.String()
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if filter.CreatedAfter != nil {
		query = query.Where(sq.GtOrEq{"created_at": *filter.CreatedAfter})
	}

	if filter.CreatedBefore != nil {
		query = query.Where(sq.Lt{"created_at": *filter.CreatedBefore})
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
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := make([]order.Order, 0)
	for rows.Next() {
		var dal OrderDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateStatus persists o's status if the stored row still has the expected
// status and version. A row that moved on in the meantime means the request
// lost a race, which is reported as an invalid transition. The new version is
// returned.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	o order.Order,
	expected order.Status,
	expectedVersion int64,
) (int64, error) {
	sql, args, err := r.sb.Update("orders").
		Set("status", o.Status.String()).
		Set("status_changed_at", o.StatusChangedAt).
		Set("updated_at", o.UpdatedAt).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": o.ID, "status": expected.String(), "version": expectedVersion}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	return r.updateVersioned(ctx, o.ID, sql, args)
}

// UpdatePaymentReference stores the payment reference of a pending order
// under the same optimistic check as UpdateStatus.
func (r *PostgresOrderRepository) UpdatePaymentReference(
	ctx context.Context,
	o order.Order,
	expectedVersion int64,
) (int64, error) {
	sql, args, err := r.sb.Update("orders").
		Set("payment_reference", o.PaymentReference).
		Set("updated_at", o.UpdatedAt).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": o.ID, "status": order.StatusPending.String(), "version": expectedVersion}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	return r.updateVersioned(ctx, o.ID, sql, args)
}

func (r *PostgresOrderRepository) updateVersioned(ctx context.Context, id uuid.UUID, sql string, args []any) (int64, error) {
	var version int64
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("order %s changed concurrently: %w", id, errs.ErrInvalidTransition)
		}

		return 0, fmt.Errorf("failed to update order: %w", err)
	}

	return version, nil
}
