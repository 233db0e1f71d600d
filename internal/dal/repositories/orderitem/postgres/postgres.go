package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// commission rates are stored as integer parts per million
const rateScale = 6

var orderItemColumns = []string{
	"id",
	"order_id",
	"product_id",
	"seller_id",
	"title",
	"unit_price_cents",
	"quantity",
	"commission_rate_ppm",
	"shipping_status",
	"shipped_at",
	"delivered_at",
	"created_at",
	"updated_at",
}

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id                uuid.UUID  `db:"id"`
	OrderId           uuid.UUID  `db:"order_id"`
	ProductId         string     `db:"product_id"`
	SellerId          string     `db:"seller_id"`
	Title             string     `db:"title"`
	UnitPriceCents    int64      `db:"unit_price_cents"`
	Quantity          int        `db:"quantity"`
	CommissionRatePpm int64      `db:"commission_rate_ppm"`
	ShippingStatus    string     `db:"shipping_status"`
	ShippedAt         *time.Time `db:"shipped_at"`
	DeliveredAt       *time.Time `db:"delivered_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (oi *OrderItemDal) scanTargets() []any {
	return []any{
		&oi.Id,
		&oi.OrderId,
		&oi.ProductId,
		&oi.SellerId,
		&oi.Title,
		&oi.UnitPriceCents,
		&oi.Quantity,
		&oi.CommissionRatePpm,
		&oi.ShippingStatus,
		&oi.ShippedAt,
		&oi.DeliveredAt,
		&oi.CreatedAt,
		&oi.UpdatedAt,
	}
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (orderitem.OrderItem, error) {
	status, err := orderitem.ToShippingStatus(oi.ShippingStatus)
	if err != nil {
		return orderitem.OrderItem{}, err
	}

	return orderitem.OrderItem{
		ID:             oi.Id,
		OrderID:        oi.OrderId,
		ProductID:      oi.ProductId,
		SellerID:       oi.SellerId,
		Title:          oi.Title,
		UnitPrice:      money.Amount(oi.UnitPriceCents),
		Quantity:       oi.Quantity,
		CommissionRate: decimal.New(oi.CommissionRatePpm, -rateScale),
		ShippingStatus: status,
		ShippedAt:      oi.ShippedAt,
		DeliveredAt:    oi.DeliveredAt,
		CreatedAt:      oi.CreatedAt,
		UpdatedAt:      oi.UpdatedAt,
	}, nil
}

// OrderItemDalFromModel converts service layer OrderItem model to OrderItemDal.
func OrderItemDalFromModel(oi orderitem.OrderItem) OrderItemDal {
	return OrderItemDal{
		Id:                oi.ID,
		OrderId:           oi.OrderID,
		ProductId:         oi.ProductID,
		SellerId:          oi.SellerID,
		Title:             oi.Title,
		UnitPriceCents:    int64(oi.UnitPrice),
		Quantity:          oi.Quantity,
		CommissionRatePpm: oi.CommissionRate.Shift(rateScale).Round(0).IntPart(),
		ShippingStatus:    oi.ShippingStatus.String(),
		ShippedAt:         oi.ShippedAt,
		DeliveredAt:       oi.DeliveredAt,
		CreatedAt:         oi.CreatedAt,
		UpdatedAt:         oi.UpdatedAt,
	}
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.Conn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts items in one statement. Their position within each
// order is kept so reads return them in placement order.
func (r *PostgresOrderItemRepository) BulkInsert(ctx context.Context, orderItems []orderitem.OrderItem) error {
	if len(orderItems) == 0 {
		return nil
	}

	query := r.sb.Insert("order_items").Columns(append(orderItemColumns, "line_no")...)

	lines := make(map[uuid.UUID]int)
	for _, item := range orderItems {
		dal := OrderItemDalFromModel(item)
		query = query.Values(
			dal.Id,
			dal.OrderId,
			dal.ProductId,
			dal.SellerId,
			dal.Title,
			dal.UnitPriceCents,
			dal.Quantity,
			dal.CommissionRatePpm,
			dal.ShippingStatus,
			dal.ShippedAt,
			dal.DeliveredAt,
			dal.CreatedAt,
			dal.UpdatedAt,
			lines[dal.OrderId],
		)
		lines[dal.OrderId]++
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to bulk insert order items: %w", err)
	}

	return nil
}

// Query retrieves order items based on filter criteria.
func (r *PostgresOrderItemRepository) Query(
	ctx context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	query := r.sb.Select(orderItemColumns...).From("order_items")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	if len(filter.ProductIds) > 0 {
		query = query.Where(sq.Eq{"product_id": filter.ProductIds})
	}

	if len(filter.SellerIds) > 0 {
		query = query.Where(sq.Eq{"seller_id": filter.SellerIds})
	}

	sql, args, err := query.OrderBy("order_id", "line_no").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	result := make([]orderitem.OrderItem, 0)
	for rows.Next() {
		var dal OrderItemDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		result = append(result, model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateShipping persists the item's shipping state if the stored row still
// has the expected one.
func (r *PostgresOrderItemRepository) UpdateShipping(
	ctx context.Context,
	item orderitem.OrderItem,
	expected orderitem.ShippingStatus,
) error {
	sql, args, err := r.sb.Update("order_items").
		Set("shipping_status", item.ShippingStatus.String()).
		Set("shipped_at", item.ShippedAt).
		Set("delivered_at", item.DeliveredAt).
		Set("updated_at", item.UpdatedAt).
		Where(sq.Eq{"id": item.ID, "shipping_status": expected.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s changed concurrently: %w", item.ProductID, errs.ErrInvalidTransition)
	}

	return nil
}
