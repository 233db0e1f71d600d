package ordersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/dal/uow"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/settlement"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

const (
	defaultExchange   = "marketplace.events"
	defaultMaxRetries = 10

	defaultListLimit = 50
	maxListLimit     = 200
)

var tracer = otel.Tracer("ordersvc")

// OrderService is a service for placing orders and driving their lifecycle.
type OrderService struct {
	pgClient   *postgres.Client
	idem       *idempotency.Guard
	commission settlement.CommissionPolicy
	taxRate    decimal.Decimal
	currency   money.Currency
	location   *time.Location
	exchange   string
	maxRetries int
	now        func() time.Time
}

type unitOfWork interface {
	uow.Transactor

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	AuditRepository() iauditrepo.IAuditRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

func (s *OrderService) newUOW() unitOfWork {
	return uow.NewUnitOfWork(s.pgClient)
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		currency:   money.CurrencyUSD,
		location:   time.UTC,
		exchange:   defaultExchange,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pgClient == nil {
		panic("ordersvc: postgres client is required")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
	}
}

// WithIdempotencyGuard enables Idempotency-Key handling for placements.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIdempotencyGuard(guard *idempotency.Guard) option {
	return func(s *OrderService) {
		s.idem = guard
	}
}

// WithCommissionPolicy sets the policy snapshotted into new items.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCommissionPolicy(policy settlement.CommissionPolicy) option {
	return func(s *OrderService) {
		s.commission = policy
	}
}

// WithTaxRate sets the tax rate applied to the subtotal of new orders.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTaxRate(rate decimal.Decimal) option {
	return func(s *OrderService) {
		s.taxRate = rate
	}
}

// WithCurrency sets the currency used when a placement does not name one.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCurrency(c money.Currency) option {
	return func(s *OrderService) {
		s.currency = c
	}
}

// WithReportLocation sets the time zone sales report buckets are cut in.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithReportLocation(loc *time.Location) option {
	return func(s *OrderService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithOutbox sets where emitted events are routed and how often delivery is retried.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(exchange string, maxRetries int) option {
	return func(s *OrderService) {
		if exchange != "" {
			s.exchange = exchange
		}
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// enqueue writes the event into the outbox of the current transaction.
func (s *OrderService) enqueue(
	ctx context.Context,
	work unitOfWork,
	a actor.Actor,
	t event.Type,
	orderID uuid.UUID,
	payload any,
) error {
	now := s.now()

	e, err := event.New(t, orderID, a, payload, now)
	if err != nil {
		return err
	}

	msg, err := outbox.FromEvent(e, s.exchange, s.maxRetries, now)
	if err != nil {
		return err
	}

	if err := work.OutboxRepository().Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", t, err)
	}

	return nil
}

func orderRef(o order.Order) event.OrderRef {
	return event.OrderRef{
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		SellerIDs: o.SellerIDs(),
	}
}

// getWithItems loads the order and its items through work, locking the order
// row when lock is set.
func getWithItems(ctx context.Context, work unitOfWork, id uuid.UUID, lock bool) (order.Order, error) {
	get := work.OrderRepository().Get
	if lock {
		get = work.OrderRepository().GetForUpdate
	}

	o, err := get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: []uuid.UUID{id},
	})
	if err != nil {
		return order.Order{}, err
	}
	o.OrderItems = items

	return o, nil
}

// attachItems fills OrderItems of every order with one query.
func attachItems(ctx context.Context, work unitOfWork, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: lo.Map(orders, func(o order.Order, _ int) uuid.UUID { return o.ID }),
	})
	if err != nil {
		return err
	}

	byOrder := lo.GroupBy(items, func(item orderitem.OrderItem) uuid.UUID { return item.OrderID })
	for i := range orders {
		orders[i].OrderItems = byOrder[orders[i].ID]
		if orders[i].OrderItems == nil {
			orders[i].OrderItems = []orderitem.OrderItem{}
		}
	}

	return nil
}
