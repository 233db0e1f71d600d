package disputesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/idisputerepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/dal/uow"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

const (
	defaultExchange   = "marketplace.events"
	defaultMaxRetries = 10

	defaultListLimit = 50
	maxListLimit     = 200
)

var tracer = otel.Tracer("disputesvc")

// DisputeService runs the buyer dispute workflow.
type DisputeService struct {
	pgClient   *postgres.Client
	verifier   attachmentVerifier
	idem       *idempotency.Guard
	exchange   string
	maxRetries int
	now        func() time.Time
}

type unitOfWork interface {
	uow.Transactor

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	DisputeRepository() idisputerepo.IDisputeRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// attachmentVerifier confirms that referenced uploads exist.
type attachmentVerifier interface {
	Verify(ctx context.Context, urls []string) error
}

func (s *DisputeService) newUOW() unitOfWork {
	return uow.NewUnitOfWork(s.pgClient)
}

type option func(*DisputeService)

// MustNewDisputeService creates a new DisputeService.
func MustNewDisputeService(opts ...option) *DisputeService {
	s := &DisputeService{
		exchange:   defaultExchange,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pgClient == nil {
		panic("disputesvc: postgres client is required")
	}

	return s
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *DisputeService) {
		s.pgClient = pgClient
	}
}

// WithAttachmentVerifier makes every message with attachments wait for the
// uploads to be confirmed.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAttachmentVerifier(v attachmentVerifier) option {
	return func(s *DisputeService) {
		s.verifier = v
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithIdempotencyGuard(guard *idempotency.Guard) option {
	return func(s *DisputeService) {
		s.idem = guard
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(exchange string, maxRetries int) option {
	return func(s *DisputeService) {
		if exchange != "" {
			s.exchange = exchange
		}
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *DisputeService) {
		s.now = now
	}
}

func (s *DisputeService) verify(ctx context.Context, attachments []string) error {
	if s.verifier == nil || len(attachments) == 0 {
		return nil
	}

	if err := dispute.ValidateAttachments(attachments); err != nil {
		return err
	}

	return s.verifier.Verify(ctx, attachments)
}

func (s *DisputeService) enqueue(
	ctx context.Context,
	work unitOfWork,
	a actor.Actor,
	t event.Type,
	disputeID uuid.UUID,
	payload any,
) error {
	now := s.now()

	e, err := event.New(t, disputeID, a, payload, now)
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

// disputeRef lists the sellers following the thread: the named seller, or
// every seller of the order when the dispute is order-wide.
func disputeRef(d dispute.Dispute, o order.Order) event.DisputeRef {
	sellers := o.SellerIDs()
	if d.SellerID != nil {
		sellers = []string{*d.SellerID}
	}

	return event.DisputeRef{
		DisputeID: d.ID,
		OrderID:   d.OrderID,
		BuyerID:   d.BuyerID,
		SellerIDs: sellers,
	}
}

func getOrder(ctx context.Context, work unitOfWork, id uuid.UUID, lock bool) (order.Order, error) {
	get := work.OrderRepository().Get
	if lock {
		get = work.OrderRepository().GetForUpdate
	}

	o, err := get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}

	o.OrderItems, err = work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: []uuid.UUID{id},
	})
	if err != nil {
		return order.Order{}, err
	}

	return o, nil
}
