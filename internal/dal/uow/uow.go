package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/idisputerepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	auditrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/audit/postgres"
	disputerepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/dispute/postgres"
	orderrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/outbox/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork hands out repositories bound to the pool, or to one transaction
// after Begin.
type UnitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	auditRepo     iauditrepo.IAuditRepository
	disputeRepo   idisputerepo.IDisputeRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work over the client's pool.
func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{pool: client.Pool()}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.Conn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.auditRepo = auditrepo.NewPostgresAuditRepository(conn)
	u.disputeRepo = disputerepo.NewPostgresDisputeRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *UnitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return u.auditRepo
}

func (u *UnitOfWork) DisputeRepository() idisputerepo.IDisputeRepository {
	return u.disputeRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

// Begin starts a transaction and rebinds every repository to it.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return errors.New("unit of work already in a transaction")
	}

	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool.Begin: %w", err)
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback is a no-op after a successful Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}

// Transactor is the transactional part of a unit of work.
type Transactor interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Run executes fn inside a transaction of t, committing on success and
// rolling back when fn or the commit fails.
func Run(ctx context.Context, t Transactor, fn func(ctx context.Context) error) (txErr error) {
	if err := t.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if txErr != nil {
			if rollbackErr := t.Rollback(ctx); rollbackErr != nil {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}

	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit: %w", err)
	}

	return nil
}
