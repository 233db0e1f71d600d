package disputesvc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres/pgtest"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/disputesvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/notificationsvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

var (
	buyer   = actor.Actor{ID: "buyer-1", Role: actor.RoleBuyer}
	other   = actor.Actor{ID: "buyer-2", Role: actor.RoleBuyer}
	sellerA = actor.Actor{ID: "seller-a", Role: actor.RoleSeller}
	sellerB = actor.Actor{ID: "seller-b", Role: actor.RoleSeller}
	admin   = actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
)

// stubVerifier rejects exactly the urls listed in missing.
type stubVerifier struct {
	missing map[string]bool
	calls   int
}

func (v *stubVerifier) Verify(_ context.Context, urls []string) error {
	v.calls++
	for _, u := range urls {
		if v.missing[u] {
			return errors.Join(errs.ErrInvalidArgument, errors.New("upload not found: "+u))
		}
	}

	return nil
}

type DisputeServiceSuite struct {
	suite.Suite

	ctx      context.Context
	db       *pgtest.Database
	orders   *ordersvc.OrderService
	svc      *disputesvc.DisputeService
	verifier *stubVerifier
	now      time.Time
}

func TestDisputeServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(DisputeServiceSuite))
}

func (s *DisputeServiceSuite) SetupSuite() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	db, err := pgtest.Start(s.ctx)
	s.Require().NoError(err)
	s.db = db

	s.verifier = &stubVerifier{missing: map[string]bool{}}
	s.orders = ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(db.Client),
		ordersvc.WithClock(clock),
	)
	s.svc = disputesvc.MustNewDisputeService(
		disputesvc.WithPostgresClient(db.Client),
		disputesvc.WithAttachmentVerifier(s.verifier),
		disputesvc.WithClock(clock),
	)
}

func (s *DisputeServiceSuite) TearDownSuite() {
	if s.db != nil {
		s.Require().NoError(s.db.Close(s.ctx))
	}
}

func (s *DisputeServiceSuite) SetupTest() {
	s.Require().NoError(s.db.Truncate(s.ctx))
	s.verifier.missing = map[string]bool{}
	s.verifier.calls = 0
}

func (s *DisputeServiceSuite) placeOrder() order.Order {
	addr := gofakeit.Address()

	o, err := s.orders.PlaceOrder(s.ctx, buyer, ordersvc.PlaceOrderInput{
		ShippingAddress: order.ShippingAddress{
			Recipient: gofakeit.Name(),
			Phone:     gofakeit.Phone(),
			Line1:     addr.Street,
			City:      addr.City,
			Country:   addr.Country,
		},
		PaymentMethod: order.PaymentCard,
		Items: []ordersvc.PlaceOrderItem{
			{ProductID: "sku-a", SellerID: sellerA.ID, Title: gofakeit.ProductName(), UnitPrice: 1500, Quantity: 1},
			{ProductID: "sku-b", SellerID: sellerB.ID, Title: gofakeit.ProductName(), UnitPrice: 900, Quantity: 3},
		},
	}, "")
	s.Require().NoError(err)

	return o
}

func (s *DisputeServiceSuite) open(orderID uuid.UUID, sellerID *string) dispute.Dispute {
	d, err := s.svc.OpenDispute(s.ctx, buyer, orderID, dispute.Opening{
		Reason:   "item_not_received",
		SellerID: sellerID,
		Details:  gofakeit.Sentence(10),
	}, "")
	s.Require().NoError(err)

	return d
}

func (s *DisputeServiceSuite) routingKeys() []string {
	rows, err := s.db.Client.Pool().Query(s.ctx, `SELECT routing_key FROM outbox WHERE routing_key LIKE 'dispute.%' ORDER BY id`)
	s.Require().NoError(err)
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		s.Require().NoError(rows.Scan(&key))
		keys = append(keys, key)
	}
	s.Require().NoError(rows.Err())

	return keys
}

// statusChanges returns the dispute.status_changed events in outbox order.
func (s *DisputeServiceSuite) statusChanges() []event.Event {
	rows, err := s.db.Client.Pool().Query(s.ctx,
		`SELECT payload FROM outbox WHERE routing_key = $1 ORDER BY id`, string(event.DisputeStatusChanged))
	s.Require().NoError(err)
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var msg outbox.OutboxMessage
		s.Require().NoError(rows.Scan(&msg.Payload))
		e, err := msg.Event()
		s.Require().NoError(err)
		events = append(events, e)
	}
	s.Require().NoError(rows.Err())

	return events
}

func (s *DisputeServiceSuite) TestOpenDispute() {
	o := s.placeOrder()

	d, err := s.svc.OpenDispute(s.ctx, buyer, o.ID, dispute.Opening{
		Reason:      "damaged",
		Details:     "box was crushed",
		Attachments: []string{"https://cdn.example.com/1.jpg"},
	}, "")
	s.Require().NoError(err)
	s.Equal(dispute.StatusOpen, d.Status)
	s.Equal(1, s.verifier.calls)

	stored, err := s.svc.GetDispute(s.ctx, buyer, d.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Messages, 1)
	s.Equal("box was crushed", *stored.Messages[0].Body)
	s.Equal([]string{"https://cdn.example.com/1.jpg"}, stored.Messages[0].Attachments)

	_, err = s.svc.OpenDispute(s.ctx, buyer, o.ID, dispute.Opening{Reason: "again"}, "")
	s.Require().ErrorIs(err, errs.ErrDuplicateDispute)

	s.Equal([]string{"dispute.opened"}, s.routingKeys())
}

func (s *DisputeServiceSuite) TestOpenDispute_Rejected() {
	tests := []struct {
		name    string
		actor   actor.Actor
		prepare func(o order.Order) uuid.UUID
		opening dispute.Opening
		wantErr error
	}{
		{
			name:    "other buyer",
			actor:   other,
			opening: dispute.Opening{Reason: "x"},
			wantErr: errs.ErrForbidden,
		},
		{
			name:    "seller",
			actor:   sellerA,
			opening: dispute.Opening{Reason: "x"},
			wantErr: errs.ErrForbidden,
		},
		{
			name:    "empty reason",
			actor:   buyer,
			opening: dispute.Opening{Reason: "  "},
			wantErr: errs.ErrInvalidArgument,
		},
		{
			name:    "seller not in order",
			actor:   buyer,
			opening: dispute.Opening{Reason: "x", SellerID: ptr("seller-z")},
			wantErr: errs.ErrInvalidArgument,
		},
		{
			name:    "relative attachment",
			actor:   buyer,
			opening: dispute.Opening{Reason: "x", Attachments: []string{"/tmp/a.png"}},
			wantErr: errs.ErrInvalidArgument,
		},
		{
			name:    "missing upload",
			actor:   buyer,
			opening: dispute.Opening{Reason: "x", Attachments: []string{"https://cdn.example.com/gone.jpg"}},
			wantErr: errs.ErrInvalidArgument,
		},
		{
			name:  "unknown order",
			actor: buyer,
			prepare: func(order.Order) uuid.UUID {
				return uuid.New()
			},
			opening: dispute.Opening{Reason: "x"},
			wantErr: errs.ErrNotFound,
		},
		{
			name:  "cancelled order",
			actor: buyer,
			prepare: func(o order.Order) uuid.UUID {
				_, err := s.orders.ChangeStatus(s.ctx, buyer, o.ID, order.StatusCancelled)
				s.Require().NoError(err)
				return o.ID
			},
			opening: dispute.Opening{Reason: "x"},
			wantErr: errs.ErrOrderLocked,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.verifier.missing["https://cdn.example.com/gone.jpg"] = true

			o := s.placeOrder()
			id := o.ID
			if tt.prepare != nil {
				id = tt.prepare(o)
			}

			_, err := s.svc.OpenDispute(s.ctx, tt.actor, id, tt.opening, "")
			s.Require().ErrorIs(err, tt.wantErr)
		})
	}

	s.Empty(s.routingKeys())
}

func (s *DisputeServiceSuite) TestParticipation() {
	o := s.placeOrder()
	targeted := s.open(o.ID, ptr(sellerA.ID))

	tests := []struct {
		name    string
		actor   actor.Actor
		wantErr error
	}{
		{name: "buyer", actor: buyer},
		{name: "named seller", actor: sellerA},
		{name: "admin", actor: admin},
		{name: "other seller in order", actor: sellerB, wantErr: errs.ErrForbidden},
		{name: "other buyer", actor: other, wantErr: errs.ErrForbidden},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.AppendMessage(s.ctx, tt.actor, targeted.ID, gofakeit.Sentence(5), nil)
			if tt.wantErr != nil {
				s.Require().ErrorIs(err, tt.wantErr)

				_, err = s.svc.GetDispute(s.ctx, tt.actor, targeted.ID)
				s.Require().ErrorIs(err, errs.ErrNotFound)
				return
			}
			s.Require().NoError(err)
		})
	}

	d, err := s.svc.GetDispute(s.ctx, admin, targeted.ID)
	s.Require().NoError(err)
	// the opening details plus three accepted messages
	s.Require().Len(d.Messages, 4)
	for i := 1; i < len(d.Messages); i++ {
		s.True(d.Messages[i].CreatedAt.After(d.Messages[i-1].CreatedAt), "thread must be strictly ordered")
	}

	list, err := s.svc.ListDisputes(s.ctx, sellerB, dispute.QueryDisputesModel{})
	s.Require().NoError(err)
	s.Empty(list)

	list, err = s.svc.ListDisputes(s.ctx, sellerA, dispute.QueryDisputesModel{})
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *DisputeServiceSuite) TestOrderWideDisputeIncludesEverySeller() {
	o := s.placeOrder()
	d := s.open(o.ID, nil)

	for _, a := range []actor.Actor{sellerA, sellerB} {
		_, err := s.svc.AppendMessage(s.ctx, a, d.ID, "shipped on time", nil)
		s.Require().NoError(err)
	}

	active, err := s.svc.ActiveDisputeForOrder(s.ctx, sellerB, o.ID)
	s.Require().NoError(err)
	s.Equal(d.ID, active.ID)
}

func (s *DisputeServiceSuite) TestAppendMessage_Rejected() {
	o := s.placeOrder()
	d := s.open(o.ID, nil)

	tooMany := make([]string, dispute.MaxAttachments+1)
	for i := range tooMany {
		tooMany[i] = "https://cdn.example.com/" + gofakeit.UUID()
	}

	tests := []struct {
		name        string
		body        string
		attachments []string
		wantErr     error
	}{
		{name: "empty", body: "   ", wantErr: errs.ErrEmptyMessage},
		{name: "too many attachments", attachments: tooMany, wantErr: errs.ErrInvalidArgument},
		{name: "ftp attachment", attachments: []string{"ftp://files.example.com/a"}, wantErr: errs.ErrInvalidArgument},
		{name: "attachments only", attachments: []string{"https://cdn.example.com/receipt.pdf"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.AppendMessage(s.ctx, buyer, d.ID, tt.body, tt.attachments)
			if tt.wantErr != nil {
				s.Require().ErrorIs(err, tt.wantErr)
				return
			}
			s.Require().NoError(err)
		})
	}

	_, err := s.svc.AppendMessage(s.ctx, buyer, uuid.New(), "hello", nil)
	s.Require().ErrorIs(err, errs.ErrNotFound)
}

func (s *DisputeServiceSuite) TestTransitionDispute() {
	o := s.placeOrder()
	d := s.open(o.ID, nil)

	_, err := s.svc.TransitionDispute(s.ctx, buyer, d.ID, dispute.Resolution{Status: dispute.StatusResolved})
	s.Require().ErrorIs(err, errs.ErrForbidden)

	_, err = s.svc.TransitionDispute(s.ctx, admin, d.ID, dispute.Resolution{
		Status:     dispute.StatusAccepted,
		Resolution: ptr("refund"),
	})
	s.Require().ErrorIs(err, errs.ErrInvalidArgument)

	accepted, err := s.svc.TransitionDispute(s.ctx, admin, d.ID, dispute.Resolution{
		Status:         dispute.StatusAccepted,
		MessageToBuyer: "we are looking into it",
	})
	s.Require().NoError(err)
	s.Equal(dispute.StatusAccepted, accepted.Status)

	_, err = s.svc.TransitionDispute(s.ctx, admin, d.ID, dispute.Resolution{Status: dispute.StatusRejected})
	s.Require().ErrorIs(err, errs.ErrInvalidTransition)

	resolved, err := s.svc.TransitionDispute(s.ctx, admin, d.ID, dispute.Resolution{
		Status:     dispute.StatusResolved,
		Resolution: ptr("  refunded in full "),
	})
	s.Require().NoError(err)
	s.Equal(dispute.StatusResolved, resolved.Status)
	s.Require().NotNil(resolved.Resolution)
	s.Equal("refunded in full", *resolved.Resolution)
	s.NotNil(resolved.ResolvedAt)

	stored, err := s.svc.GetDispute(s.ctx, buyer, d.ID)
	s.Require().NoError(err)
	s.Equal(dispute.StatusResolved, stored.Status)
	last := stored.Messages[len(stored.Messages)-1]
	s.Equal(admin.ID, last.SenderID)
	s.Equal("we are looking into it", *last.Body)

	changes := s.statusChanges()
	s.Require().Len(changes, 2)

	var withMessage, withoutMessage event.DisputeStatusChangedPayload
	s.Require().NoError(changes[0].Decode(&withMessage))
	s.Require().NoError(changes[1].Decode(&withoutMessage))
	s.Require().NotNil(withMessage.MessageID)
	s.Equal(last.ID, *withMessage.MessageID)
	s.Equal("we are looking into it", withMessage.MessagePreview)
	s.Nil(withoutMessage.MessageID)
	s.Empty(withoutMessage.MessagePreview)

	notes, err := notificationsvc.Compose(changes[0], nil, time.Now())
	s.Require().NoError(err)
	var buyerNote string
	for _, n := range notes {
		if n.RecipientID == buyer.ID {
			buyerNote = n.Body
		}
	}
	s.Contains(buyerNote, "we are looking into it")

	_, err = s.svc.AppendMessage(s.ctx, buyer, d.ID, "still waiting", nil)
	s.Require().ErrorIs(err, errs.ErrDisputeClosed)

	_, err = s.svc.AppendMessageToOrder(s.ctx, buyer, o.ID, "still waiting", nil)
	s.Require().ErrorIs(err, errs.ErrDisputeClosed)

	_, err = s.svc.ActiveDisputeForOrder(s.ctx, buyer, o.ID)
	s.Require().ErrorIs(err, errs.ErrNotFound)

	// a resolved dispute frees the order for a new one
	reopened := s.open(o.ID, nil)
	s.NotEqual(d.ID, reopened.ID)

	s.Equal([]string{
		"dispute.opened",
		"dispute.status_changed",
		"dispute.status_changed",
		"dispute.opened",
	}, s.routingKeys())
}

type appendToOrderCase struct {
	name    string
	actor   actor.Actor
	orderID uuid.UUID
	wantErr error
}

func (s *DisputeServiceSuite) TestAppendMessageToOrder() {
	o := s.placeOrder()
	stranger := actor.Actor{ID: "seller-z", Role: actor.RoleSeller}

	// outsiders get the same answer whether or not a dispute exists
	for _, withDispute := range []bool{false, true} {
		if withDispute {
			s.open(o.ID, nil)
		}

		tests := []appendToOrderCase{
			{name: "other buyer", actor: other, orderID: o.ID, wantErr: errs.ErrForbidden},
			{name: "seller outside the order", actor: stranger, orderID: o.ID, wantErr: errs.ErrForbidden},
			{name: "unknown order", actor: buyer, orderID: uuid.New(), wantErr: errs.ErrNotFound},
		}
		if !withDispute {
			tests = append(tests, appendToOrderCase{
				name: "buyer without dispute", actor: buyer, orderID: o.ID, wantErr: errs.ErrNotFound,
			})
		}

		for _, tt := range tests {
			s.Run(tt.name, func() {
				_, err := s.svc.AppendMessageToOrder(s.ctx, tt.actor, tt.orderID, "hello", nil)
				s.Require().ErrorIs(err, tt.wantErr)
			})
		}
	}

	active, err := s.svc.ActiveDisputeForOrder(s.ctx, buyer, o.ID)
	s.Require().NoError(err)

	msg, err := s.svc.AppendMessageToOrder(s.ctx, sellerB, o.ID, "on its way", nil)
	s.Require().NoError(err)
	s.Equal(active.ID, msg.DisputeID)
	s.Equal(actor.RoleSeller, msg.SenderRole)
}

func ptr[T any](v T) *T {
	return &v
}
