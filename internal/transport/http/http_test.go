package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/corray333/backend-labs/marketplace/pkg/http/middleware/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Embedded interfaces panic on methods a test does not stub.
type fakeOrders struct {
	orderService

	placed         ordersvc.PlaceOrderInput
	idempotencyKey string
	actor          actor.Actor
	changeErr      error
}

func (f *fakeOrders) PlaceOrder(_ context.Context, a actor.Actor, in ordersvc.PlaceOrderInput, key string) (order.Order, error) {
	f.actor, f.placed, f.idempotencyKey = a, in, key

	return order.Order{ID: uuid.New(), BuyerID: a.ID, Status: order.StatusPending}, nil
}

func (f *fakeOrders) ChangeStatus(_ context.Context, _ actor.Actor, id uuid.UUID, to order.Status) (order.Order, error) {
	if f.changeErr != nil {
		return order.Order{}, f.changeErr
	}

	return order.Order{ID: id, Status: to}, nil
}

func (f *fakeOrders) MarkItemShipping(
	_ context.Context,
	_ actor.Actor,
	id uuid.UUID,
	productID string,
	next orderitem.ShippingStatus,
) (order.Order, error) {
	return order.Order{ID: id, OrderItems: []orderitem.OrderItem{
		{ProductID: "other", ShippingStatus: orderitem.ShippingPending},
		{ProductID: productID, ShippingStatus: next},
	}}, nil
}

type fakeDisputes struct {
	disputeService

	transitioned dispute.Resolution
}

func (f *fakeDisputes) TransitionDispute(_ context.Context, _ actor.Actor, id uuid.UUID, r dispute.Resolution) (dispute.Dispute, error) {
	f.transitioned = r

	return dispute.Dispute{ID: id, Status: r.Status, Resolution: r.Resolution}, nil
}

func (f *fakeDisputes) AppendMessageToOrder(context.Context, actor.Actor, uuid.UUID, string, []string) (dispute.Message, error) {
	return dispute.Message{}, fmt.Errorf("dispute x: %w", errs.ErrDisputeClosed)
}

type fakeNotifications struct {
	notificationService

	unread int
}

func (f *fakeNotifications) MarkAllRead(context.Context, actor.Actor) (int64, error) {
	n := int64(f.unread)
	f.unread = 0

	return n, nil
}

func (f *fakeNotifications) UnreadCount(context.Context, actor.Actor) (int, error) {
	return f.unread, nil
}

type HTTPTransportSuite struct {
	suite.Suite

	auth          *auth.Authenticator
	orders        *fakeOrders
	disputes      *fakeDisputes
	notifications *fakeNotifications
	handler       http.Handler
}

func TestHTTPTransportSuite(t *testing.T) {
	suite.Run(t, new(HTTPTransportSuite))
}

func (s *HTTPTransportSuite) SetupTest() {
	s.auth = auth.NewAuthenticator([]byte("secret"), "", "")
	s.orders = &fakeOrders{}
	s.disputes = &fakeDisputes{}
	s.notifications = &fakeNotifications{unread: 3}

	transport := NewHTTPTransport(s.orders, s.disputes, s.notifications, s.auth, nil)
	transport.RegisterRoutes()
	s.handler = transport.Handler()
}

func (s *HTTPTransportSuite) do(a *actor.Actor, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if a != nil {
		token, err := s.auth.Sign(*a, time.Minute)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))

	return v
}

var (
	buyer = actor.Actor{ID: "buyer-1", Role: actor.RoleBuyer}
	admin = actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
)

func (s *HTTPTransportSuite) TestRequiresAuthentication() {
	rec := s.do(nil, http.MethodGet, "/api/orders", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HTTPTransportSuite) TestHealthAndMetricsArePublic() {
	s.Equal(http.StatusNoContent, s.do(nil, http.MethodGet, "/healthz", "").Code)
	s.Equal(http.StatusOK, s.do(nil, http.MethodGet, "/metrics", "").Code)
}

func (s *HTTPTransportSuite) TestCreateOrder() {
	body := `{
		"shippingAddress": {"recipient":"Ann","phone":"+1","line1":"Main 1","city":"Town","country":"US"},
		"paymentMethod": "mobile_money",
		"items": [{"productId":"p1","sellerId":"s1","title":"Mug","unitPriceCents":1250,"quantity":2}]
	}`

	rec := s.do(&buyer, http.MethodPost, "/api/orders", body, "Idempotency-Key", "checkout-1")

	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal(buyer, s.orders.actor)
	s.Equal("checkout-1", s.orders.idempotencyKey)
	s.Equal(order.PaymentMobileMoney, s.orders.placed.PaymentMethod)
	s.Require().Len(s.orders.placed.Items, 1)
	s.EqualValues(1250, s.orders.placed.Items[0].UnitPrice)
	s.Equal("Town", s.orders.placed.ShippingAddress.City)
}

func (s *HTTPTransportSuite) TestCreateOrder_Invalid() {
	tests := []struct {
		name string
		body string
	}{
		{name: "no items", body: `{"shippingAddress":{"recipient":"a","phone":"1","line1":"l","city":"c","country":"US"},"paymentMethod":"card","items":[]}`},
		{name: "zero quantity", body: `{"shippingAddress":{"recipient":"a","phone":"1","line1":"l","city":"c","country":"US"},"paymentMethod":"card","items":[{"productId":"p","sellerId":"s","title":"t","unitPriceCents":1,"quantity":0}]}`},
		{name: "unknown payment method", body: `{"shippingAddress":{"recipient":"a","phone":"1","line1":"l","city":"c","country":"US"},"paymentMethod":"barter","items":[{"productId":"p","sellerId":"s","title":"t","unitPriceCents":1,"quantity":1}]}`},
		{name: "missing address", body: `{"paymentMethod":"card","items":[{"productId":"p","sellerId":"s","title":"t","unitPriceCents":1,"quantity":1}]}`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(&buyer, http.MethodPost, "/api/orders", tt.body)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal("invalid_argument", decode[httpio.ErrorBody](s.T(), rec).Error)
		})
	}
}

func (s *HTTPTransportSuite) TestChangeStatus() {
	id := uuid.New()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "accepted", body: `{"status":"completed"}`, wantStatus: http.StatusOK},
		{name: "invalid transition", body: `{"status":"processing"}`, err: errs.ErrInvalidTransition, wantStatus: http.StatusConflict, wantCode: "invalid_transition"},
		{name: "missing reference", body: `{"status":"paid"}`, err: errs.ErrMissingPaymentReference, wantStatus: http.StatusUnprocessableEntity, wantCode: "missing_payment_reference"},
		{name: "unknown status", body: `{"status":"lost"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.orders.changeErr = tt.err

			rec := s.do(&admin, http.MethodPost, "/api/orders/"+id.String()+"/status", tt.body)
			s.Require().Equal(tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantCode != "" {
				s.Equal(tt.wantCode, decode[httpio.ErrorBody](s.T(), rec).Error)
			} else {
				s.Equal(order.StatusCompleted, decode[order.Order](s.T(), rec).Status)
			}
		})
	}
}

func (s *HTTPTransportSuite) TestMalformedID() {
	rec := s.do(&admin, http.MethodPost, "/api/orders/not-a-uuid/status", `{"status":"paid"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HTTPTransportSuite) TestMarkItemShipping_ReturnsItem() {
	path := "/api/orders/" + uuid.NewString() + "/items/p-7/shipping"
	rec := s.do(&admin, http.MethodPut, path, `{"shippingStatus":"shipped"}`)

	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	item := decode[orderitem.OrderItem](s.T(), rec)
	s.Equal("p-7", item.ProductID)
	s.Equal(orderitem.ShippingShipped, item.ShippingStatus)
}

func (s *HTTPTransportSuite) TestTransitionDispute() {
	body := `{"status":"resolved","resolution":"Refund issued","message":"We refunded you"}`
	rec := s.do(&admin, http.MethodPatch, "/api/admin/disputes/"+uuid.NewString(), body)

	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(dispute.StatusResolved, s.disputes.transitioned.Status)
	s.Require().NotNil(s.disputes.transitioned.Resolution)
	s.Equal("Refund issued", *s.disputes.transitioned.Resolution)
	s.Equal("We refunded you", s.disputes.transitioned.MessageToBuyer)
}

func (s *HTTPTransportSuite) TestAppendToClosedDispute() {
	rec := s.do(&buyer, http.MethodPost, "/api/orders/"+uuid.NewString()+"/disputes/messages", `{"message":"hello?"}`)

	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("dispute_closed", decode[httpio.ErrorBody](s.T(), rec).Error)
}

func (s *HTTPTransportSuite) TestMarkAllRead_Idempotent() {
	type response struct {
		Updated     int64 `json:"updated"`
		UnreadCount int   `json:"unreadCount"`
	}

	first := s.do(&buyer, http.MethodPost, "/api/notifications/read-all", "")
	s.Require().Equal(http.StatusOK, first.Code)
	s.Equal(response{Updated: 3}, decode[response](s.T(), first))

	second := s.do(&buyer, http.MethodPost, "/api/notifications/read-all", "")
	s.Require().Equal(http.StatusOK, second.Code)
	s.Equal(response{}, decode[response](s.T(), second))

	unread := s.do(&buyer, http.MethodGet, "/api/notifications/unread-count", "")
	s.Require().Equal(http.StatusOK, unread.Code)
	assert.JSONEq(s.T(), `{"unread":0}`, unread.Body.String())
}
