package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	appendmessage "github.com/corray333/backend-labs/marketplace/internal/transport/http/append_message"
	changestatus "github.com/corray333/backend-labs/marketplace/internal/transport/http/change_status"
	createorder "github.com/corray333/backend-labs/marketplace/internal/transport/http/create_order"
	getdispute "github.com/corray333/backend-labs/marketplace/internal/transport/http/get_dispute"
	getorder "github.com/corray333/backend-labs/marketplace/internal/transport/http/get_order"
	itemshipping "github.com/corray333/backend-labs/marketplace/internal/transport/http/item_shipping"
	listdisputes "github.com/corray333/backend-labs/marketplace/internal/transport/http/list_disputes"
	listorders "github.com/corray333/backend-labs/marketplace/internal/transport/http/list_orders"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/notifications"
	opendispute "github.com/corray333/backend-labs/marketplace/internal/transport/http/open_dispute"
	orderhistory "github.com/corray333/backend-labs/marketplace/internal/transport/http/order_history"
	ordersettlement "github.com/corray333/backend-labs/marketplace/internal/transport/http/order_settlement"
	paymentreference "github.com/corray333/backend-labs/marketplace/internal/transport/http/payment_reference"
	salesreport "github.com/corray333/backend-labs/marketplace/internal/transport/http/sales_report"
	transitiondispute "github.com/corray333/backend-labs/marketplace/internal/transport/http/transition_dispute"
	"github.com/corray333/backend-labs/marketplace/pkg/http/middleware/auth"
	metricsmw "github.com/corray333/backend-labs/marketplace/pkg/http/middleware/metrics"
	"github.com/corray333/backend-labs/marketplace/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/marketplace/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

// orderService is the part of the order service exposed over HTTP.
type orderService interface {
	createOrderService
	listOrdersService
	getOrderService
	paymentReferenceService
	changeStatusService
	itemShippingService
	historyService
	settlementService
	salesReportService
}

type disputeService interface {
	openDisputeService
	getDisputeService
	listDisputesService
	appendMessageService
	transitionDisputeService
}

// HTTPTransport serves the JSON API, the metrics endpoint and the websocket
// upgrade.
type HTTPTransport struct {
	server        *http.Server
	router        *chi.Mux
	orders        orderService
	disputes      disputeService
	notifications notificationService
	auth          *auth.Authenticator
	ws            http.Handler
}

func NewHTTPTransport(
	orders orderService,
	disputes disputeService,
	notifications notificationService,
	authenticator *auth.Authenticator,
	ws http.Handler,
) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:        server,
		router:        router,
		orders:        orders,
		disputes:      disputes,
		notifications: notifications,
		auth:          authenticator,
		ws:            ws,
	}
}

func (h *HTTPTransport) Run() error {
	slog.Info("HTTP server is listening", "addr", h.server.Addr)

	return h.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, mostly for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Handle("/metrics", promhttp.Handler())
	h.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if h.ws != nil {
		h.router.Get("/ws", h.ws.ServeHTTP)
	}

	h.router.Route("/api", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/", h.listOrders)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getOrder)
				r.Post("/payment-reference", h.submitPaymentReference)
				r.Post("/status", h.changeStatus)
				r.Put("/items/{productId}/shipping", h.markItemShipping)
				r.Get("/history", h.history)
				r.Get("/settlement", h.settlement)
				r.Post("/disputes", h.openDispute)
				r.Get("/disputes/active", h.activeDispute)
				r.Post("/disputes/messages", h.appendMessageToOrder)
			})
		})

		r.Get("/reports/sales", h.salesReport)

		r.Route("/disputes", func(r chi.Router) {
			r.Get("/", h.listDisputes)
			r.Get("/{id}", h.getDispute)
			r.Post("/{id}/messages", h.appendMessage)
		})

		r.Route("/admin/disputes", func(r chi.Router) {
			r.Get("/", h.listDisputes)
			r.Patch("/{id}", h.transitionDispute)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Get("/unread-count", h.unreadCount)
			r.Post("/{id}/read", h.markRead)
			r.Post("/read-all", h.markAllRead)
		})
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.orders)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) submitPaymentReference(w http.ResponseWriter, r *http.Request) {
	paymentreference.SubmitPaymentReference(w, r, h.orders)
}

func (h *HTTPTransport) changeStatus(w http.ResponseWriter, r *http.Request) {
	changestatus.ChangeStatus(w, r, h.orders)
}

func (h *HTTPTransport) markItemShipping(w http.ResponseWriter, r *http.Request) {
	itemshipping.MarkItemShipping(w, r, h.orders)
}

func (h *HTTPTransport) history(w http.ResponseWriter, r *http.Request) {
	orderhistory.History(w, r, h.orders)
}

func (h *HTTPTransport) settlement(w http.ResponseWriter, r *http.Request) {
	ordersettlement.Settlement(w, r, h.orders)
}

func (h *HTTPTransport) salesReport(w http.ResponseWriter, r *http.Request) {
	salesreport.SalesReport(w, r, h.orders)
}

func (h *HTTPTransport) openDispute(w http.ResponseWriter, r *http.Request) {
	opendispute.OpenDispute(w, r, h.disputes)
}

func (h *HTTPTransport) activeDispute(w http.ResponseWriter, r *http.Request) {
	getdispute.ActiveDisputeForOrder(w, r, h.disputes)
}

func (h *HTTPTransport) getDispute(w http.ResponseWriter, r *http.Request) {
	getdispute.GetDispute(w, r, h.disputes)
}

func (h *HTTPTransport) listDisputes(w http.ResponseWriter, r *http.Request) {
	listdisputes.ListDisputes(w, r, h.disputes)
}

func (h *HTTPTransport) appendMessage(w http.ResponseWriter, r *http.Request) {
	appendmessage.AppendMessage(w, r, h.disputes)
}

func (h *HTTPTransport) appendMessageToOrder(w http.ResponseWriter, r *http.Request) {
	appendmessage.AppendMessageToOrder(w, r, h.disputes)
}

func (h *HTTPTransport) transitionDispute(w http.ResponseWriter, r *http.Request) {
	transitiondispute.TransitionDispute(w, r, h.disputes)
}

func (h *HTTPTransport) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications.List(w, r, h.notifications)
}

func (h *HTTPTransport) unreadCount(w http.ResponseWriter, r *http.Request) {
	notifications.UnreadCount(w, r, h.notifications)
}

func (h *HTTPTransport) markRead(w http.ResponseWriter, r *http.Request) {
	notifications.MarkRead(w, r, h.notifications)
}

func (h *HTTPTransport) markAllRead(w http.ResponseWriter, r *http.Request) {
	notifications.MarkAllRead(w, r, h.notifications)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(metricsmw.NewMetricsMiddleware(metrics.HTTPRequests, metrics.HTTPDuration))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
