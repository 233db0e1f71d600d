// Package metrics declares the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_orders_placed_total",
		Help: "Orders successfully placed",
	})

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_order_status_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"from", "to"},
	)

	ItemShippingChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_item_shipping_changes_total",
			Help: "Committed per-item shipping transitions",
		},
		[]string{"to"},
	)

	DisputesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_disputes_opened_total",
		Help: "Disputes opened by buyers",
	})

	DisputeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_dispute_transitions_total",
			Help: "Committed dispute status transitions",
		},
		[]string{"to"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_notifications_created_total",
			Help: "Notification records written",
		},
		[]string{"type"},
	)

	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_push_failures_total",
		Help: "Real-time pushes that could not be delivered",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_outbox_published_total",
		Help: "Outbox messages relayed",
	})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_outbox_publish_failures_total",
		Help: "Outbox relay attempts that failed",
	})

	OutboxDead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketplace_outbox_dead_messages",
		Help: "Outbox messages that exhausted their retries",
	})
)
