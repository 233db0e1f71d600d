package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/dal/attachments"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/marketplace/internal/dal/redis"
	idemrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/idempotency/redis"
	notificationrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/notification/postgres"
	outboxrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/otel"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/disputesvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/notificationsvc"
	"github.com/corray333/backend-labs/marketplace/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/marketplace/internal/transport/consumer"
	grpctransport "github.com/corray333/backend-labs/marketplace/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/marketplace/internal/transport/http"
	"github.com/corray333/backend-labs/marketplace/internal/transport/ws"
	outboxworker "github.com/corray333/backend-labs/marketplace/internal/worker/outbox"
	"github.com/corray333/backend-labs/marketplace/pkg/http/middleware/auth"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App represents the application.
type App struct {
	httpTransport *httptransport.HTTPTransport
	grpcTransport *grpctransport.GRPCTransport
	hub           *ws.Hub
	outboxWorker  *outboxworker.Worker
	consumer      *consumer.Consumer

	postgresClient *postgres.Client
	redisClient    *redis.Client
	rabbitMqClient *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	ctx := context.Background()

	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient(ctx)

	a := &App{
		postgresClient: postgresClient,
		otelController: otelController,
	}
	deps := map[string]grpctransport.Pinger{"postgres": postgresClient}

	authenticator := auth.NewAuthenticator(
		[]byte(viper.GetString("auth.secret")),
		viper.GetString("auth.issuer"),
		viper.GetString("auth.audience"),
	)

	var (
		guard *idempotency.Guard
		relay goredis.UniversalClient
	)
	if viper.GetBool("redis.enabled") {
		a.redisClient = redis.MustNewClient(ctx)
		deps["redis"] = a.redisClient

		store := idemrepo.NewRedisIdempotencyStore(
			a.redisClient.Redis(),
			time.Duration(viper.GetInt("redis.idempotency_ttl_hours"))*time.Hour,
		)
		guard = idempotency.NewGuard(store, time.Duration(viper.GetInt("redis.idempotency_wait_seconds"))*time.Second)
		relay = a.redisClient.Redis()
	}

	var verifier interface {
		Verify(ctx context.Context, urls []string) error
	}
	if viper.GetBool("attachments.verify") {
		verifier = attachments.NewHTTPVerifier(
			&http.Client{},
			time.Duration(viper.GetInt("attachments.timeout_seconds"))*time.Second,
			viper.GetUint64("attachments.retries"),
		)
	}

	a.hub = ws.NewHub(authenticator, auth.TokenFromRequest,
		ws.WithAllowedOrigins(viper.GetStringSlice("server.http.cors.allowed_origins")),
		ws.WithRedisRelay(relay, viper.GetString("redis.push_channel")),
	)

	exchange := viper.GetString("rabbitmq.exchange")
	maxRetries := viper.GetInt("outbox.max_retries")
	s := mustLoadSettlement()

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithIdempotencyGuard(guard),
		ordersvc.WithCommissionPolicy(s.commission),
		ordersvc.WithTaxRate(s.taxRate),
		ordersvc.WithCurrency(s.currency),
		ordersvc.WithReportLocation(s.location),
		ordersvc.WithOutbox(exchange, maxRetries),
	)
	disputeSvc := disputesvc.MustNewDisputeService(
		disputesvc.WithPostgresClient(postgresClient),
		disputesvc.WithIdempotencyGuard(guard),
		disputesvc.WithAttachmentVerifier(verifier),
		disputesvc.WithOutbox(exchange, maxRetries),
	)
	notificationSvc := notificationsvc.MustNewNotificationService(
		notificationsvc.WithRepository(notificationrepo.NewPostgresNotificationRepository(postgresClient.Pool())),
		notificationsvc.WithPusher(a.hub),
		notificationsvc.WithAdminIDs(viper.GetStringSlice("notifications.admin_ids")),
		notificationsvc.WithPageLimits(viper.GetInt("notifications.default_limit"), viper.GetInt("notifications.max_limit")),
	)

	var publisher interface {
		Publish(ctx context.Context, msg outbox.OutboxMessage) error
	}
	if viper.GetBool("rabbitmq.enabled") {
		a.rabbitMqClient = rabbitmq.MustNewClient(ctx)
		deps["rabbitmq"] = a.rabbitMqClient

		queue := viper.GetString("rabbitmq.queue")
		if err := consumer.DeclareTopology(a.rabbitMqClient, exchange, queue); err != nil {
			panic(err)
		}

		publisher = outboxworker.NewBrokerPublisher(a.rabbitMqClient)
		a.consumer = consumer.NewConsumer(
			a.rabbitMqClient,
			notificationSvc,
			queue,
			viper.GetString("rabbitmq.consumer_tag"),
			viper.GetInt("rabbitmq.concurrency"),
		)
	} else {
		// Single instance without a broker: events go straight to fan-out.
		publisher = outboxworker.NewLocalDispatcher(notificationSvc)
	}

	a.outboxWorker = outboxworker.NewWorker(outboxrepo.NewOutboxRepository(postgresClient.Pool()), publisher)
	a.httpTransport = httptransport.NewHTTPTransport(orderSvc, disputeSvc, notificationSvc, authenticator, a.hub)
	a.grpcTransport = grpctransport.NewGRPCTransport(deps)

	return a
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server", "port", viper.GetString("server.http.port"))
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Starting gRPC server", "port", viper.GetString("server.grpc.port"))
		return a.grpcTransport.Run()
	})

	g.Go(func() error {
		interval := time.Duration(viper.GetInt("server.grpc.health_interval_seconds")) * time.Second
		return a.grpcTransport.WatchDependencies(gctx, interval)
	})

	g.Go(func() error {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(gctx)
		return nil
	})

	if a.redisClient != nil {
		g.Go(func() error {
			slog.Info("Starting push relay", "channel", viper.GetString("redis.push_channel"))
			return a.hub.RunRelay(gctx)
		})
	}

	if a.consumer != nil {
		g.Go(func() error {
			slog.Info("Starting consumer", "queue", viper.GetString("rabbitmq.queue"))
			return a.consumer.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")
		a.gracefulShutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Application stopped with error", "error", err)
		os.Exit(1)
	}
}

// gracefulShutdown stops the transports first so no new work arrives, then
// the background workers, then the connections they depend on.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	a.hub.Close()
	slog.Info("Websocket hub closed")

	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped gracefully")

	if a.consumer != nil {
		if err := a.consumer.Shutdown(ctx); err != nil {
			slog.Error("Consumer shutdown error", "error", err)
		} else {
			slog.Info("Consumer stopped gracefully")
		}
	}

	if a.rabbitMqClient != nil {
		if err := a.rabbitMqClient.Close(); err != nil {
			slog.Error("RabbitMQ connection close error", "error", err)
		} else {
			slog.Info("RabbitMQ connection closed gracefully")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			slog.Error("Redis connection close error", "error", err)
		} else {
			slog.Info("Redis connection closed gracefully")
		}
	}

	a.postgresClient.Close()

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
