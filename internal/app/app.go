package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/corray333/backend-labs/floor/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/floor/internal/dal/memory"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/dal/rabbitmq"
	eventrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/event"
	outboxrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/floor/internal/dal/uow"
	"github.com/corray333/backend-labs/floor/internal/otel"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
	"github.com/corray333/backend-labs/floor/internal/service/services/billsvc"
	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/floor/internal/transport/consumer"
	httptransport "github.com/corray333/backend-labs/floor/internal/transport/http"
	"github.com/corray333/backend-labs/floor/internal/transport/sse"
	outboxworker "github.com/corray333/backend-labs/floor/internal/worker/outbox"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// App represents the application.
type App struct {
	transport      *httptransport.HTTPTransport
	hubs           map[string]*sse.Hub
	consumers      []*consumer.Consumer
	outboxWorker   *outboxworker.Worker
	publisher      *eventrepo.Publisher
	broker         *rabbitmq.Client
	postgresClient *postgres.Client
	otel           *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	ctx := context.Background()
	otelCtrl := otel.MustInitOtel()

	broker := rabbitmq.MustNewClient()
	if err := broker.DeclareExchange(viper.GetString("rabbitmq.exchange")); err != nil {
		panic(fmt.Sprintf("failed to declare events exchange: %v", err))
	}

	a := &App{
		broker: broker,
		otel:   otelCtrl,
		hubs:   map[string]*sse.Hub{},
	}

	var (
		factory    uow.Factory
		outboxRepo ioutboxrepo.IOutboxRepository
	)
	switch driver := viper.GetString("storage.driver"); driver {
	case DriverPostgres:
		a.postgresClient = postgres.MustNewClient(ctx)
		factory = uow.NewFactory(a.postgresClient)
		outboxRepo = outboxrepo.NewOutboxRepository(a.postgresClient)
	case DriverMemory:
		store := mustSeededStore()
		factory = store.Factory()
		outboxRepo = memory.NewOutboxRepository()
	default:
		panic(fmt.Sprintf("unknown storage.driver %q", driver))
	}

	if viper.GetBool("rabbitmq.outbox.enabled") {
		a.publisher = eventrepo.NewPublisher(broker, eventrepo.WithOutbox(outboxRepo))
		a.outboxWorker = outboxworker.NewWorker(outboxRepo, broker)
	} else {
		a.publisher = eventrepo.NewPublisher(broker)
	}

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(factory),
		ordersvc.WithPublisher(a.publisher),
	)
	billSvc := billsvc.MustNewBillService(
		billsvc.WithUnitOfWorkFactory(factory),
		billsvc.WithPublisher(a.publisher),
	)

	for _, role := range consumer.Roles() {
		hub := sse.NewHub(role,
			sse.WithBufferSize(viper.GetInt("sse.buffer_size")),
			sse.WithHeartbeatInterval(viper.GetDuration("sse."+role+".heartbeat_interval")),
			sse.WithIdleTimeout(viper.GetDuration("sse.idle_timeout")),
		)
		a.hubs[role] = hub
		a.consumers = append(a.consumers, consumer.NewConsumer(broker, role, hub))
	}

	a.transport = httptransport.NewHTTPTransport(orderSvc, billSvc, a.hubs)
	a.transport.RegisterRoutes()

	return a
}

func mustSeededStore() *memory.Store {
	var tables []table.Table
	if err := viper.UnmarshalKey("storage.memory.tables", &tables); err != nil {
		panic(fmt.Sprintf("invalid storage.memory.tables: %v", err))
	}
	var menu []menuitem.MenuItem
	if err := viper.UnmarshalKey("storage.memory.menu", &menu); err != nil {
		panic(fmt.Sprintf("invalid storage.memory.menu: %v", err))
	}

	store := memory.NewStore()
	store.Seed(tables, menu)
	slog.Info("Memory store seeded", "tables", len(tables), "menu_items", len(menu))

	return store
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var wg sync.WaitGroup
	for _, hub := range a.hubs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Run(workCtx)
		}()
	}
	for _, c := range a.consumers {
		go func() {
			if err := c.Run(workCtx); err != nil {
				slog.Error("Consumer error", "error", err)
			}
		}()
	}
	if a.outboxWorker != nil {
		go a.outboxWorker.Start(workCtx)
	}

	go func() {
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("server.http.shutdown_timeout"))
	defer cancel()

	a.shutdown(shutdownCtx)
	cancelWork()
	wg.Wait()

	slog.Info("Application shutdown complete")
}

func (a *App) shutdown(ctx context.Context) {
	// Open streams never finish on their own, so hubs close before the server drains.
	for role, hub := range a.hubs {
		hub.Close()
		slog.Info("Stream hub closed", "role", role)
	}

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	for _, c := range a.consumers {
		if err := c.Shutdown(ctx); err != nil {
			slog.Error("Consumer shutdown error", "error", err)
		}
	}

	if a.outboxWorker != nil {
		a.outboxWorker.Stop()
	}
	a.publisher.Close()

	if err := a.broker.Close(); err != nil {
		slog.Error("RabbitMQ close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if a.postgresClient != nil {
		a.postgresClient.Close()
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otel.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}
}
