package ordersvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	"github.com/corray333/backend-labs/floor/internal/dal/uow"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type publisher interface {
	Publish(ctx context.Context, topic string, evt event.Envelope) error
}

// OrderService owns the order state machine.
type OrderService struct {
	newUOW    uow.Factory
	publisher publisher
	now       func() time.Time
	tracer    trace.Tracer
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		now:    time.Now,
		tracer: otel.Tracer("floor/ordersvc"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWorkFactory sets where units of work come from.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(f uow.Factory) option {
	return func(s *OrderService) {
		s.newUOW = f
	}
}

// WithPublisher sets the event publisher. Without one no events are emitted.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPublisher(p publisher) option {
	return func(s *OrderService) {
		s.publisher = p
	}
}

// WithClock sets the time source for order timestamps and event times.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// ItemRequest is one requested order line.
type ItemRequest struct {
	MenuItemID      int64
	Quantity        int
	SpecialRequests string
}

// CreateOrderRequest is the input of CreateOrder.
type CreateOrderRequest struct {
	TableID int64
	Items   []ItemRequest
}

// OrderResponse is the result of every order operation.
// Changed is false for a no-op transition. Warnings lists failed event hand-offs.
type OrderResponse struct {
	Order    order.Order `json:"order"`
	Changed  bool        `json:"changed"`
	Warnings []string    `json:"warnings,omitempty"`
}

type emission struct {
	topic string
	evt   event.Envelope
}

// publish hands events off after commit. Failures never undo the operation.
func (s *OrderService) publish(ctx context.Context, resp *OrderResponse, emissions ...emission) {
	if s.publisher == nil {
		return
	}

	for _, e := range emissions {
		if err := s.publisher.Publish(ctx, e.topic, e.evt); err != nil {
			slog.Warn("Event hand-off failed",
				"order_id", resp.Order.ID,
				"kind", e.evt.Kind,
				"topic", e.topic,
				"error", err,
			)
			resp.Warnings = append(resp.Warnings, apperr.MessageOf(err))
		}
	}
}

func (s *OrderService) emit(k event.Kind, o order.Order, previous order.Status) emission {
	topic, err := event.TopicFor(k)
	if err != nil {
		panic(err)
	}

	return emission{topic: topic, evt: event.NewOrderEvent(k, o, previous, s.now())}
}

func (s *OrderService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "OrderService."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.MessageOf(err))
	}
	span.End()
}

func orderNotFound(err error, id int64) error {
	if errors.Is(err, dalerr.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "order %d not found", id)
	}

	return err
}
