package eventrepo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/floor/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
)

const contentType = "application/json"

var ErrPublisherClosed = errors.New("publisher closed")

type broker interface {
	PublishAsync(exchange, routingKey string, msg amqp.Publishing) (<-chan error, error)
}

// Publisher serializes domain events and hands them to the broker without waiting for confirmation.
type Publisher struct {
	broker         broker
	exchange       string
	outbox         ioutboxrepo.IOutboxRepository
	maxRetries     int
	retryInterval  time.Duration
	confirmTimeout time.Duration
	now            func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type option func(*Publisher)

// WithOutbox parks failed sends in repo for the outbox worker.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(repo ioutboxrepo.IOutboxRepository) option {
	return func(p *Publisher) {
		p.outbox = repo
	}
}

// WithConfirmTimeout bounds how long a send may stay unconfirmed before it counts as failed.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithConfirmTimeout(d time.Duration) option {
	return func(p *Publisher) {
		p.confirmTimeout = d
	}
}

// WithClock sets the time source used for message timestamps and retry schedules.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(p *Publisher) {
		p.now = now
	}
}

// NewPublisher creates a publisher writing to the configured events exchange.
func NewPublisher(b broker, opts ...option) *Publisher {
	p := &Publisher{
		broker:         b,
		exchange:       viper.GetString("rabbitmq.exchange"),
		maxRetries:     viper.GetInt("rabbitmq.outbox.max_retries"),
		retryInterval:  viper.GetDuration("rabbitmq.outbox.retry_interval"),
		confirmTimeout: viper.GetDuration("rabbitmq.confirm_timeout"),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Publish sends evt to topic. Only failures known before the hand-off are returned;
// confirmation failures are logged and, with an outbox, parked for retry.
func (p *Publisher) Publish(ctx context.Context, topic string, evt event.Envelope) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return apperr.Wrap(apperr.KindPublishFailure, err, "failed to encode %s event", evt.Kind)
	}

	msg := amqp.Publishing{
		Headers:      amqp.Table{},
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Type:         string(evt.Kind),
		Body:         body,
	}
	otel.GetTextMapPropagator().Inject(ctx, rabbitmq.HeaderCarrier(msg.Headers))
	headers := headerMap(msg.Headers)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.park(evt.Kind, topic, body, headers, ErrPublisherClosed)

		return apperr.Wrap(apperr.KindPublishFailure, ErrPublisherClosed, "failed to publish %s to %s", evt.Kind, topic)
	}
	p.wg.Add(1)
	p.mu.Unlock()

	result, err := p.broker.PublishAsync(p.exchange, topic, msg)
	if err != nil {
		p.wg.Done()
		p.park(evt.Kind, topic, body, headers, err)

		return apperr.Wrap(apperr.KindPublishFailure, err, "failed to publish %s to %s", evt.Kind, topic)
	}

	go p.await(evt.Kind, topic, body, headers, result)

	return nil
}

// Close refuses further sends and blocks until every in-flight send has been
// confirmed or handled as failed. Sends refused after Close are parked in the outbox.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

func headerMap(t amqp.Table) map[string]string {
	headers := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}

	return headers
}

func (p *Publisher) await(kind event.Kind, topic string, body []byte, headers map[string]string, result <-chan error) {
	defer p.wg.Done()

	var timeout <-chan time.Time
	if p.confirmTimeout > 0 {
		timer := time.NewTimer(p.confirmTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-result:
		if err == nil {
			slog.Debug("Event published", "kind", kind, "topic", topic)

			return
		}
		slog.Error("Event publish failed", "kind", kind, "topic", topic, "error", err)
		p.park(kind, topic, body, headers, err)
	case <-timeout:
		slog.Error("Event publish not confirmed in time", "kind", kind, "topic", topic, "timeout", p.confirmTimeout)
		p.park(kind, topic, body, headers, context.DeadlineExceeded)
	}
}

func (p *Publisher) park(kind event.Kind, topic string, body []byte, headers map[string]string, cause error) {
	if p.outbox == nil {
		return
	}

	now := p.now()
	msg := outbox.OutboxMessage{
		EventKind:    string(kind),
		ExchangeName: p.exchange,
		RoutingKey:   topic,
		Payload:      body,
		ContentType:  contentType,
		Headers:      headers,
		MaxRetries:   p.maxRetries,
		LastError:    cause.Error(),
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now.Add(Backoff(p.retryInterval, 0)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.outbox.Insert(ctx, msg); err != nil {
		slog.Error("Failed to park event in outbox", "kind", kind, "topic", topic, "error", err)

		return
	}
	slog.Info("Event parked in outbox", "kind", kind, "topic", topic)
}

// Backoff returns base doubled once per completed retry.
func Backoff(base time.Duration, retryCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(retryCount))) * base
}
