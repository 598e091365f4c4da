package eventrepo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/memory"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type sent struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeBroker struct {
	mu        sync.Mutex
	sent      []sent
	refuse    error
	confirmed chan error
}

func (b *fakeBroker) PublishAsync(exchange, routingKey string, msg amqp.Publishing) (<-chan error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refuse != nil {
		return nil, b.refuse
	}
	b.sent = append(b.sent, sent{exchange: exchange, key: routingKey, msg: msg})
	if b.confirmed != nil {
		return b.confirmed, nil
	}
	result := make(chan error, 1)
	result <- nil

	return result, nil
}

func orderCreated() event.Envelope {
	return event.NewOrderEvent(event.KindOrderCreated, order.Order{ID: 1, TableID: 5, Status: order.StatusPending}, "", time.Now())
}

func TestPublishRoutesAndEncodes(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b)
	p.exchange = "floor.events"

	require.NoError(t, p.Publish(context.Background(), event.TopicNewOrder, orderCreated()))
	p.Close()

	require.Len(t, b.sent, 1)
	assert.Equal(t, "floor.events", b.sent[0].exchange)
	assert.Equal(t, event.TopicNewOrder, b.sent[0].key)
	assert.Equal(t, "application/json", b.sent[0].msg.ContentType)
	assert.Equal(t, string(event.KindOrderCreated), b.sent[0].msg.Type)

	var decoded event.Envelope
	require.NoError(t, json.Unmarshal(b.sent[0].msg.Body, &decoded))
	assert.NoError(t, decoded.Validate())
	assert.Equal(t, int64(5), decoded.Order.TableID)
}

func TestRefusedPublishIsPublishFailure(t *testing.T) {
	repo := memory.NewOutboxRepository()
	b := &fakeBroker{refuse: errors.New("channel closed")}
	p := NewPublisher(b, WithOutbox(repo))
	p.maxRetries = 3

	err := p.Publish(context.Background(), event.TopicNewOrder, orderCreated())
	assert.ErrorIs(t, err, apperr.ErrPublishFailure)

	parked := repo.All()
	require.Len(t, parked, 1)
	assert.Equal(t, event.TopicNewOrder, parked[0].RoutingKey)
	assert.Equal(t, 3, parked[0].MaxRetries)
	assert.Contains(t, parked[0].LastError, "channel closed")
}

func TestNackedPublishIsParkedNotReturned(t *testing.T) {
	repo := memory.NewOutboxRepository()
	confirmed := make(chan error, 1)
	b := &fakeBroker{confirmed: confirmed}
	p := NewPublisher(b, WithOutbox(repo))

	require.NoError(t, p.Publish(context.Background(), event.TopicServeOrder, orderCreated()))
	confirmed <- errors.New("nacked")
	p.Close()

	parked := repo.All()
	require.Len(t, parked, 1)
	assert.Equal(t, event.TopicServeOrder, parked[0].RoutingKey)
}

func TestUnconfirmedPublishTimesOut(t *testing.T) {
	repo := memory.NewOutboxRepository()
	b := &fakeBroker{confirmed: make(chan error)}
	p := NewPublisher(b, WithOutbox(repo), WithConfirmTimeout(10*time.Millisecond))

	require.NoError(t, p.Publish(context.Background(), event.TopicPaidBills, orderCreated()))
	p.Close()

	assert.Len(t, repo.All(), 1)
}

func TestParkedPublishKeepsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	repo := memory.NewOutboxRepository()
	confirmed := make(chan error, 1)
	p := NewPublisher(&fakeBroker{confirmed: confirmed}, WithOutbox(repo))

	require.NoError(t, p.Publish(ctx, event.TopicNewOrder, orderCreated()))
	confirmed <- errors.New("nacked")
	p.Close()

	parked := repo.All()
	require.Len(t, parked, 1)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", parked[0].Headers["traceparent"])
}

func TestPublishAfterCloseIsParked(t *testing.T) {
	repo := memory.NewOutboxRepository()
	b := &fakeBroker{}
	p := NewPublisher(b, WithOutbox(repo))
	p.Close()

	err := p.Publish(context.Background(), event.TopicPaidBills, orderCreated())
	assert.ErrorIs(t, err, apperr.ErrPublishFailure)
	assert.ErrorIs(t, err, ErrPublisherClosed)
	assert.Empty(t, b.sent)

	parked := repo.All()
	require.Len(t, parked, 1)
	assert.Equal(t, event.TopicPaidBills, parked[0].RoutingKey)
}

func TestCloseWaitsForConcurrentPublishes(t *testing.T) {
	repo := memory.NewOutboxRepository()
	b := &fakeBroker{}
	p := NewPublisher(b, WithOutbox(repo))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Publish(context.Background(), event.TopicNewOrder, orderCreated())
		}()
	}
	p.Close()
	wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 20, len(b.sent)+len(repo.All()))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, Backoff(30*time.Second, 0))
	assert.Equal(t, 120*time.Second, Backoff(30*time.Second, 2))
}
