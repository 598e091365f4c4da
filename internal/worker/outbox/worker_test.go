package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/memory"
	"github.com/corray333/backend-labs/floor/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedBroker struct {
	results []error
	keys    []string
	sent    []amqp.Publishing
}

func (b *scriptedBroker) PublishAsync(_, routingKey string, msg amqp.Publishing) (<-chan error, error) {
	b.keys = append(b.keys, routingKey)
	b.sent = append(b.sent, msg)
	result := make(chan error, 1)
	next := b.results[0]
	b.results = b.results[1:]
	result <- next

	return result, nil
}

func newTestWorker(repo *memory.OutboxRepository, b broker, now time.Time) *Worker {
	w := NewWorker(repo, b)
	w.batchSize = 10
	w.retryInterval = 30 * time.Second
	w.confirmTimeout = time.Second
	w.now = func() time.Time { return now }

	return w
}

func TestProcessMessages(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewOutboxRepository()
	repo.SetClock(func() time.Time { return now })

	require.NoError(t, repo.Insert(ctx, outbox.OutboxMessage{RoutingKey: "new-order", MaxRetries: 5, NextRetryAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Insert(ctx, outbox.OutboxMessage{RoutingKey: "paid-bills", MaxRetries: 5, NextRetryAt: now}))

	b := &scriptedBroker{results: []error{nil, errors.New("nacked")}}
	w := newTestWorker(repo, b, now)

	w.processMessages(ctx)

	assert.Equal(t, []string{"new-order", "paid-bills"}, b.keys)

	left := repo.All()
	require.Len(t, left, 1)
	assert.Equal(t, "paid-bills", left[0].RoutingKey)
	assert.Equal(t, 1, left[0].RetryCount)
	assert.Equal(t, "nacked", left[0].LastError)
	assert.Equal(t, now.Add(time.Minute), left[0].NextRetryAt)
}

func TestRepublishKeepsTraceHeaders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewOutboxRepository()
	repo.SetClock(func() time.Time { return now })

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	require.NoError(t, repo.Insert(ctx, outbox.OutboxMessage{
		RoutingKey:  "serve-order",
		Headers:     map[string]string{"traceparent": traceparent},
		MaxRetries:  5,
		NextRetryAt: now,
	}))

	b := &scriptedBroker{results: []error{nil}}
	newTestWorker(repo, b, now).processMessages(ctx)

	require.Len(t, b.sent, 1)
	assert.Equal(t, traceparent, b.sent[0].Headers["traceparent"])
	assert.Empty(t, repo.All())
}

func TestClaimLeaseCoversBatch(t *testing.T) {
	viper.Set("rabbitmq.confirm_timeout", time.Second)
	viper.Set("rabbitmq.outbox.batch_size", 10)
	viper.Set("rabbitmq.outbox.claim_lease", time.Second)
	t.Cleanup(viper.Reset)

	w := NewWorker(memory.NewOutboxRepository(), &scriptedBroker{})
	assert.Equal(t, 11*time.Second, w.claimLease)
}

func TestStopEndsStart(t *testing.T) {
	w := newTestWorker(memory.NewOutboxRepository(), &scriptedBroker{}, time.Now())
	w.pollInterval = time.Hour

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
