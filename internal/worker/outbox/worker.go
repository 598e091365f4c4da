package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/interfaces/ioutboxrepo"
	eventrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

var errConfirmTimeout = errors.New("publish not confirmed in time")

type broker interface {
	PublishAsync(exchange, routingKey string, msg amqp.Publishing) (<-chan error, error)
}

// Worker republishes events whose first send failed.
type Worker struct {
	outboxRepo     ioutboxrepo.IOutboxRepository
	broker         broker
	pollInterval   time.Duration
	batchSize      int
	retryInterval  time.Duration
	confirmTimeout time.Duration
	claimLease     time.Duration
	now            func() time.Time
	stopCh         chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	b broker,
) *Worker {
	w := &Worker{
		outboxRepo:     outboxRepo,
		broker:         b,
		pollInterval:   viper.GetDuration("rabbitmq.outbox.poll_interval"),
		batchSize:      viper.GetInt("rabbitmq.outbox.batch_size"),
		retryInterval:  viper.GetDuration("rabbitmq.outbox.retry_interval"),
		confirmTimeout: viper.GetDuration("rabbitmq.confirm_timeout"),
		claimLease:     viper.GetDuration("rabbitmq.outbox.claim_lease"),
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 50
	}
	if w.confirmTimeout <= 0 {
		w.confirmTimeout = 5 * time.Second
	}
	// A claim must outlive one confirm wait per message or another worker may retake it.
	if minLease := w.confirmTimeout * time.Duration(w.batchSize+1); w.claimLease < minLease {
		w.claimLease = minLease
	}

	return w
}

// Start begins processing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) publish(msg outbox.OutboxMessage) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	result, err := w.broker.PublishAsync(msg.ExchangeName, msg.RoutingKey, amqp.Publishing{
		Headers:      headers,
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    w.now(),
		Type:         msg.EventKind,
		Body:         msg.Payload,
	})
	if err != nil {
		return err
	}

	timer := time.NewTimer(w.confirmTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return errConfirmTimeout
	}
}

// processMessages retrieves and processes pending messages from the outbox.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.outboxRepo.ClaimPending(ctx, w.batchSize, w.claimLease)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Processing outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := w.publish(msg); err != nil {
			newRetryCount := msg.RetryCount + 1
			nextRetryAt := w.now().Add(eventrepo.Backoff(w.retryInterval, newRetryCount))

			slog.Warn("Failed to publish message from outbox, will retry",
				"outbox_id", msg.ID,
				"topic", msg.RoutingKey,
				"retry_count", newRetryCount,
				"next_retry", nextRetryAt,
				"error", err,
			)

			if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, err.Error(), nextRetryAt); err != nil {
				slog.Error("Failed to update retry information", "outbox_id", msg.ID, "error", err)
			}

			continue
		}

		if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
			slog.Error("Failed to delete message from outbox after successful publish",
				"outbox_id", msg.ID,
				"error", err,
			)

			continue
		}
		slog.Info("Message successfully published and removed from outbox", "outbox_id", msg.ID, "topic", msg.RoutingKey)
	}
}
