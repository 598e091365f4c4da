package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/outbox"
)

// IOutboxRepository defines the interface for outbox operations.
type IOutboxRepository interface {
	// Insert parks a message whose publish failed
	Insert(ctx context.Context, msg outbox.OutboxMessage) error

	// ClaimPending returns up to limit due messages and hides them from other
	// claimers for lease, so concurrent workers never republish the same batch
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]outbox.OutboxMessage, error)

	// Delete removes a message from the outbox after successful delivery
	Delete(ctx context.Context, id int64) error

	// UpdateRetry updates retry count and error information
	UpdateRetry(
		ctx context.Context,
		id int64,
		retryCount int,
		lastError string,
		nextRetryAt time.Time,
	) error
}
