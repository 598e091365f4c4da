package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/outbox"
)

// OutboxRepository keeps parked publishes in memory.
type OutboxRepository struct {
	mu       sync.Mutex
	messages map[int64]outbox.OutboxMessage
	nextID   int64
	now      func() time.Time
}

// NewOutboxRepository creates an empty in-memory outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		messages: map[int64]outbox.OutboxMessage{},
		now:      time.Now,
	}
}

// SetClock replaces the time source used to pick due messages.
func (r *OutboxRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now = now
}

func (r *OutboxRepository) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	msg.ID = r.nextID
	msg.Payload = slices.Clone(msg.Payload)
	msg.Headers = maps.Clone(msg.Headers)
	r.messages[msg.ID] = msg

	return nil
}

// ClaimPending returns due messages and moves them out of reach for lease.
func (r *OutboxRepository) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]outbox.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	due := []outbox.OutboxMessage{}
	for _, msg := range r.messages {
		if !msg.NextRetryAt.After(now) && !msg.Exhausted() {
			due = append(due, msg)
		}
	}
	slices.SortFunc(due, func(a, b outbox.OutboxMessage) int {
		return a.NextRetryAt.Compare(b.NextRetryAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		claimed := r.messages[due[i].ID]
		claimed.NextRetryAt = now.Add(lease)
		r.messages[claimed.ID] = claimed
		due[i].NextRetryAt = claimed.NextRetryAt
	}

	return due, nil
}

func (r *OutboxRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, id)

	return nil
}

func (r *OutboxRepository) UpdateRetry(
	_ context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil
	}
	msg.RetryCount = retryCount
	msg.LastError = lastError
	msg.NextRetryAt = nextRetryAt
	msg.UpdatedAt = r.now()
	r.messages[id] = msg

	return nil
}

// All returns every stored message ordered by id.
func (r *OutboxRepository) All() []outbox.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]outbox.OutboxMessage, 0, len(r.messages))
	for _, id := range sortedKeys(r.messages) {
		result = append(result, r.messages[id])
	}

	return result
}
