package outbox

import (
	"time"
)

// OutboxMessage is a serialized event whose broker send was rejected and awaits another attempt.
type OutboxMessage struct {
	ID           int64
	EventKind    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string

	// Headers carries the propagated trace context of the original send.
	Headers     map[string]string
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NextRetryAt time.Time
}

// Exhausted reports whether no attempts remain.
func (m *OutboxMessage) Exhausted() bool {
	return m.RetryCount >= m.MaxRetries
}
