package postgresrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/service/models/outbox"
	"github.com/jackc/pgx/v5"
)

const outboxTable = "outbox"

var outboxColumns = []string{
	"id",
	"event_kind",
	"exchange_name",
	"routing_key",
	"payload",
	"content_type",
	"headers",
	"retry_count",
	"max_retries",
	"last_error",
	"created_at",
	"updated_at",
	"next_retry_at",
}

// OutboxRepository stores parked publishes in the outbox table.
type OutboxRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
	now  func() time.Time
}

// NewOutboxRepository creates an outbox repository on the client's pool.
func NewOutboxRepository(client *postgres.Client) *OutboxRepository {
	return &OutboxRepository{
		conn: client.Pool(),
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:  time.Now,
	}
}

func scanMessage(row pgx.Row) (outbox.OutboxMessage, error) {
	var msg outbox.OutboxMessage
	err := row.Scan(
		&msg.ID,
		&msg.EventKind,
		&msg.ExchangeName,
		&msg.RoutingKey,
		&msg.Payload,
		&msg.ContentType,
		&msg.Headers,
		&msg.RetryCount,
		&msg.MaxRetries,
		&msg.LastError,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.NextRetryAt,
	)

	return msg, err
}

// Insert parks a message for the outbox worker.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	query, args, err := r.sb.Insert(outboxTable).
		SetMap(map[string]any{
			"event_kind":    msg.EventKind,
			"exchange_name": msg.ExchangeName,
			"routing_key":   msg.RoutingKey,
			"payload":       msg.Payload,
			"content_type":  msg.ContentType,
			"headers":       headers,
			"retry_count":   msg.RetryCount,
			"max_retries":   msg.MaxRetries,
			"last_error":    msg.LastError,
			"created_at":    msg.CreatedAt,
			"updated_at":    msg.UpdatedAt,
			"next_retry_at": msg.NextRetryAt,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to park %s event: %w", msg.EventKind, err)
	}

	return nil
}

// claimQuery pushes next_retry_at of the selected due rows past the lease and returns them.
// Rows locked by a concurrent claim are skipped rather than waited for.
func (r *OutboxRepository) claimQuery(now time.Time, limit int, lease time.Duration) (string, []any, error) {
	due, dueArgs, err := sq.Select("id").
		From(outboxTable).
		Where(sq.LtOrEq{"next_retry_at": now}).
		Where("retry_count < max_retries").
		OrderBy("next_retry_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return "", nil, err
	}

	return r.sb.Update(outboxTable).
		Set("next_retry_at", now.Add(lease)).
		Where("id IN ("+due+")", dueArgs...).
		Suffix("RETURNING " + strings.Join(outboxColumns, ", ")).
		ToSql()
}

// ClaimPending leases up to limit due messages to the caller.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]outbox.OutboxMessage, error) {
	query, args, err := r.claimQuery(r.now(), limit, lease)
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []outbox.OutboxMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

// Delete removes a message after successful delivery.
func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(outboxTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete outbox message %d: %w", id, err)
	}

	return nil
}

// UpdateRetry records a failed attempt; nextRetryAt replaces the claim lease.
func (r *OutboxRepository) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	query, args, err := r.sb.Update(outboxTable).
		SetMap(map[string]any{
			"retry_count":   retryCount,
			"last_error":    lastError,
			"next_retry_at": nextRetryAt,
			"updated_at":    r.now(),
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record retry of outbox message %d: %w", id, err)
	}

	return nil
}
