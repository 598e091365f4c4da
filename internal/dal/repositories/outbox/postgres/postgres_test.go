package postgresrepo

import (
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimQueryLeasesSkippingLockedRows(t *testing.T) {
	r := &OutboxRepository{sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	query, args, err := r.claimQuery(now, 20, 30*time.Second)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "UPDATE outbox SET next_retry_at = $1 WHERE id IN (SELECT id FROM outbox"), query)
	assert.Contains(t, query, "next_retry_at <= $2")
	assert.Contains(t, query, "retry_count < max_retries")
	assert.Contains(t, query, "LIMIT 20 FOR UPDATE SKIP LOCKED)")
	assert.Contains(t, query, "RETURNING id, event_kind, exchange_name, routing_key, payload, content_type, headers,")
	assert.NotContains(t, query, "?")
	assert.Equal(t, []any{now.Add(30 * time.Second), now}, args)
}
