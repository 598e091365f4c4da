package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
	"github.com/jackc/pgx/v5"
)

// PostgresTableRepository represents a Postgres seat table repository.
type PostgresTableRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresTableRepository creates a new Postgres seat table repository.
func NewPostgresTableRepository(conn postgres.GenericConn) *PostgresTableRepository {
	return &PostgresTableRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByID returns dalerr.ErrNotFound when the table does not exist.
func (r *PostgresTableRepository) GetByID(ctx context.Context, id int64) (table.Table, error) {
	sql, args, err := r.sb.
		Select("id", "number", "seating_capacity").
		From("seat_tables").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to build query: %w", err)
	}

	var t table.Table
	err = r.conn.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.Number, &t.SeatingCapacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return table.Table{}, dalerr.ErrNotFound
	}
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to get table %d: %w", id, err)
	}

	return t, nil
}
