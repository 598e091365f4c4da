package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
)

// PostgresMenuItemRepository represents a Postgres menu repository.
type PostgresMenuItemRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresMenuItemRepository creates a new Postgres menu repository.
func NewPostgresMenuItemRepository(conn postgres.GenericConn) *PostgresMenuItemRepository {
	return &PostgresMenuItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByIDs returns the menu items found among ids.
func (r *PostgresMenuItemRepository) GetByIDs(ctx context.Context, ids []int64) ([]menuitem.MenuItem, error) {
	if len(ids) == 0 {
		return []menuitem.MenuItem{}, nil
	}

	sql, args, err := r.sb.
		Select("id", "name", "price_cents", "price_currency").
		From("menu_items").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	result := []menuitem.MenuItem{}
	for rows.Next() {
		var (
			item menuitem.MenuItem
			cur  string
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.PriceCents, &cur); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		if item.PriceCurrency, err = currency.ParseCurrency(cur); err != nil {
			return nil, fmt.Errorf("menu item %d: %w", item.ID, err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
