package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id              int64     `db:"id"`
	OrderId         int64     `db:"order_id"`
	MenuItemId      int64     `db:"menu_item_id"`
	MenuItemName    string    `db:"menu_item_name"`
	Quantity        int       `db:"quantity"`
	PriceCents      int64     `db:"price_cents"`
	PriceCurrency   string    `db:"price_currency"`
	SpecialRequests string    `db:"special_requests"`
	CreatedAt       time.Time `db:"created_at"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(oi.PriceCurrency)
	if err != nil {
		return orderitem.OrderItem{}, fmt.Errorf("order item %d: %w", oi.Id, err)
	}

	return orderitem.OrderItem{
		ID:              oi.Id,
		OrderID:         oi.OrderId,
		MenuItemID:      oi.MenuItemId,
		MenuItemName:    oi.MenuItemName,
		Quantity:        oi.Quantity,
		PriceCents:      oi.PriceCents,
		PriceCurrency:   cur,
		SpecialRequests: oi.SpecialRequests,
		CreatedAt:       oi.CreatedAt,
	}, nil
}

const returningItemColumns = "RETURNING id, order_id, menu_item_id, menu_item_name, quantity, " +
	"price_cents, price_currency, special_requests, created_at"

func scanItems(rows pgx.Rows) ([]orderitem.OrderItem, error) {
	defer rows.Close()

	result := []orderitem.OrderItem{}
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.MenuItemId,
			&dal.MenuItemName,
			&dal.Quantity,
			&dal.PriceCents,
			&dal.PriceCurrency,
			&dal.SpecialRequests,
			&dal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, err
		}
		result = append(result, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.GenericConn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts order items in one statement and returns them with ids.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	builder := r.sb.
		Insert("order_items").
		Columns(
			"order_id",
			"menu_item_id",
			"menu_item_name",
			"quantity",
			"price_cents",
			"price_currency",
			"special_requests",
			"created_at",
		)
	for _, oi := range orderItems {
		builder = builder.Values(
			oi.OrderID,
			oi.MenuItemID,
			oi.MenuItemName,
			oi.Quantity,
			oi.PriceCents,
			oi.PriceCurrency.String(),
			oi.SpecialRequests,
			oi.CreatedAt,
		)
	}

	sql, args, err := builder.Suffix(returningItemColumns).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}

	return scanItems(rows)
}

// DeleteByOrderIDs removes every item of the given orders.
func (r *PostgresOrderItemRepository) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return nil
	}

	sql, args, err := r.sb.
		Delete("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	return nil
}

// Query retrieves order items based on filter criteria.
func (r *PostgresOrderItemRepository) Query(
	ctx context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	query := r.sb.
		Select(
			"id",
			"order_id",
			"menu_item_id",
			"menu_item_name",
			"quantity",
			"price_cents",
			"price_currency",
			"special_requests",
			"created_at",
		).
		From("order_items").
		OrderBy("id ASC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}

	return scanItems(rows)
}
