package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var orderColumns = []string{
	"id",
	"table_id",
	"status",
	"bill_id",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id        int64       `db:"id"`
	TableId   int64       `db:"table_id"`
	Status    string      `db:"status"`
	BillId    pgtype.Int8 `db:"bill_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (order.Order, error) {
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return order.Order{}, fmt.Errorf("order %d: %w", o.Id, err)
	}

	model := order.Order{
		ID:         o.Id,
		TableID:    o.TableId,
		Status:     status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		OrderItems: []orderitem.OrderItem{},
	}
	if o.BillId.Valid {
		billID := o.BillId.Int64
		model.BillID = &billID
	}

	return model, nil
}

func billIDArg(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}

	return pgtype.Int8{Int64: *id, Valid: true}
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.TableId,
		&dal.Status,
		&dal.BillId,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	return dal.ToModel()
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new order and returns it with the generated id.
// Items are stored separately through the order item repository.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	sql, args, err := r.sb.
		Insert("orders").
		Columns("table_id", "status", "bill_id", "created_at", "updated_at").
		Values(o.TableID, o.Status.String(), billIDArg(o.BillID), o.CreatedAt, o.UpdatedAt).
		Suffix("RETURNING id, table_id, status, bill_id, created_at, updated_at").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	inserted, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	inserted.OrderItems = append(inserted.OrderItems, o.OrderItems...)

	return inserted, nil
}

// Update persists status, bill reference and update time.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order) error {
	sql, args, err := r.sb.
		Update("orders").
		Set("status", o.Status.String()).
		Set("bill_id", billIDArg(o.BillID)).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return dalerr.ErrNotFound
	}

	return nil
}

// GetByID returns one order without items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64, forUpdate bool) (order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build query: %w", err)
	}

	o, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, dalerr.ErrNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to get order %d: %w", id, err)
	}

	return o, nil
}

// Query retrieves orders based on filter criteria, oldest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("id ASC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.TableIds) > 0 {
		query = query.Where(sq.Eq{"table_id": filter.TableIds})
	}

	if len(filter.BillIds) > 0 {
		query = query.Where(sq.Eq{"bill_id": filter.BillIds})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, s.String())
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if filter.UnbilledOnly {
		query = query.Where(sq.Eq{"bill_id": nil})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	if filter.ForUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
