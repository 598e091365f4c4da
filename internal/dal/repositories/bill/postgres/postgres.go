package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/jackc/pgx/v5"
)

var billColumns = []string{
	"id",
	"table_id",
	"order_ids",
	"total_cents",
	"total_currency",
	"status",
	"created_at",
	"paid_at",
}

// BillDal represents bill data access layer model.
type BillDal struct {
	Id            int64      `db:"id"`
	TableId       int64      `db:"table_id"`
	OrderIds      []int64    `db:"order_ids"`
	TotalCents    int64      `db:"total_cents"`
	TotalCurrency string     `db:"total_currency"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	PaidAt        *time.Time `db:"paid_at"`
}

// ToModel converts BillDal to service layer Bill model.
func (b *BillDal) ToModel() (bill.Bill, error) {
	cur, err := currency.ParseCurrency(b.TotalCurrency)
	if err != nil {
		return bill.Bill{}, fmt.Errorf("bill %d: %w", b.Id, err)
	}
	status, err := bill.ParseStatus(b.Status)
	if err != nil {
		return bill.Bill{}, fmt.Errorf("bill %d: %w", b.Id, err)
	}

	return bill.Bill{
		ID:            b.Id,
		TableID:       b.TableId,
		OrderIDs:      b.OrderIds,
		TotalCents:    b.TotalCents,
		TotalCurrency: cur,
		Status:        status,
		CreatedAt:     b.CreatedAt,
		PaidAt:        b.PaidAt,
	}, nil
}

func scanBill(row pgx.Row) (bill.Bill, error) {
	var dal BillDal
	err := row.Scan(
		&dal.Id,
		&dal.TableId,
		&dal.OrderIds,
		&dal.TotalCents,
		&dal.TotalCurrency,
		&dal.Status,
		&dal.CreatedAt,
		&dal.PaidAt,
	)
	if err != nil {
		return bill.Bill{}, err
	}

	return dal.ToModel()
}

// PostgresBillRepository represents a Postgres bill repository.
type PostgresBillRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresBillRepository creates a new Postgres bill repository.
func NewPostgresBillRepository(conn postgres.GenericConn) *PostgresBillRepository {
	return &PostgresBillRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new bill and returns it with the generated id.
func (r *PostgresBillRepository) Insert(ctx context.Context, b bill.Bill) (bill.Bill, error) {
	sql, args, err := r.sb.
		Insert("bills").
		Columns(billColumns[1:]...).
		Values(
			b.TableID,
			b.OrderIDs,
			b.TotalCents,
			b.TotalCurrency.String(),
			b.Status.String(),
			b.CreatedAt,
			b.PaidAt,
		).
		Suffix("RETURNING id, table_id, order_ids, total_cents, total_currency, status, created_at, paid_at").
		ToSql()
	if err != nil {
		return bill.Bill{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	inserted, err := scanBill(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		return bill.Bill{}, fmt.Errorf("failed to insert bill: %w", err)
	}

	return inserted, nil
}

// Update persists status and payment time.
func (r *PostgresBillRepository) Update(ctx context.Context, b bill.Bill) error {
	sql, args, err := r.sb.
		Update("bills").
		Set("status", b.Status.String()).
		Set("paid_at", b.PaidAt).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update bill %d: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return dalerr.ErrNotFound
	}

	return nil
}

func (r *PostgresBillRepository) getOne(ctx context.Context, query sq.SelectBuilder) (bill.Bill, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return bill.Bill{}, fmt.Errorf("failed to build query: %w", err)
	}

	b, err := scanBill(r.conn.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return bill.Bill{}, dalerr.ErrNotFound
	}
	if err != nil {
		return bill.Bill{}, fmt.Errorf("failed to get bill: %w", err)
	}

	return b, nil
}

// GetByID returns one bill.
func (r *PostgresBillRepository) GetByID(ctx context.Context, id int64, forUpdate bool) (bill.Bill, error) {
	query := r.sb.
		Select(billColumns...).
		From("bills").
		Where(sq.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	return r.getOne(ctx, query)
}

// GetLatestByTable returns the newest bill of a table in the given status.
func (r *PostgresBillRepository) GetLatestByTable(
	ctx context.Context,
	tableID int64,
	status bill.Status,
) (bill.Bill, error) {
	query := r.sb.
		Select(billColumns...).
		From("bills").
		Where(sq.Eq{"table_id": tableID, "status": status.String()}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1)

	return r.getOne(ctx, query)
}
