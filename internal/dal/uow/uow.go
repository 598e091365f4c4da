package uow

import (
	"context"
	"errors"

	ibillrepo "github.com/corray333/backend-labs/floor/internal/dal/interfaces/ibillrepo"
	imenuitemrepo "github.com/corray333/backend-labs/floor/internal/dal/interfaces/imenuitemrepo"
	iorderitem "github.com/corray333/backend-labs/floor/internal/dal/interfaces/iorderitemrepo"
	iorder "github.com/corray333/backend-labs/floor/internal/dal/interfaces/iorderrepo"
	itablerepo "github.com/corray333/backend-labs/floor/internal/dal/interfaces/itablerepo"
	"github.com/corray333/backend-labs/floor/internal/dal/postgres"
	billrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/bill/postgres"
	menuitemrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/menuitem/postgres"
	orderrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/orderitem/postgres"
	tablerepo "github.com/corray333/backend-labs/floor/internal/dal/repositories/table/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork groups repository calls into one transaction.
// Repositories obtained before Begin run outside any transaction.
// Rollback after Commit is a no-op, so it can always be deferred.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorder.IOrderRepository
	OrderItemRepository() iorderitem.IOrderItemRepository
	BillRepository() ibillrepo.IBillRepository
	TableRepository() itablerepo.ITableRepository
	MenuItemRepository() imenuitemrepo.IMenuItemRepository
}

// Factory opens a fresh unit of work.
type Factory func() UnitOfWork

type unitOfWork struct {
	pool         *pgxpool.Pool
	tx           pgx.Tx
	orderRepo    iorder.IOrderRepository
	itemRepo     iorderitem.IOrderItemRepository
	billRepo     ibillrepo.IBillRepository
	tableRepo    itablerepo.ITableRepository
	menuItemRepo imenuitemrepo.IMenuItemRepository
}

func (u *unitOfWork) OrderRepository() iorder.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitem.IOrderItemRepository {
	return u.itemRepo
}

func (u *unitOfWork) BillRepository() ibillrepo.IBillRepository {
	return u.billRepo
}

func (u *unitOfWork) TableRepository() itablerepo.ITableRepository {
	return u.tableRepo
}

func (u *unitOfWork) MenuItemRepository() imenuitemrepo.IMenuItemRepository {
	return u.menuItemRepo
}

// NewUnitOfWork creates a Postgres-backed unit of work.
func NewUnitOfWork(client *postgres.Client) UnitOfWork {
	u := &unitOfWork{pool: client.Pool()}
	u.bind(client.Pool())

	return u
}

// NewFactory returns a Factory over the given Postgres client.
func NewFactory(client *postgres.Client) Factory {
	return func() UnitOfWork {
		return NewUnitOfWork(client)
	}
}

func (u *unitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.itemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.billRepo = billrepo.NewPostgresBillRepository(conn)
	u.tableRepo = tablerepo.NewPostgresTableRepository(conn)
	u.menuItemRepo = menuitemrepo.NewPostgresMenuItemRepository(conn)
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return err
}
