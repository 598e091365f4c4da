package memory

import (
	"context"
	"sync"

	"github.com/corray333/backend-labs/floor/internal/dal/uow"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
)

// Store keeps every entity in process memory.
// A unit of work holds the store lock from Begin until Commit or Rollback,
// so transactions are fully serialized and see a private copy of the state.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// AddTable inserts or replaces a seat table.
func (s *Store) AddTable(t table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.tables[t.ID] = t
}

// PutMenuItem inserts or replaces a menu item, e.g. to change its price.
func (s *Store) PutMenuItem(m menuitem.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.menu[m.ID] = m
}

// Seed loads tables and menu items.
func (s *Store) Seed(tables []table.Table, menu []menuitem.MenuItem) {
	for _, t := range tables {
		s.AddTable(t)
	}
	for _, m := range menu {
		s.PutMenuItem(m)
	}
}

// UnitOfWork opens a unit of work over the store.
func (s *Store) UnitOfWork() uow.UnitOfWork {
	u := &UnitOfWork{store: s}
	u.orders = &orderRepository{u: u}
	u.items = &orderItemRepository{u: u}
	u.bills = &billRepository{u: u}
	u.tables = &tableRepository{u: u}
	u.menu = &menuItemRepository{u: u}

	return u
}

// Factory returns a uow.Factory over the store.
func (s *Store) Factory() uow.Factory {
	return s.UnitOfWork
}

// UnitOfWork is the in-memory transaction handle.
type UnitOfWork struct {
	store *Store
	tx    *state

	orders *orderRepository
	items  *orderItemRepository
	bills  *billRepository
	tables *tableRepository
	menu   *menuItemRepository
}

// Begin locks the store and starts working on a copy of its state.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.mu.Lock()
	u.tx = u.store.st.clone()

	return nil
}

// Commit publishes the working copy and releases the store.
func (u *UnitOfWork) Commit(_ context.Context) error {
	if u.tx == nil {
		return nil
	}
	u.store.st = u.tx
	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

// Rollback discards the working copy. It is a no-op after Commit.
func (u *UnitOfWork) Rollback(_ context.Context) error {
	if u.tx == nil {
		return nil
	}
	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

// with runs fn against the transaction state, or against the shared state
// under the store lock when no transaction is open.
func (u *UnitOfWork) with(fn func(st *state) error) error {
	if u.tx != nil {
		return fn(u.tx)
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	return fn(u.store.st)
}
