package memory

import (
	"slices"

	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
)

type state struct {
	tables  map[int64]table.Table
	menu    map[int64]menuitem.MenuItem
	orders  map[int64]order.Order
	items   map[int64]orderitem.OrderItem
	bills   map[int64]bill.Bill
	orderID int64
	itemID  int64
	billID  int64
}

func newState() *state {
	return &state{
		tables: map[int64]table.Table{},
		menu:   map[int64]menuitem.MenuItem{},
		orders: map[int64]order.Order{},
		items:  map[int64]orderitem.OrderItem{},
		bills:  map[int64]bill.Bill{},
	}
}

func (s *state) clone() *state {
	c := &state{
		tables:  make(map[int64]table.Table, len(s.tables)),
		menu:    make(map[int64]menuitem.MenuItem, len(s.menu)),
		orders:  make(map[int64]order.Order, len(s.orders)),
		items:   make(map[int64]orderitem.OrderItem, len(s.items)),
		bills:   make(map[int64]bill.Bill, len(s.bills)),
		orderID: s.orderID,
		itemID:  s.itemID,
		billID:  s.billID,
	}
	for id, t := range s.tables {
		c.tables[id] = t
	}
	for id, m := range s.menu {
		c.menu[id] = m
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	for id, item := range s.items {
		c.items[id] = item
	}
	for id, b := range s.bills {
		c.bills[id] = copyBill(b)
	}

	return c
}

// copyOrder detaches pointer fields so stored rows never alias caller values.
func copyOrder(o order.Order) order.Order {
	if o.BillID != nil {
		id := *o.BillID
		o.BillID = &id
	}
	o.OrderItems = []orderitem.OrderItem{}

	return o
}

func copyBill(b bill.Bill) bill.Bill {
	b.OrderIDs = slices.Clone(b.OrderIDs)
	if b.PaidAt != nil {
		at := *b.PaidAt
		b.PaidAt = &at
	}

	return b
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	slices.Sort(keys)

	return keys
}

func newer(a, b bill.Bill) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}

	return a.ID > b.ID
}

