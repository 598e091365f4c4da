package memory

import (
	"context"
	"slices"

	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	ibillrepo "github.com/corray333/backend-labs/floor/internal/dal/interfaces/ibillrepo"
	imenuitemrepo "github.com/corray333/backend-labs/floor/internal/dal/interfaces/imenuitemrepo"
	iorderitem "github.com/corray333/backend-labs/floor/internal/dal/interfaces/iorderitemrepo"
	iorder "github.com/corray333/backend-labs/floor/internal/dal/interfaces/iorderrepo"
	itablerepo "github.com/corray333/backend-labs/floor/internal/dal/interfaces/itablerepo"
	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
)

func (u *UnitOfWork) OrderRepository() iorder.IOrderRepository {
	return u.orders
}

func (u *UnitOfWork) OrderItemRepository() iorderitem.IOrderItemRepository {
	return u.items
}

func (u *UnitOfWork) BillRepository() ibillrepo.IBillRepository {
	return u.bills
}

func (u *UnitOfWork) TableRepository() itablerepo.ITableRepository {
	return u.tables
}

func (u *UnitOfWork) MenuItemRepository() imenuitemrepo.IMenuItemRepository {
	return u.menu
}

type orderRepository struct {
	u *UnitOfWork
}

func (r *orderRepository) Insert(_ context.Context, o order.Order) (order.Order, error) {
	var inserted order.Order
	err := r.u.with(func(st *state) error {
		st.orderID++
		o.ID = st.orderID
		st.orders[o.ID] = copyOrder(o)
		inserted = copyOrder(o)

		return nil
	})
	inserted.OrderItems = append(inserted.OrderItems, o.OrderItems...)

	return inserted, err
}

func (r *orderRepository) Update(_ context.Context, o order.Order) error {
	return r.u.with(func(st *state) error {
		stored, ok := st.orders[o.ID]
		if !ok {
			return dalerr.ErrNotFound
		}
		stored.Status = o.Status
		stored.BillID = o.BillID
		stored.UpdatedAt = o.UpdatedAt
		st.orders[o.ID] = copyOrder(stored)

		return nil
	})
}

func (r *orderRepository) GetByID(_ context.Context, id int64, _ bool) (order.Order, error) {
	var found order.Order
	err := r.u.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return dalerr.ErrNotFound
		}
		found = copyOrder(o)

		return nil
	})

	return found, err
}

func matchesOrder(o order.Order, filter *order.QueryOrdersModel) bool {
	if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, o.ID) {
		return false
	}
	if len(filter.TableIds) > 0 && !slices.Contains(filter.TableIds, o.TableID) {
		return false
	}
	if len(filter.BillIds) > 0 && (o.BillID == nil || !slices.Contains(filter.BillIds, *o.BillID)) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, o.Status) {
		return false
	}
	if filter.UnbilledOnly && o.BillID != nil {
		return false
	}

	return true
}

func (r *orderRepository) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	result := []order.Order{}
	err := r.u.with(func(st *state) error {
		for _, id := range sortedKeys(st.orders) {
			if o := st.orders[id]; matchesOrder(o, filter) {
				result = append(result, copyOrder(o))
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if filter.Offset > 0 {
		result = result[min(filter.Offset, len(result)):]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

type orderItemRepository struct {
	u *UnitOfWork
}

func (r *orderItemRepository) BulkInsert(
	_ context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	result := make([]orderitem.OrderItem, 0, len(orderItems))
	err := r.u.with(func(st *state) error {
		for _, item := range orderItems {
			if _, ok := st.orders[item.OrderID]; !ok {
				return dalerr.ErrNotFound
			}
		}
		for _, item := range orderItems {
			st.itemID++
			item.ID = st.itemID
			st.items[item.ID] = item
			result = append(result, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *orderItemRepository) DeleteByOrderIDs(_ context.Context, orderIDs []int64) error {
	return r.u.with(func(st *state) error {
		for id, item := range st.items {
			if slices.Contains(orderIDs, item.OrderID) {
				delete(st.items, id)
			}
		}

		return nil
	})
}

func (r *orderItemRepository) Query(
	_ context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	result := []orderitem.OrderItem{}
	err := r.u.with(func(st *state) error {
		for _, id := range sortedKeys(st.items) {
			item := st.items[id]
			if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, item.ID) {
				continue
			}
			if len(filter.OrderIds) > 0 && !slices.Contains(filter.OrderIds, item.OrderID) {
				continue
			}
			result = append(result, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type billRepository struct {
	u *UnitOfWork
}

func (r *billRepository) Insert(_ context.Context, b bill.Bill) (bill.Bill, error) {
	err := r.u.with(func(st *state) error {
		if _, ok := st.tables[b.TableID]; !ok {
			return dalerr.ErrNotFound
		}
		st.billID++
		b.ID = st.billID
		st.bills[b.ID] = copyBill(b)

		return nil
	})
	if err != nil {
		return bill.Bill{}, err
	}

	return copyBill(b), nil
}

func (r *billRepository) Update(_ context.Context, b bill.Bill) error {
	return r.u.with(func(st *state) error {
		stored, ok := st.bills[b.ID]
		if !ok {
			return dalerr.ErrNotFound
		}
		stored.Status = b.Status
		stored.PaidAt = b.PaidAt
		st.bills[b.ID] = copyBill(stored)

		return nil
	})
}

func (r *billRepository) GetByID(_ context.Context, id int64, _ bool) (bill.Bill, error) {
	var found bill.Bill
	err := r.u.with(func(st *state) error {
		b, ok := st.bills[id]
		if !ok {
			return dalerr.ErrNotFound
		}
		found = copyBill(b)

		return nil
	})

	return found, err
}

func (r *billRepository) GetLatestByTable(_ context.Context, tableID int64, status bill.Status) (bill.Bill, error) {
	var (
		found bill.Bill
		ok    bool
	)
	err := r.u.with(func(st *state) error {
		for _, b := range st.bills {
			if b.TableID != tableID || b.Status != status {
				continue
			}
			if !ok || newer(b, found) {
				found, ok = b, true
			}
		}
		if !ok {
			return dalerr.ErrNotFound
		}
		found = copyBill(found)

		return nil
	})

	return found, err
}

type tableRepository struct {
	u *UnitOfWork
}

func (r *tableRepository) GetByID(_ context.Context, id int64) (table.Table, error) {
	var found table.Table
	err := r.u.with(func(st *state) error {
		t, ok := st.tables[id]
		if !ok {
			return dalerr.ErrNotFound
		}
		found = t

		return nil
	})

	return found, err
}

type menuItemRepository struct {
	u *UnitOfWork
}

func (r *menuItemRepository) GetByIDs(_ context.Context, ids []int64) ([]menuitem.MenuItem, error) {
	result := []menuitem.MenuItem{}
	err := r.u.with(func(st *state) error {
		for _, id := range ids {
			if m, ok := st.menu[id]; ok {
				result = append(result, m)
			}
		}

		return nil
	})

	return result, err
}
