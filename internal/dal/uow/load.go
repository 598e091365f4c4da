package uow

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
)

// LoadOrders queries orders and attaches their items.
func LoadOrders(ctx context.Context, work UnitOfWork, filter *order.QueryOrdersModel) ([]order.Order, error) {
	orders, err := work.OrderRepository().Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	itemQuery := &orderitem.QueryOrderItemsModel{}
	for _, o := range orders {
		itemQuery.OrderIds = append(itemQuery.OrderIds, o.ID)
	}
	items, err := work.OrderItemRepository().Query(ctx, itemQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	byOrder := make(map[int64][]orderitem.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].OrderItems = byOrder[orders[i].ID]
		if orders[i].OrderItems == nil {
			orders[i].OrderItems = []orderitem.OrderItem{}
		}
	}

	return orders, nil
}

// LoadOrder fetches one order with its items.
func LoadOrder(ctx context.Context, work UnitOfWork, id int64, forUpdate bool) (order.Order, error) {
	o, err := work.OrderRepository().GetByID(ctx, id, forUpdate)
	if err != nil {
		return order.Order{}, err
	}

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: []int64{id}})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to load order items: %w", err)
	}
	o.OrderItems = items
	if o.OrderItems == nil {
		o.OrderItems = []orderitem.OrderItem{}
	}

	return o, nil
}
