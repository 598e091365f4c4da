package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	"github.com/corray333/backend-labs/floor/internal/dal/uow"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
	"go.opentelemetry.io/otel/attribute"
)

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return apperr.New(apperr.KindInvalidArgument, "order must contain at least one item")
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return apperr.New(apperr.KindInvalidArgument, "item %d: quantity must be positive", i)
		}
	}

	return nil
}

// priceItems captures the current menu name and price of every requested line.
func (s *OrderService) priceItems(
	ctx context.Context,
	work uow.UnitOfWork,
	orderID int64,
	reqs []ItemRequest,
) ([]orderitem.OrderItem, error) {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.MenuItemID)
	}

	found, err := work.MenuItemRepository().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}
	menu := make(map[int64]menuitem.MenuItem, len(found))
	for _, m := range found {
		menu[m.ID] = m
	}

	now := s.now()
	items := make([]orderitem.OrderItem, 0, len(reqs))
	for _, r := range reqs {
		m, ok := menu[r.MenuItemID]
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "menu item %d not found", r.MenuItemID)
		}
		items = append(items, orderitem.OrderItem{
			OrderID:         orderID,
			MenuItemID:      m.ID,
			MenuItemName:    m.Name,
			Quantity:        r.Quantity,
			PriceCents:      m.PriceCents,
			PriceCurrency:   m.PriceCurrency,
			SpecialRequests: r.SpecialRequests,
			CreatedAt:       now,
		})
	}

	return items, nil
}

// CreateOrder places a PENDING order priced at the current menu prices.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (resp OrderResponse, err error) {
	ctx, span := s.startSpan(ctx, "CreateOrder", attribute.Int64("table_id", req.TableID))
	defer func() { endSpan(span, err) }()

	if err := validateItems(req.Items); err != nil {
		return OrderResponse{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return OrderResponse{}, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	if _, err := work.TableRepository().GetByID(ctx, req.TableID); err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return OrderResponse{}, apperr.Wrap(apperr.KindNotFound, err, "table %d not found", req.TableID)
		}

		return OrderResponse{}, err
	}

	items, err := s.priceItems(ctx, work, 0, req.Items)
	if err != nil {
		return OrderResponse{}, err
	}

	now := s.now()
	o, err := work.OrderRepository().Insert(ctx, order.Order{
		TableID:   req.TableID,
		Status:    order.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return OrderResponse{}, err
	}

	for i := range items {
		items[i].OrderID = o.ID
	}
	o.OrderItems, err = work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return OrderResponse{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return OrderResponse{}, err
	}

	slog.Info("Order created", "order_id", o.ID, "table_id", o.TableID, "items", len(o.OrderItems))

	resp = OrderResponse{Order: o, Changed: true}
	s.publish(ctx, &resp, s.emit(event.KindOrderCreated, o, ""))

	return resp, nil
}

// ReplaceItems swaps the whole item set and sends the order back to PENDING.
func (s *OrderService) ReplaceItems(ctx context.Context, orderID int64, reqs []ItemRequest) (resp OrderResponse, err error) {
	ctx, span := s.startSpan(ctx, "ReplaceItems", attribute.Int64("order_id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validateItems(reqs); err != nil {
		return OrderResponse{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return OrderResponse{}, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	o, err := uow.LoadOrder(ctx, work, orderID, true)
	if err != nil {
		return OrderResponse{}, orderNotFound(err, orderID)
	}
	if !o.Status.Editable() {
		return OrderResponse{}, apperr.New(apperr.KindInvalidState, "order %d is %s and can no longer be changed", orderID, o.Status)
	}

	items, err := s.priceItems(ctx, work, orderID, reqs)
	if err != nil {
		return OrderResponse{}, err
	}

	if err := work.OrderItemRepository().DeleteByOrderIDs(ctx, []int64{orderID}); err != nil {
		return OrderResponse{}, err
	}
	o.OrderItems, err = work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return OrderResponse{}, err
	}

	previous := o.Status
	o.Status = order.StatusPending
	o.UpdatedAt = s.now()
	if err := work.OrderRepository().Update(ctx, o); err != nil {
		return OrderResponse{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return OrderResponse{}, err
	}

	slog.Info("Order items replaced", "order_id", o.ID, "previous_status", previous, "items", len(o.OrderItems))

	resp = OrderResponse{Order: o, Changed: true}
	updated := s.emit(event.KindOrderUpdated, o, previous)
	emissions := []emission{updated}
	if previous != order.StatusPending {
		emissions = append(emissions, emission{topic: event.TopicCustomerOrderUpdate, evt: updated.evt})
	}
	s.publish(ctx, &resp, emissions...)

	return resp, nil
}

// AdvanceStatus moves an order along the transition table.
// Asking for the current status is a successful no-op.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID int64, to order.Status) (resp OrderResponse, err error) {
	ctx, span := s.startSpan(ctx, "AdvanceStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("status", to.String()),
	)
	defer func() { endSpan(span, err) }()

	if !to.Valid() {
		return OrderResponse{}, apperr.New(apperr.KindInvalidArgument, "unknown status %q", to)
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return OrderResponse{}, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	// the status is re-read under the row lock, so concurrent advances see each other
	o, err := uow.LoadOrder(ctx, work, orderID, true)
	if err != nil {
		return OrderResponse{}, orderNotFound(err, orderID)
	}

	if o.Status == to {
		return OrderResponse{Order: o}, nil
	}
	if to.BillingOnly() {
		return OrderResponse{}, apperr.New(apperr.KindInvalidTransition, "order %d: %s is set by billing", orderID, to)
	}
	if !order.CanTransition(o.Status, to) {
		return OrderResponse{}, apperr.New(apperr.KindInvalidTransition, "order %d: %s -> %s is not allowed", orderID, o.Status, to)
	}

	previous := o.Status
	o.Status = to
	o.UpdatedAt = s.now()
	if err := work.OrderRepository().Update(ctx, o); err != nil {
		return OrderResponse{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return OrderResponse{}, err
	}

	slog.Info("Order status changed", "order_id", o.ID, "from", previous, "to", to)

	resp = OrderResponse{Order: o, Changed: true}
	emissions := []emission{s.emit(event.KindOrderStatusChanged, o, previous)}
	if to == order.StatusReadyToServe {
		emissions = append(emissions, s.emit(event.KindOrderReadyToServe, o, previous))
	}
	s.publish(ctx, &resp, emissions...)

	return resp, nil
}

// MarkServed is AdvanceStatus to SERVED.
func (s *OrderService) MarkServed(ctx context.Context, orderID int64) (OrderResponse, error) {
	return s.AdvanceStatus(ctx, orderID, order.StatusServed)
}

// GetOrder returns one order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (order.Order, error) {
	o, err := uow.LoadOrder(ctx, s.newUOW(), orderID, false)
	if err != nil {
		return order.Order{}, orderNotFound(err, orderID)
	}

	return o, nil
}

// ListTableOrdersRequest filters the orders of one table.
type ListTableOrdersRequest struct {
	TableID      int64
	Statuses     []order.Status
	UnbilledOnly bool
}

// ListTableOrders returns the orders of a table, oldest first.
func (s *OrderService) ListTableOrders(ctx context.Context, req ListTableOrdersRequest) ([]order.Order, error) {
	for _, st := range req.Statuses {
		if !st.Valid() {
			return nil, apperr.New(apperr.KindInvalidArgument, "unknown status %q", st)
		}
	}

	work := s.newUOW()
	if _, err := work.TableRepository().GetByID(ctx, req.TableID); err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "table %d not found", req.TableID)
		}

		return nil, err
	}

	return uow.LoadOrders(ctx, work, &order.QueryOrdersModel{
		TableIds:     []int64{req.TableID},
		Statuses:     req.Statuses,
		UnbilledOnly: req.UnbilledOnly,
	})
}
