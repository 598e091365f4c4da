package billsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/dalerr"
	"github.com/corray333/backend-labs/floor/internal/dal/uow"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type publisher interface {
	Publish(ctx context.Context, topic string, evt event.Envelope) error
}

// BillService aggregates served orders into bills and settles them.
type BillService struct {
	newUOW          uow.Factory
	publisher       publisher
	now             func() time.Time
	tracer          trace.Tracer
	defaultCurrency currency.Currency
}

type option func(*BillService)

// MustNewBillService creates a new BillService.
func MustNewBillService(opts ...option) *BillService {
	s := &BillService{
		now:             time.Now,
		tracer:          otel.Tracer("floor/billsvc"),
		defaultCurrency: currency.CurrencyUSD,
	}
	if raw := viper.GetString("billing.default_currency"); raw != "" {
		cur, err := currency.ParseCurrency(raw)
		if err != nil {
			panic(fmt.Sprintf("billing.default_currency: %v", err))
		}
		s.defaultCurrency = cur
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("billsvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWorkFactory sets where units of work come from.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(f uow.Factory) option {
	return func(s *BillService) {
		s.newUOW = f
	}
}

// WithPublisher sets the publisher of bill-paid events. Without one none are emitted.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPublisher(p publisher) option {
	return func(s *BillService) {
		s.publisher = p
	}
}

// WithClock sets the time source for bill creation and payment times.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *BillService) {
		s.now = now
	}
}

// BillResponse is a bill with its orders.
type BillResponse struct {
	Bill     bill.Bill     `json:"bill"`
	Orders   []order.Order `json:"orders"`
	Warnings []string      `json:"warnings,omitempty"`
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.MessageOf(err))
	}
	span.End()
}

// total sums captured prices over every item and requires one currency.
func (s *BillService) total(orders []order.Order) (int64, currency.Currency, error) {
	var (
		sum int64
		cur currency.Currency
	)
	for _, o := range orders {
		for _, item := range o.OrderItems {
			if cur == "" {
				cur = item.PriceCurrency
			}
			if item.PriceCurrency != cur {
				return 0, "", apperr.New(apperr.KindInvalidState,
					"order %d mixes currencies %s and %s", o.ID, cur, item.PriceCurrency)
			}
			sum += item.LineTotalCents()
		}
	}
	if cur == "" {
		cur = s.defaultCurrency
	}

	return sum, cur, nil
}

func billOrders(ctx context.Context, work uow.UnitOfWork, b bill.Bill, forUpdate bool) ([]order.Order, error) {
	if len(b.OrderIDs) == 0 {
		return nil, apperr.New(apperr.KindInvalidState, "bill %d has no orders", b.ID)
	}

	return uow.LoadOrders(ctx, work, &order.QueryOrdersModel{Ids: b.OrderIDs, ForUpdate: forUpdate})
}

// Checkout bills every served, unbilled order of a table in one transaction.
func (s *BillService) Checkout(ctx context.Context, tableID int64) (resp BillResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "BillService.Checkout", trace.WithAttributes(attribute.Int64("table_id", tableID)))
	defer func() { endSpan(span, err) }()

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return BillResponse{}, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	if _, err := work.TableRepository().GetByID(ctx, tableID); err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return BillResponse{}, apperr.Wrap(apperr.KindNotFound, err, "table %d not found", tableID)
		}

		return BillResponse{}, err
	}

	orders, err := uow.LoadOrders(ctx, work, &order.QueryOrdersModel{
		TableIds:     []int64{tableID},
		Statuses:     []order.Status{order.StatusServed},
		UnbilledOnly: true,
		ForUpdate:    true,
	})
	if err != nil {
		return BillResponse{}, err
	}
	if len(orders) == 0 {
		return BillResponse{}, apperr.New(apperr.KindNoBillableOrders, "table %d has no served orders to bill", tableID)
	}

	sum, cur, err := s.total(orders)
	if err != nil {
		return BillResponse{}, err
	}

	orderIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}

	now := s.now()
	b, err := work.BillRepository().Insert(ctx, bill.Bill{
		TableID:       tableID,
		OrderIDs:      orderIDs,
		TotalCents:    sum,
		TotalCurrency: cur,
		Status:        bill.StatusPending,
		CreatedAt:     now,
	})
	if err != nil {
		return BillResponse{}, err
	}

	for i := range orders {
		orders[i].Status = order.StatusBilled
		orders[i].BillID = &b.ID
		orders[i].UpdatedAt = now
		if err := work.OrderRepository().Update(ctx, orders[i]); err != nil {
			return BillResponse{}, fmt.Errorf("failed to link order %d to bill %d: %w", orders[i].ID, b.ID, err)
		}
	}

	if err := work.Commit(ctx); err != nil {
		return BillResponse{}, err
	}

	slog.Info("Table checked out", "table_id", tableID, "bill_id", b.ID, "orders", len(orders), "total_cents", sum)

	return BillResponse{Bill: b, Orders: orders}, nil
}

// Pay settles a pending bill and every order on it.
func (s *BillService) Pay(ctx context.Context, billID int64) (resp BillResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "BillService.Pay", trace.WithAttributes(attribute.Int64("bill_id", billID)))
	defer func() { endSpan(span, err) }()

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return BillResponse{}, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	b, err := work.BillRepository().GetByID(ctx, billID, true)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return BillResponse{}, apperr.Wrap(apperr.KindNotFound, err, "bill %d not found", billID)
		}

		return BillResponse{}, err
	}
	if b.IsPaid() {
		return BillResponse{}, apperr.New(apperr.KindAlreadyPaid, "bill %d is already paid", billID)
	}

	orders, err := billOrders(ctx, work, b, true)
	if err != nil {
		return BillResponse{}, err
	}

	now := s.now()
	b.Status = bill.StatusPaid
	b.PaidAt = &now
	if err := work.BillRepository().Update(ctx, b); err != nil {
		return BillResponse{}, err
	}

	for i := range orders {
		if !order.CanTransition(orders[i].Status, order.StatusPaid) {
			return BillResponse{}, apperr.New(apperr.KindInvalidState,
				"order %d on bill %d is %s", orders[i].ID, billID, orders[i].Status)
		}
		orders[i].Status = order.StatusPaid
		orders[i].UpdatedAt = now
		if err := work.OrderRepository().Update(ctx, orders[i]); err != nil {
			return BillResponse{}, err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return BillResponse{}, err
	}

	slog.Info("Bill paid", "bill_id", b.ID, "table_id", b.TableID, "total_cents", b.TotalCents)

	resp = BillResponse{Bill: b, Orders: orders}
	if s.publisher != nil {
		evt := event.NewBillPaidEvent(b, orders, now)
		if err := s.publisher.Publish(ctx, event.TopicPaidBills, evt); err != nil {
			slog.Warn("Event hand-off failed", "bill_id", b.ID, "topic", event.TopicPaidBills, "error", err)
			resp.Warnings = append(resp.Warnings, apperr.MessageOf(err))
		}
	}

	return resp, nil
}

// GetPendingBillForTable returns the newest unpaid bill of a table.
func (s *BillService) GetPendingBillForTable(ctx context.Context, tableID int64) (BillResponse, error) {
	work := s.newUOW()

	b, err := work.BillRepository().GetLatestByTable(ctx, tableID, bill.StatusPending)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return BillResponse{}, apperr.Wrap(apperr.KindNotFound, err, "table %d has no pending bill", tableID)
		}

		return BillResponse{}, err
	}

	orders, err := billOrders(ctx, work, b, false)
	if err != nil {
		return BillResponse{}, err
	}

	return BillResponse{Bill: b, Orders: orders}, nil
}
