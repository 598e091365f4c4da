package billsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	iorder "github.com/corray333/backend-labs/floor/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/floor/internal/dal/memory"
	"github.com/corray333/backend-labs/floor/internal/dal/uow"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topics []string
	events []event.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, evt event.Envelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, evt)

	return nil
}

type fixture struct {
	store  *memory.Store
	orders *ordersvc.OrderService
	bills  *BillService
	pub    *recordingPublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.Seed(
		[]table.Table{{ID: 5, Number: 5}, {ID: 6, Number: 6}},
		[]menuitem.MenuItem{
			{ID: 1, Name: "Pho", PriceCents: 650, PriceCurrency: currency.CurrencyUSD},
			{ID: 2, Name: "Iced coffee", PriceCents: 300, PriceCurrency: currency.CurrencyUSD},
			{ID: 3, Name: "Borscht", PriceCents: 45000, PriceCurrency: currency.CurrencyRUB},
		},
	)
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	pub := &recordingPublisher{}

	return &fixture{
		store:  store,
		orders: ordersvc.MustNewOrderService(ordersvc.WithUnitOfWorkFactory(store.Factory()), ordersvc.WithClock(clock)),
		bills:  MustNewBillService(WithUnitOfWorkFactory(store.Factory()), WithPublisher(pub), WithClock(clock)),
		pub:    pub,
	}
}

func (f *fixture) served(t *testing.T, tableID int64, items ...ordersvc.ItemRequest) order.Order {
	t.Helper()
	ctx := context.Background()

	resp, err := f.orders.CreateOrder(ctx, ordersvc.CreateOrderRequest{TableID: tableID, Items: items})
	require.NoError(t, err)
	served, err := f.orders.MarkServed(ctx, resp.Order.ID)
	require.NoError(t, err)

	return served.Order
}

func TestCheckoutAndPay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first := f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 1, Quantity: 2})
	second := f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 2, Quantity: 1})
	_, err := f.orders.CreateOrder(ctx, ordersvc.CreateOrderRequest{TableID: 5, Items: []ordersvc.ItemRequest{{MenuItemID: 1, Quantity: 1}}})
	require.NoError(t, err)

	checkout, err := f.bills.Checkout(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, bill.StatusPending, checkout.Bill.Status)
	assert.Equal(t, int64(2*650+300), checkout.Bill.TotalCents)
	assert.Equal(t, currency.CurrencyUSD, checkout.Bill.TotalCurrency)
	assert.Equal(t, []int64{first.ID, second.ID}, checkout.Bill.OrderIDs)
	for _, o := range checkout.Orders {
		assert.Equal(t, order.StatusBilled, o.Status)
		require.NotNil(t, o.BillID)
		assert.Equal(t, checkout.Bill.ID, *o.BillID)
	}
	assert.Empty(t, f.pub.topics)

	pending, err := f.bills.GetPendingBillForTable(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, checkout.Bill.ID, pending.Bill.ID)
	assert.Len(t, pending.Orders, 2)

	paid, err := f.bills.Pay(ctx, checkout.Bill.ID)
	require.NoError(t, err)
	assert.True(t, paid.Bill.IsPaid())
	require.NotNil(t, paid.Bill.PaidAt)

	for _, id := range []int64{first.ID, second.ID} {
		o, err := f.orders.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, o.Status)
	}

	require.Equal(t, []string{event.TopicPaidBills}, f.pub.topics)
	assert.Equal(t, event.KindBillPaid, f.pub.events[0].Kind)
	assert.Equal(t, checkout.Bill.TotalCents, f.pub.events[0].Bill.TotalCents)
	assert.True(t, f.pub.events[0].Bill.IsPaid)

	_, err = f.bills.GetPendingBillForTable(ctx, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckoutErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.bills.Checkout(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.bills.Checkout(ctx, 6)
	assert.ErrorIs(t, err, apperr.ErrNoBillableOrders)

	f.served(t, 6, ordersvc.ItemRequest{MenuItemID: 1, Quantity: 1})
	f.served(t, 6, ordersvc.ItemRequest{MenuItemID: 3, Quantity: 1})
	_, err = f.bills.Checkout(ctx, 6)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	orders, err := f.orders.ListTableOrders(ctx, ordersvc.ListTableOrdersRequest{TableID: 6, UnbilledOnly: true})
	require.NoError(t, err)
	assert.Len(t, orders, 2, "mixed currencies leave orders unbilled")
}

func TestCheckoutTwiceHasNothingLeft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 1, Quantity: 1})

	_, err := f.bills.Checkout(ctx, 5)
	require.NoError(t, err)
	_, err = f.bills.Checkout(ctx, 5)
	assert.ErrorIs(t, err, apperr.ErrNoBillableOrders)
}

func TestPayErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.bills.Pay(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 1, Quantity: 1})
	checkout, err := f.bills.Checkout(ctx, 5)
	require.NoError(t, err)
	_, err = f.bills.Pay(ctx, checkout.Bill.ID)
	require.NoError(t, err)

	_, err = f.bills.Pay(ctx, checkout.Bill.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyPaid)
	assert.Len(t, f.pub.topics, 1, "a refused payment emits nothing")
}

func TestTotalUsesCapturedPrices(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 1, Quantity: 3})

	f.store.PutMenuItem(menuitem.MenuItem{ID: 1, Name: "Pho", PriceCents: 990, PriceCurrency: currency.CurrencyUSD})

	checkout, err := f.bills.Checkout(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3*650), checkout.Bill.TotalCents)
}

// failingOrders fails every order update after the first allowed ones.
type failingOrders struct {
	iorder.IOrderRepository
	allowed *int
}

func (r *failingOrders) Update(ctx context.Context, o order.Order) error {
	if *r.allowed == 0 {
		return errors.New("connection reset")
	}
	*r.allowed--

	return r.IOrderRepository.Update(ctx, o)
}

type failingUnitOfWork struct {
	uow.UnitOfWork
	allowed *int
}

func (u *failingUnitOfWork) OrderRepository() iorder.IOrderRepository {
	return &failingOrders{IOrderRepository: u.UnitOfWork.OrderRepository(), allowed: u.allowed}
}

func TestCheckoutIsAtomic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 1, Quantity: 1})
	second := f.served(t, 5, ordersvc.ItemRequest{MenuItemID: 2, Quantity: 1})

	allowed := 1
	failing := MustNewBillService(WithUnitOfWorkFactory(func() uow.UnitOfWork {
		return &failingUnitOfWork{UnitOfWork: f.store.UnitOfWork(), allowed: &allowed}
	}))

	_, err := failing.Checkout(ctx, 5)
	require.Error(t, err)

	_, err = f.bills.GetPendingBillForTable(ctx, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "no bill without orders")

	for _, id := range []int64{first.ID, second.ID} {
		o, err := f.orders.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, order.StatusServed, o.Status)
		assert.Nil(t, o.BillID, "no order references a missing bill")
	}

	checkout, err := f.bills.Checkout(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, checkout.Bill.OrderIDs, 2)
}
