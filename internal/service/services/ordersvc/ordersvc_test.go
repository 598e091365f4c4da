package ordersvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/floor/internal/dal/memory"
	"github.com/corray333/backend-labs/floor/internal/service/apperr"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/event"
	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/models/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic string
	evt   event.Envelope
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, evt event.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, published{topic: topic, evt: evt})

	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	topics := make([]string, 0, len(p.events))
	for _, e := range p.events {
		topics = append(topics, e.topic)
	}

	return topics
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = nil
}

const (
	pho   = int64(1)
	bunBo = int64(2)
)

func setup(t *testing.T) (*OrderService, *memory.Store, *recordingPublisher) {
	t.Helper()

	store := memory.NewStore()
	store.Seed(
		[]table.Table{{ID: 5, Number: 5, SeatingCapacity: 4}},
		[]menuitem.MenuItem{
			{ID: pho, Name: "Pho", PriceCents: 650, PriceCurrency: currency.CurrencyUSD},
			{ID: bunBo, Name: "Bun Bo Hue", PriceCents: 720, PriceCurrency: currency.CurrencyUSD},
		},
	)
	pub := &recordingPublisher{}
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	svc := MustNewOrderService(
		WithUnitOfWorkFactory(store.Factory()),
		WithPublisher(pub),
		WithClock(func() time.Time { return now }),
	)

	return svc, store, pub
}

func createPho(t *testing.T, svc *OrderService) order.Order {
	t.Helper()

	resp, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID: 5,
		Items:   []ItemRequest{{MenuItemID: pho, Quantity: 2, SpecialRequests: "no onions"}},
	})
	require.NoError(t, err)

	return resp.Order
}

func TestCreateOrder(t *testing.T) {
	svc, _, pub := setup(t)

	o := createPho(t, svc)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, int64(5), o.TableID)
	require.Len(t, o.OrderItems, 1)
	assert.Equal(t, "Pho", o.OrderItems[0].MenuItemName)
	assert.Equal(t, int64(650), o.OrderItems[0].PriceCents)
	assert.Equal(t, o.ID, o.OrderItems[0].OrderID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, event.TopicNewOrder, pub.events[0].topic)
	assert.Equal(t, event.KindOrderCreated, pub.events[0].evt.Kind)
	assert.Equal(t, "no onions", pub.events[0].evt.Order.Items[0].SpecialRequests)
}

func TestCreateOrderNotFound(t *testing.T) {
	svc, _, pub := setup(t)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderRequest{TableID: 99, Items: []ItemRequest{{MenuItemID: pho, Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateOrder(ctx, CreateOrderRequest{TableID: 5, Items: []ItemRequest{
		{MenuItemID: pho, Quantity: 1},
		{MenuItemID: 404, Quantity: 1},
	}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	orders, err := svc.ListTableOrders(ctx, ListTableOrdersRequest{TableID: 5})
	require.NoError(t, err)
	assert.Empty(t, orders, "nothing is persisted on failure")
	assert.Empty(t, pub.events)
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: 5})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.CreateOrder(context.Background(), CreateOrderRequest{TableID: 5, Items: []ItemRequest{{MenuItemID: pho}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

// drive moves a fresh order into status st through allowed edges.
func drive(t *testing.T, svc *OrderService, store *memory.Store, st order.Status) order.Order {
	t.Helper()
	ctx := context.Background()

	o := createPho(t, svc)
	switch st {
	case order.StatusPending:
	case order.StatusBilled, order.StatusPaid:
		_, err := svc.AdvanceStatus(ctx, o.ID, order.StatusServed)
		require.NoError(t, err)
		work := store.UnitOfWork()
		o.Status = order.StatusBilled
		if st == order.StatusPaid {
			o.Status = order.StatusPaid
		}
		billID := int64(1)
		o.BillID = &billID
		require.NoError(t, work.OrderRepository().Update(ctx, o))
	default:
		_, err := svc.AdvanceStatus(ctx, o.ID, st)
		require.NoError(t, err)
	}

	loaded, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, st, loaded.Status)

	return loaded
}

func TestAdvanceStatusMatrix(t *testing.T) {
	for _, from := range order.Statuses() {
		for _, to := range order.Statuses() {
			if from == to {
				continue
			}
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				svc, store, _ := setup(t)
				o := drive(t, svc, store, from)

				resp, err := svc.AdvanceStatus(context.Background(), o.ID, to)

				got, getErr := svc.GetOrder(context.Background(), o.ID)
				require.NoError(t, getErr)

				if order.CanTransition(from, to) && !to.BillingOnly() {
					require.NoError(t, err)
					assert.True(t, resp.Changed)
					assert.Equal(t, to, resp.Order.Status)
					assert.Equal(t, to, got.Status)

					return
				}
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
				assert.Equal(t, from, got.Status, "status unchanged")
			})
		}
	}
}

func TestAdvanceStatusIsIdempotent(t *testing.T) {
	svc, _, pub := setup(t)
	ctx := context.Background()
	o := createPho(t, svc)
	pub.reset()

	first, err := svc.AdvanceStatus(ctx, o.ID, order.StatusCooking)
	require.NoError(t, err)
	second, err := svc.AdvanceStatus(ctx, o.ID, order.StatusCooking)
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, order.StatusCooking, second.Order.Status)
	assert.Equal(t, []string{event.TopicUpdateOrder}, pub.topics(), "the no-op emits nothing")
}

func TestAdvanceStatusEmissions(t *testing.T) {
	svc, _, pub := setup(t)
	ctx := context.Background()
	o := createPho(t, svc)
	pub.reset()

	_, err := svc.AdvanceStatus(ctx, o.ID, order.StatusReadyToServe)
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, event.TopicUpdateOrder, pub.events[0].topic)
	assert.Equal(t, event.KindOrderStatusChanged, pub.events[0].evt.Kind)
	assert.Equal(t, order.StatusPending, pub.events[0].evt.Order.PreviousStatus)
	assert.Equal(t, event.TopicServeOrder, pub.events[1].topic)
	assert.Equal(t, event.KindOrderReadyToServe, pub.events[1].evt.Kind)

	pub.reset()
	resp, err := svc.MarkServed(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusServed, resp.Order.Status)
	assert.Equal(t, []string{event.TopicUpdateOrder}, pub.topics())
}

func TestAdvanceStatusErrors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.AdvanceStatus(ctx, 404, order.StatusCooking)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	o := createPho(t, svc)
	_, err = svc.AdvanceStatus(ctx, o.ID, order.Status("EATEN"))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestConcurrentAdvancesSerialize(t *testing.T) {
	svc, _, pub := setup(t)
	ctx := context.Background()
	o := createPho(t, svc)
	pub.reset()

	var wg sync.WaitGroup
	results := make([]OrderResponse, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.AdvanceStatus(ctx, o.ID, order.StatusServed)
		}()
	}
	wg.Wait()

	changed := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Changed {
			changed++
		}
	}
	assert.Equal(t, 1, changed)
	assert.Len(t, pub.events, 1)
}

func TestReplaceItems(t *testing.T) {
	svc, store, pub := setup(t)
	ctx := context.Background()
	o := createPho(t, svc)

	_, err := svc.AdvanceStatus(ctx, o.ID, order.StatusCooking)
	require.NoError(t, err)
	store.PutMenuItem(menuitem.MenuItem{ID: bunBo, Name: "Bun Bo Hue", PriceCents: 800, PriceCurrency: currency.CurrencyUSD})
	pub.reset()

	resp, err := svc.ReplaceItems(ctx, o.ID, []ItemRequest{{MenuItemID: bunBo, Quantity: 3}})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, resp.Order.Status)
	require.Len(t, resp.Order.OrderItems, 1)
	assert.Equal(t, int64(2400), resp.Order.TotalCents())

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.OrderItems, 1)
	assert.Equal(t, bunBo, got.OrderItems[0].MenuItemID)

	assert.Equal(t, []string{event.TopicUpdateOrder, event.TopicCustomerOrderUpdate}, pub.topics())
	assert.Equal(t, event.KindOrderUpdated, pub.events[0].evt.Kind)
	assert.Equal(t, order.StatusCooking, pub.events[0].evt.Order.PreviousStatus)
}

func TestReplaceItemsWhilePendingSkipsCustomerTopic(t *testing.T) {
	svc, _, pub := setup(t)
	o := createPho(t, svc)
	pub.reset()

	_, err := svc.ReplaceItems(context.Background(), o.ID, []ItemRequest{{MenuItemID: pho, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{event.TopicUpdateOrder}, pub.topics())
}

func TestReplaceItemsWindow(t *testing.T) {
	for _, st := range order.Statuses() {
		t.Run(st.String(), func(t *testing.T) {
			svc, store, _ := setup(t)
			o := drive(t, svc, store, st)

			_, err := svc.ReplaceItems(context.Background(), o.ID, []ItemRequest{{MenuItemID: bunBo, Quantity: 1}})
			if st.Editable() {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidState)

			got, getErr := svc.GetOrder(context.Background(), o.ID)
			require.NoError(t, getErr)
			assert.Equal(t, st, got.Status)
			assert.Equal(t, pho, got.OrderItems[0].MenuItemID, "items untouched")
		})
	}
}

func TestPublishFailureIsAWarning(t *testing.T) {
	svc, _, pub := setup(t)
	pub.fail = apperr.Wrap(apperr.KindPublishFailure, errors.New("broker down"), "failed to publish order_created to new-order")

	resp, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID: 5,
		Items:   []ItemRequest{{MenuItemID: pho, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"failed to publish order_created to new-order"}, resp.Warnings)

	got, err := svc.GetOrder(context.Background(), resp.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status, "the order stays committed")
}

func TestListTableOrders(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	first := createPho(t, svc)
	second := createPho(t, svc)
	_, err := svc.MarkServed(ctx, second.ID)
	require.NoError(t, err)

	orders, err := svc.ListTableOrders(ctx, ListTableOrdersRequest{TableID: 5, Statuses: []order.Status{order.StatusServed}, UnbilledOnly: true})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.NotEmpty(t, orders[0].OrderItems)

	orders, err = svc.ListTableOrders(ctx, ListTableOrdersRequest{TableID: 5})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)

	_, err = svc.ListTableOrders(ctx, ListTableOrdersRequest{TableID: 77})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
