package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/order"
)

// Version is the wire format version written by this build.
const Version = 1

// Kind discriminates the payload of an Envelope.
type Kind string

const (
	KindOrderCreated       Kind = "order_created"
	KindOrderUpdated       Kind = "order_updated"
	KindOrderStatusChanged Kind = "order_status_changed"
	KindOrderReadyToServe  Kind = "order_ready_to_serve"
	KindBillPaid           Kind = "bill_paid"
)

// Broker topics. They double as routing keys on the events exchange.
const (
	TopicNewOrder            = "new-order"
	TopicUpdateOrder         = "update-order"
	TopicServeOrder          = "serve-order"
	TopicPaidBills           = "paid-bills"
	TopicCustomerOrderUpdate = "customer-order-update"
)

var (
	ErrUnknownKind        = errors.New("unknown event kind")
	ErrUnsupportedVersion = errors.New("unsupported event version")
	ErrMissingPayload     = errors.New("event payload missing")
)

// TopicFor returns the default topic of an event kind.
func TopicFor(k Kind) (string, error) {
	switch k {
	case KindOrderCreated:
		return TopicNewOrder, nil
	case KindOrderUpdated, KindOrderStatusChanged:
		return TopicUpdateOrder, nil
	case KindOrderReadyToServe:
		return TopicServeOrder, nil
	case KindBillPaid:
		return TopicPaidBills, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
}

// StreamName maps a topic to the SSE event name clients listen for.
func StreamName(topic string) string {
	if topic == TopicPaidBills {
		return "bill-paid"
	}

	return topic
}

// Envelope is the versioned record carried over the broker.
type Envelope struct {
	Version    int           `json:"version"`
	Kind       Kind          `json:"kind"`
	OccurredAt time.Time     `json:"occurredAt"`
	Order      *OrderPayload `json:"order,omitempty"`
	Bill       *BillPayload  `json:"bill,omitempty"`
}

// ItemSummary is the denormalized view of an order line.
type ItemSummary struct {
	MenuItemID      int64  `json:"menuItemId"`
	Name            string `json:"name"`
	Quantity        int    `json:"quantity"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// OrderPayload carries enough of an order for kitchen and waitstaff screens.
type OrderPayload struct {
	OrderID        int64         `json:"orderId"`
	TableID        int64         `json:"tableId"`
	Status         order.Status  `json:"status"`
	PreviousStatus order.Status  `json:"previousStatus,omitempty"`
	Items          []ItemSummary `json:"items"`
}

// BilledItem is one order line as it appears on a bill.
type BilledItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
}

// BilledOrder is one order of a bill.
type BilledOrder struct {
	OrderID    int64        `json:"orderId"`
	TotalCents int64        `json:"totalCents"`
	Items      []BilledItem `json:"items"`
}

// BillPayload carries a paid bill for manager dashboards.
type BillPayload struct {
	BillID     int64             `json:"billId"`
	TableID    int64             `json:"tableId"`
	TotalCents int64             `json:"totalCents"`
	Currency   currency.Currency `json:"currency"`
	BillTime   time.Time         `json:"billTime"`
	IsPaid     bool              `json:"isPaid"`
	Orders     []BilledOrder     `json:"orders"`
}

// NewOrderEvent builds an order event. previous may be empty.
func NewOrderEvent(k Kind, o order.Order, previous order.Status, at time.Time) Envelope {
	items := make([]ItemSummary, 0, len(o.OrderItems))
	for _, item := range o.OrderItems {
		items = append(items, ItemSummary{
			MenuItemID:      item.MenuItemID,
			Name:            item.MenuItemName,
			Quantity:        item.Quantity,
			SpecialRequests: item.SpecialRequests,
		})
	}

	return Envelope{
		Version:    Version,
		Kind:       k,
		OccurredAt: at,
		Order: &OrderPayload{
			OrderID:        o.ID,
			TableID:        o.TableID,
			Status:         o.Status,
			PreviousStatus: previous,
			Items:          items,
		},
	}
}

// NewBillPaidEvent builds the event emitted once a bill is settled.
func NewBillPaidEvent(b bill.Bill, orders []order.Order, at time.Time) Envelope {
	billed := make([]BilledOrder, 0, len(orders))
	for _, o := range orders {
		items := make([]BilledItem, 0, len(o.OrderItems))
		for _, item := range o.OrderItems {
			items = append(items, BilledItem{
				Name:       item.MenuItemName,
				Quantity:   item.Quantity,
				PriceCents: item.PriceCents,
			})
		}
		billed = append(billed, BilledOrder{
			OrderID:    o.ID,
			TotalCents: o.TotalCents(),
			Items:      items,
		})
	}

	return Envelope{
		Version:    Version,
		Kind:       KindBillPaid,
		OccurredAt: at,
		Bill: &BillPayload{
			BillID:     b.ID,
			TableID:    b.TableID,
			TotalCents: b.TotalCents,
			Currency:   b.TotalCurrency,
			BillTime:   b.CreatedAt,
			IsPaid:     b.IsPaid(),
			Orders:     billed,
		},
	}
}

// Validate checks that a decoded envelope can be acted on.
func (e *Envelope) Validate() error {
	if e.Version < 1 || e.Version > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}

	switch e.Kind {
	case KindOrderCreated, KindOrderUpdated, KindOrderStatusChanged, KindOrderReadyToServe:
		if e.Order == nil {
			return fmt.Errorf("%w: %s without order", ErrMissingPayload, e.Kind)
		}
	case KindBillPaid:
		if e.Bill == nil {
			return fmt.Errorf("%w: %s without bill", ErrMissingPayload, e.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}

	return nil
}
