package order

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
	"github.com/corray333/backend-labs/floor/internal/service/models/orderitem"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusCooking      Status = "COOKING"
	StatusReadyToServe Status = "READY_TO_SERVE"
	StatusServed       Status = "SERVED"
	StatusBilled       Status = "BILLED"
	StatusPaid         Status = "PAID"
	StatusCancelled    Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid order status")

// transitions is the only source of truth for which status changes are legal.
var transitions = map[Status][]Status{
	StatusPending:      {StatusCooking, StatusReadyToServe, StatusServed, StatusCancelled},
	StatusCooking:      {StatusReadyToServe, StatusServed, StatusCancelled},
	StatusReadyToServe: {StatusServed, StatusCancelled},
	StatusServed:       {StatusBilled},
	StatusBilled:       {StatusPaid},
	StatusPaid:         {},
	StatusCancelled:    {},
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusCooking,
		StatusReadyToServe,
		StatusServed,
		StatusBilled,
		StatusPaid,
		StatusCancelled,
	}
}

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]

	return ok
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}

	return st, nil
}

// CanTransition reports whether an order in status from may move to status to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// BillingOnly reports whether s may only be entered through checkout or payment.
func (s Status) BillingOnly() bool {
	return s == StatusBilled || s == StatusPaid
}

// Editable reports whether items of an order in status s may still be replaced.
func (s Status) Editable() bool {
	switch s {
	case StatusPending, StatusCooking, StatusReadyToServe, StatusServed:
		return true
	default:
		return false
	}
}

// Order is one customer order at one table.
type Order struct {
	ID         int64                 `json:"id"`
	TableID    int64                 `json:"tableId"`
	Status     Status                `json:"status"`
	BillID     *int64                `json:"billId,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
	OrderItems []orderitem.OrderItem `json:"orderItems"`
}

// TotalCents sums captured price times quantity over the order's items.
func (o *Order) TotalCents() int64 {
	var total int64
	for _, item := range o.OrderItems {
		total += item.LineTotalCents()
	}

	return total
}

// Currency returns the currency shared by all items, or false if they disagree.
func (o *Order) Currency() (currency.Currency, bool) {
	var cur currency.Currency
	for i, item := range o.OrderItems {
		if i == 0 {
			cur = item.PriceCurrency

			continue
		}
		if item.PriceCurrency != cur {
			return "", false
		}
	}

	return cur, true
}
