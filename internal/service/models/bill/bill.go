package bill

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
)

// Status is the payment state of a bill.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

var ErrInvalidStatus = errors.New("invalid bill status")

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) String() string {
	return string(s)
}

// Bill aggregates served orders of one table into a payable total.
// OrderIDs is the owned order set; orders point back only through their BillID.
type Bill struct {
	ID            int64             `json:"id"`
	TableID       int64             `json:"tableId"`
	OrderIDs      []int64           `json:"orderIds"`
	TotalCents    int64             `json:"totalCents"`
	TotalCurrency currency.Currency `json:"totalCurrency"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
}

// IsPaid reports whether the bill is settled.
func (b *Bill) IsPaid() bool {
	return b.Status == StatusPaid
}
