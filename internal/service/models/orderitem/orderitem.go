package orderitem

import (
	"time"

	"github.com/corray333/backend-labs/floor/internal/service/models/currency"
)

// OrderItem represents one line of an order with the menu price captured at order time.
type OrderItem struct {
	ID              int64             `json:"id"`
	OrderID         int64             `json:"orderId"`
	MenuItemID      int64             `json:"menuItemId"`
	MenuItemName    string            `json:"menuItemName"`
	Quantity        int               `json:"quantity"`
	PriceCents      int64             `json:"priceCents"`
	PriceCurrency   currency.Currency `json:"priceCurrency"`
	SpecialRequests string            `json:"specialRequests,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// LineTotalCents is the captured price multiplied by quantity.
func (i OrderItem) LineTotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}
