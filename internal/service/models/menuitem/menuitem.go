package menuitem

import "github.com/corray333/backend-labs/floor/internal/service/models/currency"

// MenuItem is a dish with its current price.
type MenuItem struct {
	ID            int64             `json:"id"            mapstructure:"id"`
	Name          string            `json:"name"          mapstructure:"name"`
	PriceCents    int64             `json:"priceCents"    mapstructure:"price_cents"`
	PriceCurrency currency.Currency `json:"priceCurrency" mapstructure:"price_currency"`
}
