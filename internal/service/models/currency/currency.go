package currency

import (
	"database/sql/driver"
	"errors"
	"strings"
)

// Currency is an ISO 4217 code of the amount it is attached to.
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var ErrInvalidCurrency = errors.New("invalid currency")

var known = map[Currency]struct{}{
	CurrencyRUB: {},
	CurrencyUSD: {},
	CurrencyEUR: {},
}

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// ParseCurrency accepts a currency code in any letter case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := known[c]; !ok {
		return "", ErrInvalidCurrency
	}

	return c, nil
}
