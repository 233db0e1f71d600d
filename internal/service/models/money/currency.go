package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"golang.org/x/text/currency"
)

// Currency is an ISO-4217 currency code.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyRUB Currency = "RUB"
)

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// ParseCurrency validates s against the ISO-4217 table.
func ParseCurrency(s string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return "", fmt.Errorf("%w: %w %q", errs.ErrInvalidArgument, ErrInvalidCurrency, s)
	}

	return Currency(unit.String()), nil
}
