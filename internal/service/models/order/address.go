package order

import (
	"fmt"
	"strings"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
)

// ShippingAddress is captured at placement and never changes afterwards.
type ShippingAddress struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// Validate checks the mandatory parts of the address.
func (a ShippingAddress) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"recipient", a.Recipient},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"city", a.City},
		{"country", a.Country},
	}

	missing := make([]string, 0)
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address is missing %s", errs.ErrInvalidArgument, strings.Join(missing, ", "))
	}

	return nil
}

// PaymentMethod is the tag of the payment channel chosen at checkout.
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentMobileMoney    PaymentMethod = "mobile_money"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// ToPaymentMethod parses s.
func ToPaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCard, PaymentMobileMoney, PaymentBankTransfer, PaymentCashOnDelivery:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", errs.ErrInvalidArgument, s)
	}
}
