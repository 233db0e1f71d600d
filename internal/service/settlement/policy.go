package settlement

import (
	"fmt"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/shopspring/decimal"
)

// CommissionPolicy decides the commission rate snapshotted into new items.
// Later policy changes never touch items already placed.
type CommissionPolicy struct {
	Default   decimal.Decimal
	Overrides map[string]decimal.Decimal
}

// NewCommissionPolicy validates every rate against [0, 1].
func NewCommissionPolicy(def decimal.Decimal, overrides map[string]decimal.Decimal) (CommissionPolicy, error) {
	if err := validateRate(def); err != nil {
		return CommissionPolicy{}, fmt.Errorf("default commission: %w", err)
	}

	for _, sellerID := range sortedKeys(overrides) {
		if err := validateRate(overrides[sellerID]); err != nil {
			return CommissionPolicy{}, fmt.Errorf("commission for seller %s: %w", sellerID, err)
		}
	}

	return CommissionPolicy{Default: def, Overrides: overrides}, nil
}

// RateFor returns the rate that applies to sellerID's items.
func (p CommissionPolicy) RateFor(sellerID string) decimal.Decimal {
	if rate, ok := p.Overrides[sellerID]; ok {
		return rate
	}

	return p.Default
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: rate %s is outside [0, 1]", errs.ErrInvalidArgument, rate)
	}

	return nil
}
