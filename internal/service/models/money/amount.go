package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a monetary amount in minor units (cents).
type Amount int64

// MaxAmount bounds any line, subtotal or total the ledger accepts. It keeps
// every sum of accepted amounts, tax included, well inside int64.
const MaxAmount Amount = 100_000_000_000_000

// Mul returns a multiplied by qty.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// MulChecked returns a multiplied by qty, or false when either operand is
// negative or the product exceeds MaxAmount.
func (a Amount) MulChecked(qty int) (Amount, bool) {
	if a < 0 || qty < 0 {
		return 0, false
	}
	if qty != 0 && a > MaxAmount/Amount(qty) {
		return 0, false
	}

	return a * Amount(qty), true
}

func (a Amount) Add(b Amount) Amount {
	return a + b
}

func (a Amount) Sub(b Amount) Amount {
	return a - b
}

// ApplyRate returns a*rate rounded half-to-even to whole minor units.
func (a Amount) ApplyRate(rate decimal.Decimal) Amount {
	return Amount(decimal.NewFromInt(int64(a)).Mul(rate).RoundBank(0).IntPart())
}

// Decimal returns the amount in major units, e.g. 1234 -> 12.34.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// Sum adds up amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}

	return total
}
