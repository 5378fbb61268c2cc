package finance

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	MaxScholarshipPercent = 30
	MaxPayments           = 6
)

var (
	hundred = decimal.NewFromInt(100)

	// errors
	ErrInvalidTotal       = errors.New("total must be greater than zero")
	ErrInvalidPercent     = errors.Errorf("scholarship percentage must be between 0 and %d", MaxScholarshipPercent)
	ErrInvalidNumPayments = errors.New("number of payments must be at least 1")
)

// Breakdown is the tuition split of a financial configuration.
// Amounts are in currency units with two decimal places.
type Breakdown struct {
	Total           decimal.Decimal
	Percent         int
	NumPayments     int
	Discount        decimal.Decimal
	DiscountedTotal decimal.Decimal
	// PerPayment is the amount of every installment but the last one.
	PerPayment decimal.Decimal
	// LastPayment absorbs the rounding remainder.
	LastPayment decimal.Decimal
}

// Calculate applies the scholarship percentage to total and splits the result in numPayments installments.
// The discount is rounded half-up to cents; installments are rounded down to cents and the
// last one takes the remainder, so the installments always add up to DiscountedTotal.
func Calculate(total decimal.Decimal, percent, numPayments int) (Breakdown, error) {
	total = total.Round(2)
	if !total.IsPositive() {
		return Breakdown{}, ErrInvalidTotal
	}
	if percent < 0 || percent > MaxScholarshipPercent {
		return Breakdown{}, ErrInvalidPercent
	}
	if numPayments < 1 {
		return Breakdown{}, ErrInvalidNumPayments
	}

	discount := total.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Round(2)
	discounted := total.Sub(discount)
	per, last := split(discounted, numPayments)

	return Breakdown{
		Total:           total,
		Percent:         percent,
		NumPayments:     numPayments,
		Discount:        discount,
		DiscountedTotal: discounted,
		PerPayment:      per,
		LastPayment:     last,
	}, nil
}

// Installments returns the final amount of every installment, in order.
func (b Breakdown) Installments() []decimal.Decimal {
	return installments(b.PerPayment, b.LastPayment, b.NumPayments)
}

// DiscountInstallments splits the discount the same way Installments splits the discounted total.
func (b Breakdown) DiscountInstallments() []decimal.Decimal {
	per, last := split(b.Discount, b.NumPayments)
	return installments(per, last, b.NumPayments)
}

func split(amount decimal.Decimal, n int) (per, last decimal.Decimal) {
	per = amount.Div(decimal.NewFromInt(int64(n))).RoundFloor(2)
	last = amount.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	return per, last
}

func installments(per, last decimal.Decimal, n int) []decimal.Decimal {
	amounts := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		amounts[i] = per
	}
	amounts[n-1] = last
	return amounts
}
