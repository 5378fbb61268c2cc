package finance

import (
	"time"

	"github.com/pkg/errors"
)

// ErrDueDatesMismatch is returned when the number of due dates differs from the number of payments.
var ErrDueDatesMismatch = errors.New("the number of due dates must equal the number of payments")

// BuildSchedule emits one pending tuition payment per installment of b, due on dueDates[i-1].
// The payments are not persisted and carry no student or financial state yet.
func BuildSchedule(b Breakdown, dueDates []time.Time) ([]Payment, error) {
	if len(dueDates) != b.NumPayments {
		return nil, ErrDueDatesMismatch
	}

	finals := b.Installments()
	discounts := b.DiscountInstallments()

	payments := make([]Payment, 0, b.NumPayments)
	for i := range finals {
		number := i + 1
		payments = append(payments, Payment{
			ConceptID:         ConceptTuition,
			InstallmentNumber: &number,
			OriginalAmount:    finals[i].Add(discounts[i]),
			DiscountAmount:    discounts[i],
			FinalAmount:       finals[i],
			DueDate:           dueDates[i],
			Status:            StatusPending,
		})
	}
	return payments, nil
}
