package enrollment

import (
	"github.com/go-playground/validator/v10"

	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

// NewEnrollment is the payload of an enrollment: the student data plus the tuition plan of
// the first school period.
type NewEnrollment struct {
	student.NewStudent
	ConfiguracionFinanciera *finance.FinancialConfig `json:"configuracionFinanciera" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.NewStudent.Clean()
	if ne.ConfiguracionFinanciera != nil {
		ne.ConfiguracionFinanciera.Clean()
	}
	return validate.Struct(ne)
}

// Result is everything an enrollment persisted.
type Result struct {
	Student       student.Student        `json:"estudiante"`
	State         finance.FinancialState `json:"estadoFinanciero"`
	Payments      []finance.Payment      `json:"pagos"`
	TotalPayments int                    `json:"totalPagosGenerados"`
}
