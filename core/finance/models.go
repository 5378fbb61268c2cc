package finance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDIENTE"
	StatusPaid      PaymentStatus = "PAGADO"
	StatusOverdue   PaymentStatus = "VENCIDO"
	StatusCancelled PaymentStatus = "CANCELADO"
)

// paymentTransitions lists the statuses reachable from each status. PAGADO and CANCELADO are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	StatusPending: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, st := range paymentTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether a payment in this status is still owed.
func (s PaymentStatus) IsOpen() bool {
	return s == StatusPending || s == StatusOverdue
}

type PaymentMethod string

const (
	MethodCash      PaymentMethod = "EFECTIVO"
	MethodTransfer  PaymentMethod = "TRANSFERENCIA"
	MethodCard      PaymentMethod = "TARJETA"
	MethodReference PaymentMethod = "REFERENCIA"
)

// Payment concepts seeded by the migrations.
const (
	ConceptTuition     = 1
	ConceptEnrollment  = 2
	ConceptLateFee     = 3
	ConceptOtherCharge = 4
)

type PaymentConcept struct {
	ID   int    `json:"id"`
	Code string `json:"clave"`
	Name string `json:"nombre"`
}

// FinancialState is the tuition plan of a student for one school period.
// TotalConDescuento = TotalSemestre - TotalDescuento and Saldo = TotalConDescuento - TotalPagado.
type FinancialState struct {
	ID                int             `json:"id"`
	StudentID         int             `json:"estudianteId"`
	SchoolPeriodID    int             `json:"periodoEscolarId"`
	TotalSemestre     decimal.Decimal `json:"totalSemestre"`
	PorcentajeBeca    int             `json:"porcentajeBeca"`
	NumeroPagos       int             `json:"numeroPagos"`
	MontoPorPago      decimal.Decimal `json:"montoPorPago"`
	TotalDescuento    decimal.Decimal `json:"totalDescuento"`
	TotalConDescuento decimal.Decimal `json:"totalConDescuento"`
	TotalPagado       decimal.Decimal `json:"totalPagado"`
	Saldo             decimal.Decimal `json:"saldo"`
	FechaUltimoPago   *time.Time      `json:"fechaUltimoPago"`
	CreatedBy         int             `json:"creadoPor,omitempty"`
	CreatedAt         time.Time       `json:"fechaCreacion"`
	UpdatedAt         time.Time       `json:"fechaActualizacion"`
}

// applyPayment adds amount paid on paidDate, keeping Saldo consistent.
func (fs *FinancialState) applyPayment(amount decimal.Decimal, paidDate time.Time) {
	fs.TotalPagado = fs.TotalPagado.Add(amount)
	fs.Saldo = fs.TotalConDescuento.Sub(fs.TotalPagado)
	if fs.FechaUltimoPago == nil || paidDate.After(*fs.FechaUltimoPago) {
		fs.FechaUltimoPago = &paidDate
	}
}

type Payment struct {
	ID                int             `json:"id"`
	StudentID         int             `json:"estudianteId"`
	FinancialStateID  *int            `json:"estadoFinancieroId"`
	ConceptID         int             `json:"conceptoId"`
	InstallmentNumber *int            `json:"numeroPago"`
	OriginalAmount    decimal.Decimal `json:"montoOriginal"`
	DiscountAmount    decimal.Decimal `json:"montoDescuento"`
	FinalAmount       decimal.Decimal `json:"montoFinal"`
	DueDate           time.Time       `json:"fechaVencimiento"`
	PaidDate          *time.Time      `json:"fechaPago"`
	Status            PaymentStatus   `json:"estatus"`
	Method            *PaymentMethod  `json:"metodoPago"`
	Reference         string          `json:"referencia"`
	CreatedBy         int             `json:"creadoPor,omitempty"`
	CreatedAt         time.Time       `json:"fechaCreacion"`
	UpdatedAt         time.Time       `json:"fechaActualizacion"`
}

// ConfigResult is what a financial configuration persists.
type ConfigResult struct {
	State    FinancialState `json:"estadoFinanciero"`
	Payments []Payment      `json:"pagos"`
}

// FinancialConfig is the tuition plan requested for a student and a school period.
type FinancialConfig struct {
	TotalSemestre     decimal.Decimal `json:"totalSemestre"`
	PorcentajeBeca    int             `json:"porcentajeBeca" validate:"min=0,max=30"`
	NumeroPagos       int             `json:"numeroPagos" validate:"required,min=1,max=6"`
	FechasVencimiento []string        `json:"fechasVencimiento" validate:"required,min=1,max=6,dive,isodate"`
	PeriodoEscolarID  int             `json:"periodoEscolarId" validate:"required,min=1"`
}

func (fc *FinancialConfig) Clean() {
	for i, d := range fc.FechasVencimiento {
		fc.FechasVencimiento[i] = core.CleanString(d)
	}
}

func (fc *FinancialConfig) Validate(validate *validator.Validate) error {
	fc.Clean()
	return validate.Struct(fc)
}

// DueDates parses FechasVencimiento. The config must have been validated.
func (fc FinancialConfig) DueDates() ([]time.Time, error) {
	dates := make([]time.Time, 0, len(fc.FechasVencimiento))
	for _, s := range fc.FechasVencimiento {
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// UpdatePayment holds the editable fields of an open payment.
// The amount can only be changed on charges that do not belong to a financial state.
type UpdatePayment struct {
	FechaVencimiento string           `json:"fechaVencimiento" validate:"omitempty,isodate"`
	MontoFinal       *decimal.Decimal `json:"montoFinal"`
	Referencia       *string          `json:"referencia" validate:"omitempty,max=100"`
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	up.FechaVencimiento = core.CleanString(up.FechaVencimiento)
	if up.Referencia != nil {
		ref := core.CleanString(*up.Referencia)
		up.Referencia = &ref
	}
	return validate.Struct(up)
}

type RecordPayment struct {
	MetodoPago string `json:"metodoPago" validate:"required,oneof=EFECTIVO TRANSFERENCIA TARJETA REFERENCIA"`
	FechaPago  string `json:"fechaPago" validate:"omitempty,isodate"`
	Referencia string `json:"referencia" validate:"omitempty,max=100"`
}

func (rp *RecordPayment) Validate(validate *validator.Validate) error {
	rp.MetodoPago = strings.ToUpper(core.CleanString(rp.MetodoPago))
	rp.FechaPago = core.CleanString(rp.FechaPago)
	rp.Referencia = core.CleanString(rp.Referencia)
	return validate.Struct(rp)
}

// NewCharge is an ad-hoc payment, outside of any tuition plan.
type NewCharge struct {
	EstudianteID     int             `json:"estudianteId" validate:"required,min=1"`
	ConceptoID       int             `json:"conceptoId" validate:"required,min=1"`
	Monto            decimal.Decimal `json:"monto"`
	FechaVencimiento string          `json:"fechaVencimiento" validate:"required,isodate"`
	Referencia       string          `json:"referencia" validate:"omitempty,max=100"`
}

func (nc *NewCharge) Validate(validate *validator.Validate) error {
	nc.FechaVencimiento = core.CleanString(nc.FechaVencimiento)
	nc.Referencia = core.CleanString(nc.Referencia)
	return validate.Struct(nc)
}

type PaymentFilter struct {
	StudentID        int       `query:"estudianteId"`
	FinancialStateID int       `query:"estadoFinancieroId"`
	SchoolPeriodID   int       `query:"periodoEscolarId"`
	ConceptID        int       `query:"conceptoId"`
	Statuses         []string  `query:"estatus"`
	DueFrom          time.Time `query:"-"`
	DueTo            time.Time `query:"-"`
}

func (pf *PaymentFilter) Clean() {
	for i, st := range pf.Statuses {
		pf.Statuses[i] = strings.ToUpper(core.CleanString(st))
	}
}
