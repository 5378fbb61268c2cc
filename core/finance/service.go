package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

var (
	// errors
	ErrStateNotFound   = core.NewNotFoundError("financial state")
	ErrPaymentNotFound = core.NewNotFoundError("payment")
	ErrConceptNotFound = core.NewNotFoundError("payment concept")
	ErrStateExists     = errors.New("the student already has a financial state for this school period")
	ErrPaymentClosed   = errors.New("only pending or overdue payments can be modified")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		GetConceptByID(ctx context.Context, id int) (PaymentConcept, error)
		QueryConcepts(ctx context.Context) ([]PaymentConcept, error)

		// CreateFinancialState returns ErrStateExists when the (student, period) pair is taken.
		CreateFinancialState(ctx context.Context, fs FinancialState) (FinancialState, error)
		GetFinancialStateByID(ctx context.Context, id int) (FinancialState, error)
		// LockFinancialState reads the state and locks it until the ctx transaction ends.
		LockFinancialState(ctx context.Context, id int) (FinancialState, error)
		GetFinancialState(ctx context.Context, studentID, periodID int) (FinancialState, error)
		QueryFinancialStates(ctx context.Context, studentID int) ([]FinancialState, error)
		UpdateFinancialState(ctx context.Context, fs FinancialState) (FinancialState, error)

		CreatePayments(ctx context.Context, payments ...Payment) ([]Payment, error)
		GetPaymentByID(ctx context.Context, id int) (Payment, error)
		// LockPayment reads the payment and locks it until the ctx transaction ends.
		LockPayment(ctx context.Context, id int) (Payment, error)
		// QueryPayments applies AND operation on available PaymentFilter fields.
		QueryPayments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		// MarkOverduePayments flags as overdue the pending payments due before today.
		MarkOverduePayments(ctx context.Context, today time.Time) (int, error)

		CreateScholarship(ctx context.Context, sch Scholarship) (Scholarship, error)
		GetScholarshipByID(ctx context.Context, id int) (Scholarship, error)
		QueryScholarships(ctx context.Context, filter *ScholarshipFilter) ([]Scholarship, error)
		UpdateScholarship(ctx context.Context, sch Scholarship) (Scholarship, error)
	}

	// Invalidator drops data derived from payments, such as cached summaries.
	Invalidator interface {
		Invalidate(ctx context.Context)
	}

	Service interface {
		CreateFinancialConfig(ctx context.Context, studentID int, cfg FinancialConfig, adminID int) (ConfigResult, error)
		GetState(ctx context.Context, studentID, periodID int) (FinancialState, error)
		QueryStates(ctx context.Context, studentID int) ([]FinancialState, error)
		QueryConcepts(ctx context.Context) ([]PaymentConcept, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error)
		GetPayment(ctx context.Context, id int) (Payment, error)
		UpdatePayment(ctx context.Context, id int, up UpdatePayment) (Payment, error)
		RecordPayment(ctx context.Context, id int, rp RecordPayment) (Payment, error)
		CancelPayment(ctx context.Context, id int) (Payment, error)
		MarkOverdue(ctx context.Context, now time.Time) (int, error)
		CreateCharge(ctx context.Context, nc NewCharge, adminID int) (Payment, error)

		ProposeScholarship(ctx context.Context, ns NewScholarship, adminID int) (Scholarship, error)
		GetScholarship(ctx context.Context, id int) (Scholarship, error)
		QueryScholarships(ctx context.Context, filter *ScholarshipFilter) ([]Scholarship, error)
		ApproveScholarship(ctx context.Context, id, adminID int) (Scholarship, error)
		RejectScholarship(ctx context.Context, id int) (Scholarship, error)
		ActivateScholarship(ctx context.Context, id int) (Scholarship, error)
		ExpireScholarship(ctx context.Context, id int) (Scholarship, error)
	}

	service struct {
		repo        Repository
		tx          core.Transactor
		students    student.Service
		academic    academic.Service
		invalidator Invalidator
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	tx core.Transactor,
	studentSvc student.Service,
	academicSvc academic.Service,
	invalidator Invalidator,
) Service {
	return &service{
		repo:        repo,
		tx:          tx,
		students:    studentSvc,
		academic:    academicSvc,
		invalidator: invalidator,
	}
}

func (svc *service) invalidate(ctx context.Context) {
	if svc.invalidator != nil {
		svc.invalidator.Invalidate(ctx)
	}
}

func (svc *service) checkStudent(ctx context.Context, id int) error {
	if _, err := svc.students.Get(ctx, id); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return core.NewNotFoundError("student", "estudianteId")
		}
		return errors.Wrap(err, "finding student")
	}
	return nil
}

// CreateFinancialConfig computes the tuition plan of cfg and persists the financial state of
// the student for the period along with one pending payment per installment.
// It joins the transaction carried by ctx, if any.
func (svc *service) CreateFinancialConfig(ctx context.Context, studentID int, cfg FinancialConfig, adminID int) (ConfigResult, error) {
	breakdown, err := Calculate(cfg.TotalSemestre, cfg.PorcentajeBeca, cfg.NumeroPagos)
	if err != nil {
		return ConfigResult{}, core.NewValidationError(err)
	}
	dueDates, err := cfg.DueDates()
	if err != nil {
		return ConfigResult{}, core.NewValidationError(err, core.FieldError{Field: "fechasVencimiento", Error: err.Error()})
	}
	schedule, err := BuildSchedule(breakdown, dueDates)
	if err != nil {
		return ConfigResult{}, core.NewValidationError(err, core.FieldError{Field: "fechasVencimiento", Error: err.Error()})
	}

	var res ConfigResult
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.checkStudent(ctx, studentID); err != nil {
			return err
		}
		if _, err := svc.academic.GetPeriod(ctx, cfg.PeriodoEscolarID); err != nil {
			if errors.Cause(err) == academic.ErrPeriodNotFound {
				return core.NewNotFoundError("school period", "periodoEscolarId")
			}
			return errors.Wrap(err, "finding school period")
		}

		switch _, err := svc.repo.GetFinancialState(ctx, studentID, cfg.PeriodoEscolarID); {
		case err == nil:
			return core.NewConflictError("%s", ErrStateExists)
		case errors.Cause(err) != ErrStateNotFound:
			return errors.Wrap(err, "finding financial state")
		}

		now := time.Now().UTC()
		state, err := svc.repo.CreateFinancialState(ctx, FinancialState{
			StudentID:         studentID,
			SchoolPeriodID:    cfg.PeriodoEscolarID,
			TotalSemestre:     breakdown.Total,
			PorcentajeBeca:    breakdown.Percent,
			NumeroPagos:       breakdown.NumPayments,
			MontoPorPago:      breakdown.PerPayment,
			TotalDescuento:    breakdown.Discount,
			TotalConDescuento: breakdown.DiscountedTotal,
			TotalPagado:       decimal.Zero,
			Saldo:             breakdown.DiscountedTotal,
			CreatedBy:         adminID,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			if errors.Cause(err) == ErrStateExists {
				return core.NewConflictError("%s", ErrStateExists)
			}
			return errors.Wrap(err, "creating financial state")
		}

		for i := range schedule {
			schedule[i].StudentID = studentID
			schedule[i].FinancialStateID = &state.ID
			schedule[i].CreatedBy = adminID
			schedule[i].CreatedAt = now
			schedule[i].UpdatedAt = now
		}
		payments, err := svc.repo.CreatePayments(ctx, schedule...)
		if err != nil {
			return errors.Wrap(err, "creating payments")
		}

		res = ConfigResult{State: state, Payments: payments}
		return nil
	})
	if err != nil {
		return ConfigResult{}, err
	}

	svc.invalidate(ctx)
	return res, nil
}

func (svc *service) GetState(ctx context.Context, studentID, periodID int) (FinancialState, error) {
	return svc.repo.GetFinancialState(ctx, studentID, periodID)
}

func (svc *service) QueryStates(ctx context.Context, studentID int) ([]FinancialState, error) {
	return svc.repo.QueryFinancialStates(ctx, studentID)
}

func (svc *service) QueryConcepts(ctx context.Context) ([]PaymentConcept, error) {
	return svc.repo.QueryConcepts(ctx)
}

func (svc *service) QueryPayments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error) {
	if filter == nil {
		filter = new(PaymentFilter)
	}
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

func (svc *service) GetPayment(ctx context.Context, id int) (Payment, error) {
	return svc.repo.GetPaymentByID(ctx, id)
}

// UpdatePayment edits an open payment. Paid and cancelled payments are frozen.
func (svc *service) UpdatePayment(ctx context.Context, id int, up UpdatePayment) (Payment, error) {
	var p Payment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = svc.repo.LockPayment(ctx, id); err != nil {
			return errors.Wrap(err, "locking payment")
		}
		if !p.Status.IsOpen() {
			return core.NewValidationError(ErrPaymentClosed, core.FieldError{Field: "estatus", Error: ErrPaymentClosed.Error()})
		}

		if up.FechaVencimiento != "" {
			due, err := core.ParseDate(up.FechaVencimiento)
			if err != nil {
				return errors.Wrap(err, "parsing due date")
			}
			p.DueDate = due
			// a payment moved into the future is no longer late
			if p.Status == StatusOverdue && !due.Before(core.Today(nowFunc())) {
				p.Status = StatusPending
			}
		}
		if up.Referencia != nil {
			p.Reference = *up.Referencia
		}
		if up.MontoFinal != nil {
			if p.FinancialStateID != nil {
				return core.NewValidationError(nil, core.FieldError{
					Field: "montoFinal",
					Error: "installments of a tuition plan cannot change their amount",
				})
			}
			if !up.MontoFinal.IsPositive() || !up.MontoFinal.Equal(up.MontoFinal.Round(2)) {
				return core.NewValidationError(nil, core.FieldError{Field: "montoFinal", Error: amountText})
			}
			p.OriginalAmount = *up.MontoFinal
			p.DiscountAmount = decimal.Zero
			p.FinalAmount = *up.MontoFinal
		}

		p.UpdatedAt = time.Now().UTC()
		p, err = svc.repo.UpdatePayment(ctx, p)
		return errors.Wrap(err, "updating payment")
	})
	if err != nil {
		return Payment{}, err
	}
	svc.invalidate(ctx)
	return p, nil
}

// RecordPayment marks an open payment as paid and, for tuition installments, adds it to the
// financial state in the same transaction.
func (svc *service) RecordPayment(ctx context.Context, id int, rp RecordPayment) (Payment, error) {
	paidDate := core.Today(nowFunc())
	if rp.FechaPago != "" {
		d, err := core.ParseDate(rp.FechaPago)
		if err != nil {
			return Payment{}, errors.Wrap(err, "parsing paid date")
		}
		paidDate = d
	}
	method := PaymentMethod(rp.MetodoPago)

	var p Payment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = svc.repo.LockPayment(ctx, id); err != nil {
			return errors.Wrap(err, "locking payment")
		}
		if err := checkTransition(p.Status, StatusPaid); err != nil {
			return err
		}

		p.Status = StatusPaid
		p.PaidDate = &paidDate
		p.Method = &method
		if rp.Referencia != "" {
			p.Reference = rp.Referencia
		}
		p.UpdatedAt = time.Now().UTC()
		if p, err = svc.repo.UpdatePayment(ctx, p); err != nil {
			return errors.Wrap(err, "updating payment")
		}

		if p.FinancialStateID == nil {
			return nil
		}
		state, err := svc.repo.LockFinancialState(ctx, *p.FinancialStateID)
		if err != nil {
			return errors.Wrap(err, "locking financial state")
		}
		state.applyPayment(p.FinalAmount, paidDate)
		state.UpdatedAt = p.UpdatedAt
		_, err = svc.repo.UpdateFinancialState(ctx, state)
		return errors.Wrap(err, "updating financial state")
	})
	if err != nil {
		return Payment{}, err
	}
	svc.invalidate(ctx)
	return p, nil
}

func (svc *service) CancelPayment(ctx context.Context, id int) (Payment, error) {
	var p Payment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = svc.repo.LockPayment(ctx, id); err != nil {
			return errors.Wrap(err, "locking payment")
		}
		if err := checkTransition(p.Status, StatusCancelled); err != nil {
			return err
		}
		p.Status = StatusCancelled
		p.UpdatedAt = time.Now().UTC()
		p, err = svc.repo.UpdatePayment(ctx, p)
		return errors.Wrap(err, "updating payment")
	})
	if err != nil {
		return Payment{}, err
	}
	svc.invalidate(ctx)
	return p, nil
}

// MarkOverdue flags the pending payments due before now's day. It returns how many changed.
func (svc *service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	n, err := svc.repo.MarkOverduePayments(ctx, core.Today(now))
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue payments")
	}
	if n > 0 {
		svc.invalidate(ctx)
	}
	return n, nil
}

// CreateCharge registers an ad-hoc pending payment for a student against a concept.
func (svc *service) CreateCharge(ctx context.Context, nc NewCharge, adminID int) (Payment, error) {
	due, err := core.ParseDate(nc.FechaVencimiento)
	if err != nil {
		return Payment{}, errors.Wrap(err, "parsing due date")
	}

	var p Payment
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.checkStudent(ctx, nc.EstudianteID); err != nil {
			return err
		}
		if _, err := svc.repo.GetConceptByID(ctx, nc.ConceptoID); err != nil {
			if errors.Cause(err) == ErrConceptNotFound {
				return core.NewNotFoundError("payment concept", "conceptoId")
			}
			return errors.Wrap(err, "finding payment concept")
		}

		now := time.Now().UTC()
		created, err := svc.repo.CreatePayments(ctx, Payment{
			StudentID:      nc.EstudianteID,
			ConceptID:      nc.ConceptoID,
			OriginalAmount: nc.Monto,
			DiscountAmount: decimal.Zero,
			FinalAmount:    nc.Monto,
			DueDate:        due,
			Status:         StatusPending,
			Reference:      nc.Referencia,
			CreatedBy:      adminID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}
		p = created[0]
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	svc.invalidate(ctx)
	return p, nil
}

func checkTransition(from, to PaymentStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	msg := fmt.Sprintf("cannot change status from %s to %s", from, to)
	return core.NewValidationError(nil, core.FieldError{Field: "estatus", Error: msg})
}
