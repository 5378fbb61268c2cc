package enrollment

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

// maxAttempts bounds the retries on a matrícula taken by a concurrent enrollment.
const maxAttempts = 3

type (
	Service interface {
		Enroll(ctx context.Context, ne NewEnrollment, adminID int) (Result, error)
	}

	service struct {
		tx          core.Transactor
		students    student.Service
		finance     finance.Service
		academic    academic.Service
		invalidator finance.Invalidator
		mailSvc     core.EmailService
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	studentSvc student.Service,
	financeSvc finance.Service,
	academicSvc academic.Service,
	invalidator finance.Invalidator,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		tx:          tx,
		students:    studentSvc,
		finance:     financeSvc,
		academic:    academicSvc,
		invalidator: invalidator,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

// Enroll registers a new student and their tuition plan for the configured school period.
// Student, financial state and payments are written in one transaction: on any error nothing
// is kept. A matrícula collision with a concurrent enrollment restarts the transaction.
func (svc *service) Enroll(ctx context.Context, ne NewEnrollment, adminID int) (Result, error) {
	if ne.ConfiguracionFinanciera == nil {
		return Result{}, core.NewValidationError(nil, core.FieldError{Field: "configuracionFinanciera", Error: "this field is required"})
	}
	cfg := *ne.ConfiguracionFinanciera

	if _, err := finance.Calculate(cfg.TotalSemestre, cfg.PorcentajeBeca, cfg.NumeroPagos); err != nil {
		return Result{}, core.NewValidationError(err)
	}
	if len(cfg.FechasVencimiento) != cfg.NumeroPagos {
		return Result{}, core.NewValidationError(finance.ErrDueDatesMismatch, core.FieldError{
			Field: "fechasVencimiento",
			Error: finance.ErrDueDatesMismatch.Error(),
		})
	}

	period, err := svc.checkReferences(ctx, ne)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for attempt := 1; ; attempt++ {
		res, err = svc.enroll(ctx, ne.NewStudent, cfg, adminID)
		if err == nil {
			break
		}
		if errors.Cause(err) == student.ErrMatriculaExists && attempt < maxAttempts {
			svc.logger.Warn("matrícula taken by a concurrent enrollment, retrying", map[string]interface{}{
				"attempt":     attempt,
				"curp":        ne.CURP,
				"programa_id": ne.ProgramID,
			})
			continue
		}
		return Result{}, err
	}

	if svc.invalidator != nil {
		svc.invalidator.Invalidate(ctx)
	}
	svc.sendReceipt(res, period)
	return res, nil
}

func (svc *service) enroll(ctx context.Context, ns student.NewStudent, cfg finance.FinancialConfig, adminID int) (Result, error) {
	var res Result
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		st, err := svc.students.Create(ctx, ns, adminID)
		if err != nil {
			return errors.Wrap(err, "creating student")
		}
		cr, err := svc.finance.CreateFinancialConfig(ctx, st.ID, cfg, adminID)
		if err != nil {
			return errors.Wrap(err, "creating financial configuration")
		}
		res = Result{
			Student:       st,
			State:         cr.State,
			Payments:      cr.Payments,
			TotalPayments: len(cr.Payments),
		}
		return nil
	})
	return res, err
}

// checkReferences makes sure the program, group and school period named by ne exist
// before anything is written.
func (svc *service) checkReferences(ctx context.Context, ne NewEnrollment) (academic.SchoolPeriod, error) {
	if _, err := svc.academic.GetProgram(ctx, ne.ProgramID); err != nil {
		if errors.Cause(err) == academic.ErrProgramNotFound {
			return academic.SchoolPeriod{}, core.NewNotFoundError("program", "programaId")
		}
		return academic.SchoolPeriod{}, errors.Wrap(err, "finding program")
	}

	if ne.GroupID != nil {
		grp, err := svc.academic.GetGroup(ctx, *ne.GroupID)
		if err != nil {
			if errors.Cause(err) == academic.ErrGroupNotFound {
				return academic.SchoolPeriod{}, core.NewNotFoundError("group", "grupoId")
			}
			return academic.SchoolPeriod{}, errors.Wrap(err, "finding group")
		}
		if grp.ProgramID != ne.ProgramID {
			return academic.SchoolPeriod{}, core.NewValidationError(nil, core.FieldError{
				Field: "grupoId",
				Error: "group does not belong to the program",
			})
		}
	}

	period, err := svc.academic.GetPeriod(ctx, ne.ConfiguracionFinanciera.PeriodoEscolarID)
	if err != nil {
		if errors.Cause(err) == academic.ErrPeriodNotFound {
			return academic.SchoolPeriod{}, core.NewNotFoundError("school period", "periodoEscolarId")
		}
		return academic.SchoolPeriod{}, errors.Wrap(err, "finding school period")
	}
	return period, nil
}

type receiptPayment struct {
	Number  int
	Amount  string
	DueDate string
}

func (svc *service) sendReceipt(res Result, period academic.SchoolPeriod) {
	if res.Student.Email == "" {
		return
	}

	payments := make([]receiptPayment, 0, len(res.Payments))
	for i, p := range res.Payments {
		payments = append(payments, receiptPayment{
			Number:  i + 1,
			Amount:  p.FinalAmount.StringFixed(2),
			DueDate: p.DueDate.Format(core.DateLayout),
		})
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: res.Student.FullName(), Address: res.Student.Email}},
		Subject:      "Comprobante de inscripción",
		TemplateName: "enrollment_receipt",
		TemplateData: map[string]interface{}{
			"StudentName":       res.Student.FullName(),
			"Matricula":         res.Student.Matricula,
			"Period":            period.Name,
			"TotalSemestre":     res.State.TotalSemestre.StringFixed(2),
			"PorcentajeBeca":    res.State.PorcentajeBeca,
			"TotalConDescuento": res.State.TotalConDescuento.StringFixed(2),
			"Payments":          payments,
		},
	})
}
