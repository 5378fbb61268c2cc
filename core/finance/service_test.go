package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/enrollment"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

const adminID = 1

func setup(t *testing.T) (*testutil.Env, enrollment.Result) {
	env := testutil.NewEnv(t)
	prog := env.CreateProgram(t, "LDER", "Licenciatura en Derecho")
	period := env.CreatePeriod(t, "2025-1", "2025-01-13", "2025-06-27")
	res := env.Enroll(t, testutil.NewEnrollment("GODE561231HDFRRN09", prog.ID, period.ID), adminID)
	return env, res
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.Truef(t, ok, "expected a validation error, got %T: %v", errors.Cause(err), err)
	require.NotEmpty(t, verr.Fields)
	return verr.Fields[0].Field
}

func TestRecordPayment(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()
	svc := env.FinanceSvc

	first, second := res.Payments[0], res.Payments[1]

	paid, err := svc.RecordPayment(ctx, first.ID, finance.RecordPayment{MetodoPago: "EFECTIVO", FechaPago: "2025-02-09", Referencia: "REC-001"})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, "2025-02-09", paid.PaidDate.Format(core.DateLayout))
	require.NotNil(t, paid.Method)
	assert.Equal(t, finance.MethodCash, *paid.Method)
	assert.Equal(t, "REC-001", paid.Reference)

	state, err := svc.GetState(ctx, res.Student.ID, res.State.SchoolPeriodID)
	require.NoError(t, err)
	assert.True(t, dec("2160").Equal(state.TotalPagado))
	assert.True(t, dec("8640").Equal(state.Saldo))
	require.NotNil(t, state.FechaUltimoPago)
	assert.Equal(t, "2025-02-09", state.FechaUltimoPago.Format(core.DateLayout))

	_, err = svc.RecordPayment(ctx, second.ID, finance.RecordPayment{MetodoPago: "TRANSFERENCIA", FechaPago: "2025-01-30"})
	require.NoError(t, err)
	state, err = svc.GetState(ctx, res.Student.ID, res.State.SchoolPeriodID)
	require.NoError(t, err)
	assert.True(t, dec("4320").Equal(state.TotalPagado))
	assert.True(t, state.Saldo.Equal(state.TotalConDescuento.Sub(state.TotalPagado)))
	// an older payment does not move the last payment date back
	assert.Equal(t, "2025-02-09", state.FechaUltimoPago.Format(core.DateLayout))

	// paid is terminal
	_, err = svc.RecordPayment(ctx, first.ID, finance.RecordPayment{MetodoPago: "EFECTIVO"})
	assert.Equal(t, "estatus", fieldOf(t, err))
	_, err = svc.CancelPayment(ctx, first.ID)
	assert.Equal(t, "estatus", fieldOf(t, err))
	_, err = svc.UpdatePayment(ctx, first.ID, finance.UpdatePayment{FechaVencimiento: "2025-09-01"})
	assert.Equal(t, "estatus", fieldOf(t, err))

	_, err = svc.RecordPayment(ctx, 999, finance.RecordPayment{MetodoPago: "EFECTIVO"})
	assert.True(t, core.IsNotFound(err))
}

func TestRecordPayment_Concurrent(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.FinanceSvc.RecordPayment(ctx, res.Payments[0].ID, finance.RecordPayment{MetodoPago: "EFECTIVO", FechaPago: "2025-02-09"})
		}(i)
	}
	wg.Wait()

	var paid int
	for _, err := range errs {
		if err == nil {
			paid++
			continue
		}
		assert.Equal(t, "estatus", fieldOf(t, err))
	}
	assert.Equal(t, 1, paid)

	state, err := env.FinanceSvc.GetState(ctx, res.Student.ID, res.State.SchoolPeriodID)
	require.NoError(t, err)
	assert.True(t, dec("2160").Equal(state.TotalPagado), "got %s", state.TotalPagado)
	assert.True(t, dec("8640").Equal(state.Saldo), "got %s", state.Saldo)
}

func TestCreateFinancialConfig(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()
	svc := env.FinanceSvc

	cfg := finance.FinancialConfig{
		TotalSemestre:     dec("10000"),
		PorcentajeBeca:    0,
		NumeroPagos:       3,
		FechasVencimiento: []string{"2025-08-10", "2025-09-10", "2025-10-10"},
		PeriodoEscolarID:  res.State.SchoolPeriodID,
	}

	t.Run("duplicate period", func(t *testing.T) {
		_, err := svc.CreateFinancialConfig(ctx, res.Student.ID, cfg, adminID)
		require.Error(t, err)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.CreateFinancialConfig(ctx, 999, cfg, adminID)
		require.Error(t, err)
		nf, ok := errors.Cause(err).(*core.NotFoundError)
		require.True(t, ok)
		assert.Equal(t, "estudianteId", nf.Field)
	})

	t.Run("another period", func(t *testing.T) {
		period := env.CreatePeriod(t, "2025-2", "2025-08-04", "2025-12-19")
		cfg := cfg
		cfg.PeriodoEscolarID = period.ID

		cr, err := svc.CreateFinancialConfig(ctx, res.Student.ID, cfg, adminID)
		require.NoError(t, err)
		require.Len(t, cr.Payments, 3)
		assert.True(t, dec("3333.33").Equal(cr.State.MontoPorPago))
		assert.True(t, dec("3333.33").Equal(cr.Payments[0].FinalAmount))
		assert.True(t, dec("3333.34").Equal(cr.Payments[2].FinalAmount))

		states, err := svc.QueryStates(ctx, res.Student.ID)
		require.NoError(t, err)
		assert.Len(t, states, 2)
	})
}

func TestMarkOverdue(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()
	svc := env.FinanceSvc

	n, err := svc.MarkOverdue(ctx, time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// idempotent
	n, err = svc.MarkOverdue(ctx, time.Date(2025, 3, 15, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	overdue, err := svc.QueryPayments(ctx, &finance.PaymentFilter{Statuses: []string{string(finance.StatusOverdue)}}, nil)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, res.Payments[0].ID, overdue[0].ID)
	assert.Equal(t, res.Payments[1].ID, overdue[1].ID)

	// a payment due on the sweep day is not late yet
	n, err = svc.MarkOverdue(ctx, time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// overdue payments can still be paid
	paid, err := svc.RecordPayment(ctx, overdue[0].ID, finance.RecordPayment{MetodoPago: "TARJETA", FechaPago: "2025-03-16"})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, paid.Status)

	// moving an overdue payment into the future makes it pending again
	moved, err := svc.UpdatePayment(ctx, overdue[1].ID, finance.UpdatePayment{FechaVencimiento: "2099-01-10"})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPending, moved.Status)
}

func TestUpdatePayment(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()
	svc := env.FinanceSvc

	ref := "LIQ-42"
	amount := dec("2500")
	_, err := svc.UpdatePayment(ctx, res.Payments[0].ID, finance.UpdatePayment{MontoFinal: &amount})
	assert.Equal(t, "montoFinal", fieldOf(t, err))

	p, err := svc.UpdatePayment(ctx, res.Payments[0].ID, finance.UpdatePayment{Referencia: &ref})
	require.NoError(t, err)
	assert.Equal(t, ref, p.Reference)
	assert.True(t, res.Payments[0].FinalAmount.Equal(p.FinalAmount))

	charge, err := svc.CreateCharge(ctx, finance.NewCharge{
		EstudianteID:     res.Student.ID,
		ConceptoID:       finance.ConceptLateFee,
		Monto:            dec("150"),
		FechaVencimiento: "2025-03-20",
	}, adminID)
	require.NoError(t, err)
	assert.Nil(t, charge.FinancialStateID)
	assert.Equal(t, finance.StatusPending, charge.Status)

	charge, err = svc.UpdatePayment(ctx, charge.ID, finance.UpdatePayment{MontoFinal: &amount})
	require.NoError(t, err)
	assert.True(t, amount.Equal(charge.FinalAmount))

	bad := dec("10.005")
	_, err = svc.UpdatePayment(ctx, charge.ID, finance.UpdatePayment{MontoFinal: &bad})
	assert.Equal(t, "montoFinal", fieldOf(t, err))

	// paying a charge leaves the tuition balance alone
	_, err = svc.RecordPayment(ctx, charge.ID, finance.RecordPayment{MetodoPago: "EFECTIVO", FechaPago: "2025-03-01"})
	require.NoError(t, err)
	state, err := svc.GetState(ctx, res.Student.ID, res.State.SchoolPeriodID)
	require.NoError(t, err)
	assert.True(t, state.TotalPagado.IsZero())
}

func TestCreateCharge_References(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		charge    finance.NewCharge
		wantField string
	}{
		{"unknown student", finance.NewCharge{EstudianteID: 999, ConceptoID: finance.ConceptLateFee, Monto: dec("1"), FechaVencimiento: "2025-03-01"}, "estudianteId"},
		{"unknown concept", finance.NewCharge{EstudianteID: res.Student.ID, ConceptoID: 99, Monto: dec("1"), FechaVencimiento: "2025-03-01"}, "conceptoId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.FinanceSvc.CreateCharge(ctx, tt.charge, adminID)
			nf, ok := errors.Cause(err).(*core.NotFoundError)
			require.True(t, ok)
			assert.Equal(t, tt.wantField, nf.Field)
		})
	}
}

func TestCancelPayment(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()

	p, err := env.FinanceSvc.CancelPayment(ctx, res.Payments[4].ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusCancelled, p.Status)

	_, err = env.FinanceSvc.RecordPayment(ctx, p.ID, finance.RecordPayment{MetodoPago: "EFECTIVO"})
	assert.Equal(t, "estatus", fieldOf(t, err))

	n, err := env.FinanceSvc.MarkOverdue(ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, n, "cancelled payments are never marked overdue")
}

func TestScholarships(t *testing.T) {
	env, res := setup(t)
	ctx := context.Background()
	svc := env.FinanceSvc

	propose := func() finance.Scholarship {
		sch, err := svc.ProposeScholarship(ctx, finance.NewScholarship{
			EstudianteID:   res.Student.ID,
			Tipo:           "ACADEMICA",
			Porcentaje:     15,
			VigenciaInicio: "2025-01-13",
			VigenciaFin:    "2025-06-27",
			Justificacion:  "Promedio de 9.6",
		}, adminID)
		require.NoError(t, err)
		assert.Equal(t, finance.ScholarshipProposed, sch.Status)
		return sch
	}

	first := propose()
	_, err := svc.ActivateScholarship(ctx, first.ID)
	assert.Equal(t, "estatus", fieldOf(t, err), "a proposal must be approved first")

	first, err = svc.ApproveScholarship(ctx, first.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, finance.ScholarshipApproved, first.Status)
	require.NotNil(t, first.ApprovedBy)
	assert.Equal(t, 7, *first.ApprovedBy)

	first, err = svc.ActivateScholarship(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ScholarshipActive, first.Status)

	second := propose()
	_, err = svc.ApproveScholarship(ctx, second.ID, 7)
	require.NoError(t, err)
	_, err = svc.ActivateScholarship(ctx, second.ID)
	assert.True(t, core.IsConflict(err), "only one active scholarship per student")

	_, err = svc.RejectScholarship(ctx, first.ID)
	assert.Equal(t, "estatus", fieldOf(t, err))

	first, err = svc.ExpireScholarship(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ScholarshipExpired, first.Status)

	second, err = svc.ActivateScholarship(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ScholarshipActive, second.Status)

	active, err := svc.QueryScholarships(ctx, &finance.ScholarshipFilter{StudentID: res.Student.ID, Statuses: []string{"ACTIVA"}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	_, err = svc.ProposeScholarship(ctx, finance.NewScholarship{
		EstudianteID: res.Student.ID, Tipo: "DEPORTIVA", Porcentaje: 10,
		VigenciaInicio: "2025-06-27", VigenciaFin: "2025-01-13", Justificacion: "Selección estatal",
	}, adminID)
	assert.Equal(t, "vigenciaFin", fieldOf(t, err))
}

func TestNewScholarship_Validate(t *testing.T) {
	validate := testutil.NewValidate(core.NewTranslator())
	valid := finance.NewScholarship{
		EstudianteID: 1, Tipo: "cultural", Porcentaje: 20,
		VigenciaInicio: "2025-01-13", VigenciaFin: "2025-06-27", Justificacion: " Danza folclórica ",
	}

	ns := valid
	require.NoError(t, ns.Validate(validate))
	assert.Equal(t, "CULTURAL", ns.Tipo)
	assert.Equal(t, "Danza folclórica", ns.Justificacion)

	for _, pct := range []int{0, 3, 12, 35} {
		ns := valid
		ns.Porcentaje = pct
		assert.Errorf(t, ns.Validate(validate), "porcentaje %d", pct)
	}
}
