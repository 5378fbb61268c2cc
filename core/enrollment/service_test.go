package enrollment_test

import (
	"context"
	"fmt"
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
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

const adminID = 1

func curpN(n int) string {
	return fmt.Sprintf("GODE5612%02dHDFRRN09", n)
}

type fixture struct {
	env      *testutil.Env
	program  int
	period   int
	otherGrp int
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	prog := env.CreateProgram(t, "LDER", "Licenciatura en Derecho")
	other := env.CreateProgram(t, "LPSI", "Licenciatura en Psicología")
	period := env.CreatePeriod(t, "2025-1", "2025-01-13", "2025-06-27")
	grp := env.CreateGroup(t, other.ID, "1A", 1)
	return fixture{env: env, program: prog.ID, period: period.ID, otherGrp: grp.ID}
}

func causeAs[T error](t *testing.T, err error) T {
	t.Helper()
	target, ok := errors.Cause(err).(T)
	require.Truef(t, ok, "unexpected error type %T: %v", errors.Cause(err), err)
	return target
}

func TestEnroll(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	res := fx.env.Enroll(t, testutil.NewEnrollment(curpN(1), fx.program, fx.period), adminID)

	assert.Equal(t, student.FormatMatricula(time.Now().Year(), fx.program, 1), res.Student.Matricula)
	assert.Equal(t, student.StatusActive, res.Student.Status)
	assert.True(t, res.Student.IsActive)
	assert.Equal(t, adminID, res.Student.CreatedBy)

	state := res.State
	assert.Equal(t, res.Student.ID, state.StudentID)
	assert.True(t, decimal.NewFromInt(12000).Equal(state.TotalSemestre))
	assert.True(t, decimal.NewFromInt(1200).Equal(state.TotalDescuento))
	assert.True(t, decimal.NewFromInt(10800).Equal(state.TotalConDescuento))
	assert.True(t, decimal.NewFromInt(2160).Equal(state.MontoPorPago))
	assert.True(t, state.Saldo.Equal(state.TotalConDescuento))
	assert.True(t, state.TotalPagado.IsZero())

	require.Len(t, res.Payments, 5)
	assert.Equal(t, 5, res.TotalPayments)
	sum := decimal.Zero
	for i, p := range res.Payments {
		require.NotNil(t, p.InstallmentNumber)
		assert.Equal(t, i+1, *p.InstallmentNumber)
		assert.Equal(t, finance.StatusPending, p.Status)
		assert.Equal(t, finance.ConceptTuition, p.ConceptID)
		assert.Equal(t, state.ID, *p.FinancialStateID)
		sum = sum.Add(p.FinalAmount)
	}
	assert.True(t, sum.Equal(state.TotalConDescuento))

	// persisted
	stored, err := fx.env.FinanceSvc.GetState(ctx, res.Student.ID, fx.period)
	require.NoError(t, err)
	assert.Equal(t, state.ID, stored.ID)

	sent := fx.env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "juan.perez@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, res.Student.Matricula)
	assert.Contains(t, sent[0].TextContent, "10800.00")
}

func TestEnroll_SequentialMatriculas(t *testing.T) {
	fx := setup(t)
	year := time.Now().Year()

	for i := 1; i <= 3; i++ {
		res := fx.env.Enroll(t, testutil.NewEnrollment(curpN(i), fx.program, fx.period), adminID)
		assert.Equal(t, student.FormatMatricula(year, fx.program, i), res.Student.Matricula)
	}
}

func TestEnroll_DuplicateCURP(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.env.Enroll(t, testutil.NewEnrollment(curpN(1), fx.program, fx.period), adminID)

	_, err := fx.env.EnrollmentSvc.Enroll(ctx, testutil.NewEnrollment(curpN(1), fx.program, fx.period), adminID)
	require.Error(t, err)
	verr := causeAs[*core.ValidationError](t, err)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "curp", verr.Fields[0].Field)

	students, err := fx.env.StudentSvc.Query(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, students, 1)
	states, err := fx.env.FinanceSvc.QueryStates(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestEnroll_References(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		modify    func(ne *enrollment.NewEnrollment)
		wantField string
		notFound  bool
	}{
		{
			name:      "unknown program",
			modify:    func(ne *enrollment.NewEnrollment) { ne.ProgramID = 999 },
			wantField: "programaId",
			notFound:  true,
		},
		{
			name:      "unknown school period",
			modify:    func(ne *enrollment.NewEnrollment) { ne.ConfiguracionFinanciera.PeriodoEscolarID = 999 },
			wantField: "periodoEscolarId",
			notFound:  true,
		},
		{
			name: "unknown group",
			modify: func(ne *enrollment.NewEnrollment) {
				id := 999
				ne.GroupID = &id
			},
			wantField: "grupoId",
			notFound:  true,
		},
		{
			name:      "group of another program",
			modify:    func(ne *enrollment.NewEnrollment) { ne.GroupID = &fx.otherGrp },
			wantField: "grupoId",
		},
		{
			name: "due dates mismatch",
			modify: func(ne *enrollment.NewEnrollment) {
				ne.ConfiguracionFinanciera.FechasVencimiento = ne.ConfiguracionFinanciera.FechasVencimiento[:2]
			},
			wantField: "fechasVencimiento",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := testutil.NewEnrollment(curpN(1), fx.program, fx.period)
			tt.modify(&ne)

			_, err := fx.env.EnrollmentSvc.Enroll(ctx, ne, adminID)
			require.Error(t, err)
			if tt.notFound {
				nf := causeAs[*core.NotFoundError](t, err)
				assert.Equal(t, tt.wantField, nf.Field)
			} else {
				verr := causeAs[*core.ValidationError](t, err)
				require.NotEmpty(t, verr.Fields)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			}

			students, err := fx.env.StudentSvc.Query(ctx, nil, nil)
			require.NoError(t, err)
			assert.Empty(t, students)
		})
	}
}

// failingFinance fails every financial configuration after the student was written.
type failingFinance struct {
	finance.Service
}

func (failingFinance) CreateFinancialConfig(context.Context, int, finance.FinancialConfig, int) (finance.ConfigResult, error) {
	return finance.ConfigResult{}, errors.New("connection reset by peer")
}

func TestEnroll_RollsBackOnFailure(t *testing.T) {
	fx := setup(t)
	env := fx.env
	ctx := context.Background()

	failing := enrollment.NewService(env.Tx, env.StudentSvc, failingFinance{env.FinanceSvc}, env.AcademicSvc, env.DashboardSvc, env.Mail, env.Logger)
	ne := testutil.NewEnrollment(curpN(1), fx.program, fx.period)
	_, err := failing.Enroll(ctx, ne, adminID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")

	students, err := env.StudentSvc.Query(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, students, "the student must not outlive a failed enrollment")
	assert.Empty(t, env.Mail.SentMessages())

	// retrying with the same CURP succeeds and reuses the matrícula
	res := env.Enroll(t, testutil.NewEnrollment(curpN(1), fx.program, fx.period), adminID)
	assert.Equal(t, student.FormatMatricula(time.Now().Year(), fx.program, 1), res.Student.Matricula)
}

// collidingStudents reports a matrícula collision on the first `collisions` creations.
type collidingStudents struct {
	student.Service

	mu         sync.Mutex
	collisions int
	calls      int
}

func (s *collidingStudents) Create(ctx context.Context, ns student.NewStudent, adminID int) (student.Student, error) {
	s.mu.Lock()
	s.calls++
	collide := s.calls <= s.collisions
	s.mu.Unlock()
	if collide {
		return student.Student{}, student.ErrMatriculaExists
	}
	return s.Service.Create(ctx, ns, adminID)
}

func TestEnroll_RetriesMatriculaCollisions(t *testing.T) {
	tests := []struct {
		name       string
		collisions int
		wantCalls  int
		wantErr    bool
	}{
		{"no collision", 0, 1, false},
		{"collides twice", 2, 3, false},
		{"gives up", 3, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t)
			env := fx.env
			students := &collidingStudents{Service: env.StudentSvc, collisions: tt.collisions}
			svc := enrollment.NewService(env.Tx, students, env.FinanceSvc, env.AcademicSvc, env.DashboardSvc, env.Mail, env.Logger)

			_, err := svc.Enroll(context.Background(), testutil.NewEnrollment(curpN(1), fx.program, fx.period), adminID)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, student.ErrMatriculaExists, errors.Cause(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, students.calls)
		})
	}
}

func TestEnroll_Concurrent(t *testing.T) {
	fx := setup(t)
	const n = 20

	var wg sync.WaitGroup
	results := make([]enrollment.Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ne := testutil.NewEnrollment(curpN(i+1), fx.program, fx.period)
			ne.NewStudent.Clean()
			results[i], errs[i] = fx.env.EnrollmentSvc.Enroll(context.Background(), ne, adminID)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		m := results[i].Student.Matricula
		assert.Falsef(t, seen[m], "matrícula %s issued twice", m)
		seen[m] = true
	}
	assert.Len(t, seen, n)
}

func TestNewEnrollment_Validate(t *testing.T) {
	validate := testutil.NewValidate(core.NewTranslator())

	tests := []struct {
		name    string
		modify  func(ne *enrollment.NewEnrollment)
		wantErr bool
	}{
		{name: "valid", modify: func(*enrollment.NewEnrollment) {}},
		{
			name:    "missing financial configuration",
			modify:  func(ne *enrollment.NewEnrollment) { ne.ConfiguracionFinanciera = nil },
			wantErr: true,
		},
		{
			name:    "invalid CURP",
			modify:  func(ne *enrollment.NewEnrollment) { ne.CURP = "NOT-A-CURP" },
			wantErr: true,
		},
		{
			name: "too many payments",
			modify: func(ne *enrollment.NewEnrollment) {
				ne.ConfiguracionFinanciera.NumeroPagos = 7
			},
			wantErr: true,
		},
		{
			name: "scholarship above the cap",
			modify: func(ne *enrollment.NewEnrollment) {
				ne.ConfiguracionFinanciera.PorcentajeBeca = 35
			},
			wantErr: true,
		},
		{
			name: "non positive total",
			modify: func(ne *enrollment.NewEnrollment) {
				ne.ConfiguracionFinanciera.TotalSemestre = decimal.Zero
			},
			wantErr: true,
		},
		{
			name: "due dates count differs",
			modify: func(ne *enrollment.NewEnrollment) {
				ne.ConfiguracionFinanciera.NumeroPagos = 4
			},
			wantErr: true,
		},
		{
			name: "malformed due date",
			modify: func(ne *enrollment.NewEnrollment) {
				ne.ConfiguracionFinanciera.FechasVencimiento[0] = "10/02/2025"
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := testutil.NewEnrollment(curpN(1), 1, 1)
			tt.modify(&ne)
			err := ne.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
