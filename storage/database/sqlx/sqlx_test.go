package sqlxrepos_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/core/dashboard"
	"github.com/uzielB/backend-sistemagem-sub000/core/enrollment"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
	emailsvc "github.com/uzielB/backend-sistemagem-sub000/services/email"
	logsvc "github.com/uzielB/backend-sistemagem-sub000/services/logger"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
	sqlxrepos "github.com/uzielB/backend-sistemagem-sub000/storage/database/sqlx"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

// prepareDB migrates the database at TEST_DATABASE_URL and empties it. Tests skip without one.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Ping(context.Background(), db))
	require.NoError(t, database.Migrate(db))
	_, err = db.Exec(`TRUNCATE scholarships, payments, financial_states, students, groups, school_periods, programs, users
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

type services struct {
	users      user.Repository
	academic   academic.Service
	students   student.Service
	finance    finance.Service
	dashboard  dashboard.Service
	enrollment enrollment.Service
}

func newServices(db *sqlx.DB) services {
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()
	tx := database.NewTransactor(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)

	s := services{users: sqlxrepos.NewUserRepository(db)}
	s.academic = academic.NewService(sqlxrepos.NewAcademicRepository(db))
	s.students = student.NewService(studentRepo, s.academic)
	s.dashboard = dashboard.NewService(sqlxrepos.NewDashboardRepository(db), studentRepo, nil, conf, logger)
	s.finance = finance.NewService(sqlxrepos.NewFinanceRepository(db), tx, s.students, s.academic, s.dashboard)
	s.enrollment = enrollment.NewService(tx, s.students, s.finance, s.academic, s.dashboard,
		emailsvc.NewConsoleServiceMock(conf, logger), logger)
	return s
}

func TestUserRepository(t *testing.T) {
	db := prepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Admin", "LOMA850315MJCPRR02", "admin@test.mx", "s3cr3t", []string{user.RoleAdmin}, true)

	got, err := repo.GetUserByCURPOrEmail(ctx, "admin@test.mx")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, []string{user.RoleAdmin}, got.Roles)
	assert.NoError(t, got.CheckPassword("s3cr3t"))

	_, err = repo.CreateUser(ctx, user.User{CURP: usr.CURP, Name: "Dup"})
	assert.Equal(t, user.ErrCURPExists, err)
	assert.Equal(t, user.ErrEmailExists, repo.CheckCURPUniqueness(ctx, "PEGJ900101HDFRRN09", "admin@test.mx"))
	assert.NoError(t, repo.CheckCURPUniqueness(ctx, usr.CURP, usr.Email, usr))

	users, err := repo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleAdmin}}, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, repo.DeleteUsersByID(ctx, usr.ID))
	_, err = repo.GetUserByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestEnrollment(t *testing.T) {
	db := prepareDB(t)
	s := newServices(db)
	ctx := context.Background()

	admin := testutil.CreateUser(t, s.users, "Admin", "LOMA850315MJCPRR02", "admin@test.mx", "", []string{user.RoleAdmin}, true)
	prog, err := s.academic.CreateProgram(ctx, academic.NewProgram{Code: "LAE", Name: "Administración de Empresas"})
	require.NoError(t, err)
	period, err := s.academic.CreatePeriod(ctx, academic.NewSchoolPeriod{Name: "2025-1", StartDate: "2025-01-15", EndDate: "2025-06-30"})
	require.NoError(t, err)

	res, err := s.enrollment.Enroll(ctx, testutil.NewEnrollment("PEGJ900101HDFRRN09", prog.ID, period.ID), admin.ID)
	require.NoError(t, err)
	assert.Len(t, res.Payments, 5)
	assert.True(t, decimal.NewFromInt(10800).Equal(res.State.Saldo))

	// a duplicate leaves nothing behind
	_, err = s.enrollment.Enroll(ctx, testutil.NewEnrollment("PEGJ900101HDFRRN09", prog.ID, period.ID), admin.ID)
	require.Error(t, err)
	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM students"))
	assert.Equal(t, 1, count)
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM payments"))
	assert.Equal(t, 5, count)

	paid, err := s.finance.RecordPayment(ctx, res.Payments[0].ID, finance.RecordPayment{MetodoPago: string(finance.MethodCash), FechaPago: "2025-02-01"})
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, paid.Status)

	state, err := s.finance.GetState(ctx, res.Student.ID, period.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2160).Equal(state.TotalPagado))
	assert.True(t, decimal.NewFromInt(8640).Equal(state.Saldo))

	sum, err := s.dashboard.Summary(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ActiveStudents)
	assert.Equal(t, 1, sum.PaidPayments)
	assert.True(t, decimal.NewFromInt(10800).Equal(sum.TotalBilled))
	assert.True(t, decimal.NewFromInt(2160).Equal(sum.TotalCollected))
}

func TestEnrollment_ConcurrentMatriculas(t *testing.T) {
	db := prepareDB(t)
	s := newServices(db)
	ctx := context.Background()

	prog, err := s.academic.CreateProgram(ctx, academic.NewProgram{Code: "LAE", Name: "Administración de Empresas"})
	require.NoError(t, err)
	period, err := s.academic.CreatePeriod(ctx, academic.NewSchoolPeriod{Name: "2025-1", StartDate: "2025-01-15", EndDate: "2025-06-30"})
	require.NoError(t, err)

	curps := []string{"PEGJ900101HDFRRN09", "HEGL950712MDFRNS05", "MAHR920202HOCRRN04", "RAMS800505MDFMRN01"}
	matriculas := make([]string, len(curps))
	var wg sync.WaitGroup
	for i, curp := range curps {
		wg.Add(1)
		go func(i int, curp string) {
			defer wg.Done()
			res, err := s.enrollment.Enroll(ctx, testutil.NewEnrollment(curp, prog.ID, period.ID), 0)
			if assert.NoError(t, err) {
				matriculas[i] = res.Student.Matricula
			}
		}(i, curp)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, m := range matriculas {
		assert.NotEmpty(t, m)
		assert.False(t, seen[m], "duplicate matrícula %s", m)
		seen[m] = true
	}
}

// enroll signs up one student with the default tuition plan on a fresh program and period.
func enroll(t *testing.T, s services) (enrollment.Result, academic.SchoolPeriod) {
	t.Helper()
	ctx := context.Background()

	prog, err := s.academic.CreateProgram(ctx, academic.NewProgram{Code: "LAE", Name: "Administración de Empresas"})
	require.NoError(t, err)
	period, err := s.academic.CreatePeriod(ctx, academic.NewSchoolPeriod{Name: "2025-1", StartDate: "2025-01-15", EndDate: "2025-06-30"})
	require.NoError(t, err)
	res, err := s.enrollment.Enroll(ctx, testutil.NewEnrollment("PEGJ900101HDFRRN09", prog.ID, period.ID), 0)
	require.NoError(t, err)
	return res, period
}

func statusField(t *testing.T, err error) string {
	t.Helper()
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a validation error, got %v", err)
	require.NotEmpty(t, vErr.Fields)
	return vErr.Fields[0].Field
}

func TestRecordPayment_Concurrent(t *testing.T) {
	db := prepareDB(t)
	s := newServices(db)
	ctx := context.Background()
	res, period := enroll(t, s)

	pay := func(ids ...int) []error {
		errs := make([]error, len(ids))
		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(i, id int) {
				defer wg.Done()
				_, errs[i] = s.finance.RecordPayment(ctx, id, finance.RecordPayment{MetodoPago: string(finance.MethodCash), FechaPago: "2025-02-01"})
			}(i, id)
		}
		wg.Wait()
		return errs
	}

	t.Run("same installment is paid once", func(t *testing.T) {
		var failed []error
		for _, err := range pay(res.Payments[0].ID, res.Payments[0].ID, res.Payments[0].ID) {
			if err != nil {
				failed = append(failed, err)
			}
		}
		require.Len(t, failed, 2)
		for _, err := range failed {
			assert.Equal(t, "estatus", statusField(t, err))
		}

		state, err := s.finance.GetState(ctx, res.Student.ID, period.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2160).Equal(state.TotalPagado), "got %s", state.TotalPagado)
		assert.True(t, decimal.NewFromInt(8640).Equal(state.Saldo), "got %s", state.Saldo)
	})

	t.Run("different installments add up", func(t *testing.T) {
		for _, err := range pay(res.Payments[1].ID, res.Payments[2].ID) {
			require.NoError(t, err)
		}

		state, err := s.finance.GetState(ctx, res.Student.ID, period.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(6480).Equal(state.TotalPagado), "got %s", state.TotalPagado)
		assert.True(t, decimal.NewFromInt(4320).Equal(state.Saldo), "got %s", state.Saldo)
	})
}

func TestFinanceRepository_Payments(t *testing.T) {
	db := prepareDB(t)
	s := newServices(db)
	ctx := context.Background()
	res, period := enroll(t, s)

	query := func(filter finance.PaymentFilter, ordering ...core.DBOrdering) []finance.Payment {
		t.Helper()
		payments, err := s.finance.QueryPayments(ctx, &filter, ordering)
		require.NoError(t, err)
		return payments
	}

	// installments due 2025-02-10 and 2025-03-10 are late on April 1st
	n, err := s.finance.MarkOverdue(ctx, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.finance.MarkOverdue(ctx, time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	t.Run("filters", func(t *testing.T) {
		other, err := s.academic.CreatePeriod(ctx, academic.NewSchoolPeriod{Name: "2025-2", StartDate: "2025-08-01", EndDate: "2025-12-15"})
		require.NoError(t, err)

		assert.Len(t, query(finance.PaymentFilter{Statuses: []string{string(finance.StatusOverdue)}}), 2)
		assert.Len(t, query(finance.PaymentFilter{Statuses: []string{string(finance.StatusPending), string(finance.StatusOverdue)}}), 5)
		assert.Empty(t, query(finance.PaymentFilter{Statuses: []string{string(finance.StatusPaid)}}))
		assert.Len(t, query(finance.PaymentFilter{SchoolPeriodID: period.ID}), 5)
		assert.Empty(t, query(finance.PaymentFilter{SchoolPeriodID: other.ID}))
		assert.Len(t, query(finance.PaymentFilter{StudentID: res.Student.ID, FinancialStateID: res.State.ID}), 5)

		due := query(finance.PaymentFilter{
			DueFrom: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			DueTo:   time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		}, core.DBOrdering{Field: "due_date", Ascending: false})
		require.Len(t, due, 2)
		assert.Equal(t, res.Payments[2].ID, due[0].ID)
		assert.Equal(t, res.Payments[1].ID, due[1].ID)
	})

	t.Run("update moves an overdue payment back to pending", func(t *testing.T) {
		ref := "REF-0042"
		p, err := s.finance.UpdatePayment(ctx, res.Payments[0].ID, finance.UpdatePayment{FechaVencimiento: "2030-01-10", Referencia: &ref})
		require.NoError(t, err)
		assert.Equal(t, finance.StatusPending, p.Status)

		got, err := s.finance.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.StatusPending, got.Status)
		assert.Equal(t, "REF-0042", got.Reference)
		assert.True(t, time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC).Equal(got.DueDate), "got %s", got.DueDate)
		assert.True(t, res.Payments[0].FinalAmount.Equal(got.FinalAmount))
	})

	t.Run("cancel", func(t *testing.T) {
		p, err := s.finance.CancelPayment(ctx, res.Payments[4].ID)
		require.NoError(t, err)
		assert.Equal(t, finance.StatusCancelled, p.Status)

		got, err := s.finance.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.StatusCancelled, got.Status)

		_, err = s.finance.CancelPayment(ctx, p.ID)
		assert.Equal(t, "estatus", statusField(t, err))
	})

	t.Run("charge", func(t *testing.T) {
		amount := decimal.RequireFromString("150.50")
		charge, err := s.finance.CreateCharge(ctx, finance.NewCharge{
			EstudianteID:     res.Student.ID,
			ConceptoID:       finance.ConceptLateFee,
			Monto:            amount,
			FechaVencimiento: "2025-04-15",
			Referencia:       "Recargo marzo",
		}, 0)
		require.NoError(t, err)
		assert.Nil(t, charge.FinancialStateID)
		assert.Nil(t, charge.InstallmentNumber)
		assert.Equal(t, finance.StatusPending, charge.Status)

		got, err := s.finance.GetPayment(ctx, charge.ID)
		require.NoError(t, err)
		assert.True(t, amount.Equal(got.FinalAmount), "got %s", got.FinalAmount)
		assert.Nil(t, got.FinancialStateID)

		assert.Len(t, query(finance.PaymentFilter{StudentID: res.Student.ID, ConceptID: finance.ConceptLateFee}), 1)
		assert.Len(t, query(finance.PaymentFilter{SchoolPeriodID: period.ID}), 5, "charges belong to no period")
	})
}

func TestFinanceRepository_UniqueConstraints(t *testing.T) {
	db := prepareDB(t)
	s := newServices(db)
	repo := sqlxrepos.NewFinanceRepository(db)
	ctx := context.Background()
	res, period := enroll(t, s)
	admin := testutil.CreateUser(t, s.users, "Admin", "LOMA850315MJCPRR02", "admin@test.mx", "", []string{user.RoleAdmin}, true)

	t.Run("financial state per student and period", func(t *testing.T) {
		_, err := repo.CreateFinancialState(ctx, res.State)
		assert.Equal(t, finance.ErrStateExists, errors.Cause(err))

		cfg := *testutil.NewEnrollment("PEGJ900101HDFRRN09", res.Student.ProgramID, period.ID).ConfiguracionFinanciera
		_, err = s.finance.CreateFinancialConfig(ctx, res.Student.ID, cfg, 0)
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("one active scholarship", func(t *testing.T) {
		approved := func() finance.Scholarship {
			t.Helper()
			sch, err := s.finance.ProposeScholarship(ctx, finance.NewScholarship{
				EstudianteID:   res.Student.ID,
				Tipo:           string(finance.ScholarshipAcademic),
				Porcentaje:     15,
				VigenciaInicio: "2025-01-13",
				VigenciaFin:    "2025-06-27",
				Justificacion:  "Promedio de 9.6",
			}, admin.ID)
			require.NoError(t, err)
			sch, err = s.finance.ApproveScholarship(ctx, sch.ID, admin.ID)
			require.NoError(t, err)
			return sch
		}
		first, second := approved(), approved()

		first, err := s.finance.ActivateScholarship(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.ScholarshipActive, first.Status)

		_, err = s.finance.ActivateScholarship(ctx, second.ID)
		assert.True(t, core.IsConflict(err), "got %v", err)

		// the partial unique index backs the service check
		second.Status = finance.ScholarshipActive
		_, err = repo.UpdateScholarship(ctx, second)
		assert.True(t, core.IsConflict(err), "got %v", err)

		active, err := s.finance.QueryScholarships(ctx, &finance.ScholarshipFilter{
			StudentID: res.Student.ID,
			Statuses:  []string{string(finance.ScholarshipActive)},
		})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, first.ID, active[0].ID)

		_, err = s.finance.ExpireScholarship(ctx, first.ID)
		require.NoError(t, err)
		second, err = s.finance.ActivateScholarship(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.ScholarshipActive, second.Status)
	})
}
