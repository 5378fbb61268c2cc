// Package testutil wires the services over the in-memory database for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/core/dashboard"
	"github.com/uzielB/backend-sistemagem-sub000/core/enrollment"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/report"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
	cachesvc "github.com/uzielB/backend-sistemagem-sub000/services/cache"
	emailsvc "github.com/uzielB/backend-sistemagem-sub000/services/email"
	filesvc "github.com/uzielB/backend-sistemagem-sub000/services/filestore"
	logsvc "github.com/uzielB/backend-sistemagem-sub000/services/logger"
	inmemdb "github.com/uzielB/backend-sistemagem-sub000/storage/database/inmem"
)

// Env holds every service of the app over one in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Translator ut.Translator
	Validate   *validator.Validate

	DB    *inmemdb.DB
	Tx    core.Transactor
	Mail  *emailsvc.ConsoleServiceMock
	Cache *cachesvc.MemoryCache
	Store *filesvc.MemoryStore

	UserRepo    user.Repository
	StudentRepo student.Repository
	FinanceRepo finance.Repository

	UserSvc       user.Service
	AcademicSvc   academic.Service
	StudentSvc    student.Service
	FinanceSvc    finance.Service
	DashboardSvc  dashboard.Service
	EnrollmentSvc enrollment.Service
	ReportSvc     report.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	env := &Env{
		Conf:   core.NewTestConfig(),
		Logger: logsvc.NewDiscardLogger(),
		DB:     inmemdb.Open(),
		Cache:  cachesvc.NewMemoryCache(),
	}
	core.ParseEmailTemplates(env.Logger)
	env.Translator = core.NewTranslator()
	env.Validate = NewValidate(env.Translator)
	env.Tx = inmemdb.NewTransactor(env.DB)
	env.Mail = emailsvc.NewConsoleServiceMock(env.Conf, env.Logger)
	env.Store = filesvc.NewMemoryStore(env.Conf.Storage.Bucket)

	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.StudentRepo = inmemdb.NewStudentRepository(env.DB)
	env.FinanceRepo = inmemdb.NewFinanceRepository(env.DB)

	env.UserSvc = user.NewService(env.UserRepo, env.Mail, env.Conf)
	env.AcademicSvc = academic.NewService(inmemdb.NewAcademicRepository(env.DB))
	env.StudentSvc = student.NewService(env.StudentRepo, env.AcademicSvc)
	env.DashboardSvc = dashboard.NewService(inmemdb.NewDashboardRepository(env.DB), env.StudentRepo, env.Cache, env.Conf, env.Logger)
	env.FinanceSvc = finance.NewService(env.FinanceRepo, env.Tx, env.StudentSvc, env.AcademicSvc, env.DashboardSvc)
	env.EnrollmentSvc = enrollment.NewService(env.Tx, env.StudentSvc, env.FinanceSvc, env.AcademicSvc, env.DashboardSvc, env.Mail, env.Logger)
	env.ReportSvc = report.NewService(env.FinanceSvc, env.StudentSvc, env.Store, env.Conf)
	return env
}

// NewValidate returns a validator with every app validation registered.
func NewValidate(translator ut.Translator) *validator.Validate {
	validate := core.NewValidate(translator)
	user.RegisterValidators(validate, translator)
	finance.RegisterValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, curp, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		CURP:      curp,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateProgram(t *testing.T, code, name string) academic.Program {
	t.Helper()
	prog, err := env.AcademicSvc.CreateProgram(context.Background(), academic.NewProgram{Code: code, Name: name})
	if err != nil {
		t.Fatalf("createProgram() failed: %v", err)
	}
	return prog
}

func (env *Env) CreatePeriod(t *testing.T, name, start, end string) academic.SchoolPeriod {
	t.Helper()
	period, err := env.AcademicSvc.CreatePeriod(context.Background(), academic.NewSchoolPeriod{Name: name, StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("createPeriod() failed: %v", err)
	}
	return period
}

func (env *Env) CreateGroup(t *testing.T, programID int, name string, term int) academic.Group {
	t.Helper()
	grp, err := env.AcademicSvc.CreateGroup(context.Background(), academic.NewGroup{ProgramID: programID, Name: name, Term: term})
	if err != nil {
		t.Fatalf("createGroup() failed: %v", err)
	}
	return grp
}

// NewEnrollment returns a valid enrollment of curp into programID with a 10% scholarship
// and a 12000 semester paid in 5 installments.
func NewEnrollment(curp string, programID, periodID int) enrollment.NewEnrollment {
	return enrollment.NewEnrollment{
		NewStudent: student.NewStudent{
			CURP:      curp,
			FirstName: "Juan",
			LastName:  "Pérez",
			Email:     "juan.perez@example.com",
			ProgramID: programID,
			Modality:  string(student.ModalityOnCampus),
		},
		ConfiguracionFinanciera: &finance.FinancialConfig{
			TotalSemestre:     decimal.NewFromInt(12000),
			PorcentajeBeca:    10,
			NumeroPagos:       5,
			FechasVencimiento: []string{"2025-02-10", "2025-03-10", "2025-04-10", "2025-05-10", "2025-06-10"},
			PeriodoEscolarID:  periodID,
		},
	}
}

func (env *Env) Enroll(t *testing.T, ne enrollment.NewEnrollment, adminID int) enrollment.Result {
	t.Helper()
	ne.NewStudent.Clean()
	res, err := env.EnrollmentSvc.Enroll(context.Background(), ne, adminID)
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return res
}
