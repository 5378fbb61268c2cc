package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/uzielB/backend-sistemagem-sub000/apps/api/echo"
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
	schedulersvc "github.com/uzielB/backend-sistemagem-sub000/services/scheduler"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
	sqlxrepos "github.com/uzielB/backend-sistemagem-sub000/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	AcademicSvc   academic.Service
	StudentSvc    student.Service
	FinanceSvc    finance.Service
	EnrollmentSvc enrollment.Service
	DashboardSvc  dashboard.Service
	ReportSvc     report.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newCache falls back to process memory when Redis cannot be reached.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	cache, err := cachesvc.NewRedisCache(context.Background(), conf)
	if err != nil {
		logger.Warn(fmt.Sprintf("redis unavailable, caching in memory: %v", err), err)
		return cachesvc.NewMemoryCache()
	}
	return cache
}

// newFileStore falls back to process memory when the object storage cannot be reached.
func newFileStore(conf *core.Config, logger core.Logger) core.FileStore {
	store, err := filesvc.NewMinioStore(context.Background(), conf)
	if err != nil {
		logger.Warn(fmt.Sprintf("object storage unavailable, keeping reports in memory: %v", err), err)
		return filesvc.NewMemoryStore(conf.Storage.Bucket)
	}
	return store
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := core.NewValidate(translator)
	user.RegisterValidators(validate, translator)
	finance.RegisterValidators(validate, translator)
	return validate
}

func newInvalidator(svc dashboard.Service) finance.Invalidator { return svc }

func newScheduler(conf *core.Config, svc finance.Service, logger core.Logger) *schedulersvc.Scheduler {
	sched, err := schedulersvc.New(conf, svc, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up scheduler: %v", err), err)
	}
	return sched
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		AcademicSvc:   p.AcademicSvc,
		StudentSvc:    p.StudentSvc,
		FinanceSvc:    p.FinanceSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		DashboardSvc:  p.DashboardSvc,
		ReportSvc:     p.ReportSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(newCache))
	must(c.Provide(newFileStore))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewAcademicRepository))
	must(c.Provide(sqlxrepos.NewStudentRepository))
	must(c.Provide(sqlxrepos.NewFinanceRepository))
	must(c.Provide(sqlxrepos.NewDashboardRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newInvalidator))
	must(c.Provide(finance.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(newScheduler))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
