package main

import (
	"context"
	"log"
	"os"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/core/dashboard"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
	cachesvc "github.com/uzielB/backend-sistemagem-sub000/services/cache"
	emailsvc "github.com/uzielB/backend-sistemagem-sub000/services/email"
	logsvc "github.com/uzielB/backend-sistemagem-sub000/services/logger"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
	sqlxrepos "github.com/uzielB/backend-sistemagem-sub000/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewStdLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(context.Background(), db))

	// set up services
	academicSvc := academic.NewService(sqlxrepos.NewAcademicRepository(db))
	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db), academicSvc)

	// markoverdue drops the cached dashboards when Redis is reachable
	var invalidator finance.Invalidator
	if cache, err := cachesvc.NewRedisCache(context.Background(), conf); err == nil {
		invalidator = dashboard.NewService(sqlxrepos.NewDashboardRepository(db), sqlxrepos.NewStudentRepository(db), cache, conf, logger)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger), conf),
		financeSvc: finance.NewService(
			sqlxrepos.NewFinanceRepository(db),
			database.NewTransactor(db),
			studentSvc,
			academicSvc,
			invalidator,
		),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal("setting up", err)
	}
}
