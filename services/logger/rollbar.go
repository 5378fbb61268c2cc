package logsvc

import (
	"log"
	"maps"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

type person struct {
	id, username, email string
}

// prepare turns logger args into rollbar args.
// expected fmt: msg | error, map[string]interface{}, user.User, student.Student
// Rollbar keeps a single extras map, so every map and student is merged into one.
func prepare(msg string, args []interface{}) ([]interface{}, *person) {
	var (
		prsn   *person
		extras map[string]interface{}
	)
	addExtras := func(m map[string]interface{}) {
		if extras == nil {
			extras = make(map[string]interface{}, len(m))
		}
		maps.Copy(extras, m)
	}

	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if prsn == nil { // only set one User
				prsn = &person{id: strconv.Itoa(v.ID), username: v.CURP, email: v.Email}
			}
		case student.Student:
			addExtras(map[string]interface{}{
				"estudiante_id": v.ID,
				"matricula":     v.Matricula,
				"programa_id":   v.ProgramID,
			})
		case map[string]interface{}:
			addExtras(v)
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs, prsn
}

func (l RollbarLogger) report(send func(...interface{}), msg string, args []interface{}) {
	newArgs, prsn := prepare(msg, args)
	if prsn != nil {
		rollbar.SetPerson(prsn.id, prsn.username, prsn.email)
	} else {
		rollbar.ClearPerson()
	}
	send(newArgs...)
	printArgs(l.std, msg, args)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.Debug, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.Info, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.Warning, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.Error, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.Critical, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
