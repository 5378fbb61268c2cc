package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		usrSvc:     env.UserSvc,
		financeSvc: env.FinanceSvc,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "beca", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.UserRepo, "User", "PEGJ900101HDFRRN09", "awe@test.mx", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "login but no password", args: []string{"resetpassword", "-curp", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-curp", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with CURP", args: []string{"resetpassword", "-curp", usr.CURP}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-curp", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		var pwd string
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)

			refreshed, err := env.UserSvc.GetByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "password not updated")
			assert.NoError(t, refreshed.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	mockPassword("")
	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser"}))
	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-curp", "PEGJ900101HDFRRN09", "-name", "Juan"}))

	mockPassword("Zk8#pq2!vLm")
	assert.Equal(t, errInvalidCURP, cli.run([]string{"admin", "adduser", "-curp", "nope", "-name", "Juan"}))

	// create
	require.NoError(t, cli.run([]string{"admin", "adduser", "-curp", "pegj900101hdfrrn09", "-name", "Juan Pérez", "-email", "Juan@Test.mx", "-admin"}))
	usr, err := env.UserSvc.GetByCURP(ctx, "PEGJ900101HDFRRN09")
	require.NoError(t, err)
	assert.Equal(t, "juan@test.mx", usr.Email)
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Zk8#pq2!vLm"))

	// update keeps the roles unless -admin is given
	mockPassword("Qw3$er5^tY")
	require.NoError(t, cli.run([]string{"admin", "adduser", "-curp", "PEGJ900101HDFRRN09", "-name", "Juan P."}))
	usr, err = env.UserSvc.GetByCURP(ctx, "PEGJ900101HDFRRN09")
	require.NoError(t, err)
	assert.Equal(t, "Juan P.", usr.Name)
	assert.True(t, usr.IsAdmin())
	assert.NoError(t, usr.CheckPassword("Qw3$er5^tY"))
}

func Test_commandLine_markOverdue(t *testing.T) {
	cli, env := setup(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "LOMA850315MJCPRR02", "admin@test.mx", "", []string{user.RoleAdmin}, true)
	prog := env.CreateProgram(t, "LAE", "Administración de Empresas")
	period := env.CreatePeriod(t, "2025-1", "2025-01-15", "2025-06-30")
	res := env.Enroll(t, testutil.NewEnrollment("PEGJ900101HDFRRN09", prog.ID, period.ID), admin.ID)

	require.NoError(t, cli.run([]string{"admin", "markoverdue"}))

	payments, err := env.FinanceSvc.QueryPayments(context.Background(), &finance.PaymentFilter{StudentID: res.Student.ID}, nil)
	require.NoError(t, err)
	for _, p := range payments {
		// every installment of the fixture falls due in 2025
		if p.DueDate.Before(time.Now()) {
			assert.Equal(t, finance.StatusOverdue, p.Status)
		}
	}
}
