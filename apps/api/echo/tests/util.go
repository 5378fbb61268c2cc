package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	echoapi "github.com/uzielB/backend-sistemagem-sub000/apps/api/echo"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

const (
	adminCURP   = "LOMA850315MJCPRR02"
	adminPwd    = "s3cr3t-pwd"
	studentCURP = "PEGJ900101HDFRRN09"
)

type app struct {
	*testutil.Env
	srv        *echoapi.Server
	admin      user.User
	adminToken string
}

func setup(t *testing.T) *app {
	t.Helper()

	env := testutil.NewEnv(t)
	a := &app{
		Env: env,
		srv: echoapi.NewServer(&echoapi.Deps{
			Conf:          env.Conf,
			Logger:        env.Logger,
			Validate:      env.Validate,
			Translator:    env.Translator,
			UserSvc:       env.UserSvc,
			AcademicSvc:   env.AcademicSvc,
			StudentSvc:    env.StudentSvc,
			FinanceSvc:    env.FinanceSvc,
			EnrollmentSvc: env.EnrollmentSvc,
			DashboardSvc:  env.DashboardSvc,
			ReportSvc:     env.ReportSvc,
		}),
	}
	a.admin = testutil.CreateUser(t, env.UserRepo, "Admin", adminCURP, "admin@test.mx", adminPwd, []string{user.RoleAdmin}, true)
	a.adminToken = a.token(t, a.admin)
	return a
}

func (a *app) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(a.Conf, usr)
	require.NoError(t, err)
	return token
}

// do serves one request and decodes the response envelope.
func (a *app) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (e envelope) decode(t *testing.T, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, dest))
}

type httpTest struct {
	name       string
	method     string
	path       string
	body       interface{}
	token      string
	wantCode   int
	wantError  string
	wantFields []string
}

func (a *app) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := a.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if rec.Body.Len() > 0 {
				require.Equal(t, tt.wantCode < http.StatusBadRequest, env.Success)
			}
			if tt.wantError != "" {
				require.Equal(t, tt.wantError, env.Error)
			}
			for _, fld := range tt.wantFields {
				require.Contains(t, env.Errors, fld)
			}
		})
	}
}
