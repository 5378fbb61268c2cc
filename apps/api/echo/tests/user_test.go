package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core/user"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

func Test_userApi(t *testing.T) {
	a := setup(t)
	teacher := testutil.CreateUser(t, a.UserRepo, "Teacher", "RAMS800505MDFMRN01", "teacher@test.mx", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, a.UserRepo, "Other", "MAHR920202HOCRRN04", "other@test.mx", "", nil, true)

	newUser := func(curp, email string, roles ...string) map[string]interface{} {
		return map[string]interface{}{
			"curp":            curp,
			"nombre":          "Nuevo Usuario",
			"email":           email,
			"password":        "Tz9#kLq!2vMw",
			"passwordConfirm": "Tz9#kLq!2vMw",
			"roles":           roles,
		}
	}

	a.run(t, []httpTest{
		{
			name:     "roles",
			method:   http.MethodGet,
			path:     "/api/admin/roles",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:       "taken CURP",
			method:     http.MethodPost,
			path:       "/api/admin/usuarios",
			body:       newUser(teacher.CURP, "new@test.mx"),
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"curp"},
		},
		{
			name:       "role above the caller",
			method:     http.MethodPost,
			path:       "/api/admin/usuarios",
			body:       newUser("GOPL010101HDFMRS07", "new@test.mx", user.RoleAdminSuper),
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"roles"},
		},
		{
			name:     "create",
			method:   http.MethodPost,
			path:     "/api/admin/usuarios",
			body:     newUser("gopl010101hdfmrs07", "New@Test.mx", user.RoleTeacher),
			token:    a.adminToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "list",
			method:   http.MethodGet,
			path:     "/api/admin/usuarios?role=teacher:&ordering=-nombre,desconocido",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/api/admin/usuarios/%d", teacher.ID),
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "update",
			method:   http.MethodPut,
			path:     fmt.Sprintf("/api/admin/usuarios/%d", teacher.ID),
			body:     map[string]interface{}{"nombre": "Profesora Ramírez", "activo": false},
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:      "delete self",
			method:    http.MethodDelete,
			path:      fmt.Sprintf("/api/admin/usuarios/%d", a.admin.ID),
			token:     a.adminToken,
			wantCode:  http.StatusForbidden,
			wantError: "permission denied",
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     fmt.Sprintf("/api/admin/usuarios/%d", other.ID),
			token:    a.adminToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "delete unknown",
			method:   http.MethodDelete,
			path:     fmt.Sprintf("/api/admin/usuarios/%d", other.ID),
			token:    a.adminToken,
			wantCode: http.StatusNotFound,
		},
	})

	ctx := context.Background()
	created, err := a.UserSvc.GetByCURP(ctx, "GOPL010101HDFMRS07")
	require.NoError(t, err)
	assert.Equal(t, "new@test.mx", created.Email)

	updated, err := a.UserSvc.GetByID(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "Profesora Ramírez", updated.Name)
	assert.False(t, updated.IsActive)
}
