package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	testutil "github.com/uzielB/backend-sistemagem-sub000/tests"
)

func Test_financeApi_payments(t *testing.T) {
	a := setup(t)
	prog := a.CreateProgram(t, "LAE", "Administración de Empresas")
	period := a.CreatePeriod(t, "2025-1", "2025-01-15", "2025-06-30")
	res := a.Enroll(t, testutil.NewEnrollment(studentCURP, prog.ID, period.ID), a.admin.ID)
	first := fmt.Sprintf("/api/admin/pagos/%d", res.Payments[0].ID)
	second := fmt.Sprintf("/api/admin/pagos/%d", res.Payments[1].ID)

	a.run(t, []httpTest{
		{
			name:     "list",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/api/admin/pagos?estudianteId=%d&estatus=pendiente&ordering=-fechaVencimiento", res.Student.ID),
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:       "list with malformed date",
			method:     http.MethodGet,
			path:       "/api/admin/pagos?desde=10-02-2025",
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"desde"},
		},
		{
			name:     "concepts",
			method:   http.MethodGet,
			path:     "/api/admin/pagos/conceptos",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown payment",
			method:   http.MethodGet,
			path:     "/api/admin/pagos/999",
			token:    a.adminToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:       "pay without method",
			method:     http.MethodPost,
			path:       first + "/pagar",
			body:       map[string]string{},
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"metodoPago"},
		},
		{
			name:     "pay",
			method:   http.MethodPost,
			path:     first + "/pagar",
			body:     map[string]string{"metodoPago": "transferencia", "fechaPago": "2025-02-08", "referencia": "SPEI-001"},
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:       "pay twice",
			method:     http.MethodPost,
			path:       first + "/pagar",
			body:       map[string]string{"metodoPago": "EFECTIVO"},
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"estatus"},
		},
		{
			name:       "cancel a paid payment",
			method:     http.MethodPost,
			path:       first + "/cancelar",
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"estatus"},
		},
		{
			name:       "change the amount of an installment",
			method:     http.MethodPut,
			path:       second,
			body:       map[string]interface{}{"montoFinal": 100},
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"montoFinal"},
		},
		{
			name:     "move the due date",
			method:   http.MethodPut,
			path:     second,
			body:     map[string]string{"fechaVencimiento": "2025-03-20"},
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "cancel",
			method:   http.MethodPost,
			path:     second + "/cancelar",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
	})

	ctx := context.Background()
	paid, err := a.FinanceSvc.GetPayment(ctx, res.Payments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPaid, paid.Status)
	require.NotNil(t, paid.Method)
	assert.Equal(t, finance.MethodTransfer, *paid.Method)
	assert.Equal(t, "SPEI-001", paid.Reference)

	cancelled, err := a.FinanceSvc.GetPayment(ctx, res.Payments[1].ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusCancelled, cancelled.Status)
	assert.Equal(t, "2025-03-20", cancelled.DueDate.Format("2006-01-02"))

	state, err := a.FinanceSvc.GetState(ctx, res.Student.ID, period.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2160).Equal(state.TotalPagado))
	assert.True(t, decimal.NewFromInt(8640).Equal(state.Saldo))
	require.NotNil(t, state.FechaUltimoPago)
	assert.Equal(t, "2025-02-08", state.FechaUltimoPago.Format("2006-01-02"))
}

func Test_financeApi_charges(t *testing.T) {
	a := setup(t)
	prog := a.CreateProgram(t, "LAE", "Administración de Empresas")
	period := a.CreatePeriod(t, "2025-1", "2025-01-15", "2025-06-30")
	res := a.Enroll(t, testutil.NewEnrollment(studentCURP, prog.ID, period.ID), a.admin.ID)

	charge := func(studentID, conceptID int) map[string]interface{} {
		return map[string]interface{}{
			"estudianteId":     studentID,
			"conceptoId":       conceptID,
			"monto":            250.5,
			"fechaVencimiento": "2025-03-01",
		}
	}

	a.run(t, []httpTest{
		{
			name:       "unknown student",
			method:     http.MethodPost,
			path:       "/api/admin/pagos/cargos",
			body:       charge(999, finance.ConceptLateFee),
			token:      a.adminToken,
			wantCode:   http.StatusNotFound,
			wantFields: []string{"estudianteId"},
		},
		{
			name:       "unknown concept",
			method:     http.MethodPost,
			path:       "/api/admin/pagos/cargos",
			body:       charge(res.Student.ID, 999),
			token:      a.adminToken,
			wantCode:   http.StatusNotFound,
			wantFields: []string{"conceptoId"},
		},
		{
			name:     "late fee",
			method:   http.MethodPost,
			path:     "/api/admin/pagos/cargos",
			body:     charge(res.Student.ID, finance.ConceptLateFee),
			token:    a.adminToken,
			wantCode: http.StatusCreated,
		},
	})

	payments, err := a.FinanceSvc.QueryPayments(context.Background(), &finance.PaymentFilter{StudentID: res.Student.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, payments, 6)
}

func Test_financeApi_scholarships(t *testing.T) {
	a := setup(t)
	prog := a.CreateProgram(t, "LAE", "Administración de Empresas")
	period := a.CreatePeriod(t, "2025-1", "2025-01-15", "2025-06-30")
	res := a.Enroll(t, testutil.NewEnrollment(studentCURP, prog.ID, period.ID), a.admin.ID)

	proposal := map[string]interface{}{
		"estudianteId":   res.Student.ID,
		"tipo":           "academica",
		"porcentaje":     15,
		"vigenciaInicio": "2025-01-15",
		"vigenciaFin":    "2025-06-30",
		"justificacion":  "Promedio de 9.8",
	}
	rec, env := a.do(t, http.MethodPost, "/api/admin/becas", a.adminToken, proposal)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sch finance.Scholarship
	env.decode(t, &sch)
	assert.Equal(t, finance.ScholarshipProposed, sch.Status)
	detail := fmt.Sprintf("/api/admin/becas/%d", sch.ID)

	a.run(t, []httpTest{
		{
			name:       "percentage off the 5% step",
			method:     http.MethodPost,
			path:       "/api/admin/becas",
			body:       map[string]interface{}{"estudianteId": res.Student.ID, "tipo": "CULTURAL", "porcentaje": 12, "vigenciaInicio": "2025-01-15", "vigenciaFin": "2025-06-30", "justificacion": "x"},
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"porcentaje"},
		},
		{
			name:       "activate before approval",
			method:     http.MethodPost,
			path:       detail + "/activar",
			token:      a.adminToken,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"estatus"},
		},
		{
			name:     "approve",
			method:   http.MethodPost,
			path:     detail + "/aprobar",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "activate",
			method:   http.MethodPost,
			path:     detail + "/activar",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "list",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/api/admin/becas?estudianteId=%d&estatus=ACTIVA", res.Student.ID),
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "expire",
			method:   http.MethodPost,
			path:     detail + "/expirar",
			token:    a.adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown scholarship",
			method:   http.MethodPost,
			path:     "/api/admin/becas/999/aprobar",
			token:    a.adminToken,
			wantCode: http.StatusNotFound,
		},
	})

	sch, err := a.FinanceSvc.GetScholarship(context.Background(), sch.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ScholarshipExpired, sch.Status)
	require.NotNil(t, sch.ApprovedBy)
	assert.Equal(t, a.admin.ID, *sch.ApprovedBy)
}
