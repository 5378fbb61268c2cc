package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
)

var paymentOrderings = map[string]string{
	"id":               "id",
	"estudianteId":     "student_id",
	"numeroPago":       "installment_number",
	"montoFinal":       "final_amount",
	"fechaVencimiento": "due_date",
	"fechaPago":        "paid_date",
}

type financeApi struct {
	svc      finance.Service
	validate *validator.Validate
}

func registerFinanceAPI(g *echo.Group, _ *authenticator, deps *Deps) {
	api := financeApi{
		svc:      deps.FinanceSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/pagos")
	pg.GET("", api.queryPayments)
	pg.GET("/conceptos", api.queryConcepts)
	pg.POST("/cargos", api.createCharge)
	pg.GET("/:id", api.retrievePayment)
	pg.PUT("/:id", api.updatePayment)
	pg.POST("/:id/pagar", api.recordPayment)
	pg.POST("/:id/cancelar", api.cancelPayment)

	bg := g.Group("/becas")
	bg.GET("", api.queryScholarships)
	bg.POST("", api.proposeScholarship)
	bg.GET("/:id", api.retrieveScholarship)
	bg.POST("/:id/aprobar", api.approveScholarship)
	bg.POST("/:id/rechazar", api.rejectScholarship)
	bg.POST("/:id/activar", api.activateScholarship)
	bg.POST("/:id/expirar", api.expireScholarship)
}

// paymentFilter reads the payment filters shared by the payments list and the reports.
func paymentFilter(ctx echo.Context) (*finance.PaymentFilter, error) {
	filter := &finance.PaymentFilter{
		StudentID:        queryInt(ctx, "estudianteId"),
		FinancialStateID: queryInt(ctx, "estadoFinancieroId"),
		SchoolPeriodID:   queryInt(ctx, "periodoEscolarId"),
		ConceptID:        queryInt(ctx, "conceptoId"),
		Statuses:         ctx.QueryParams()["estatus"],
	}
	var err error
	if filter.DueFrom, err = queryDate(ctx, "desde"); err != nil {
		return nil, err
	}
	if filter.DueTo, err = queryDate(ctx, "hasta"); err != nil {
		return nil, err
	}
	filter.Clean()
	return filter, nil
}

func (api *financeApi) queryPayments(ctx echo.Context) error {
	filter, err := paymentFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter, core.CleanOrdering(ordering.Orderings, paymentOrderings))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ok(ctx, http.StatusOK, payments)
}

func (api *financeApi) queryConcepts(ctx echo.Context) error {
	concepts, err := api.svc.QueryConcepts(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying payment concepts")
	}
	return ok(ctx, http.StatusOK, concepts)
}

func (api *financeApi) createCharge(ctx echo.Context) error {
	var data finance.NewCharge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCharge")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.CreateCharge(ctx.Request().Context(), data, contextAdminID(ctx))
	if err != nil {
		return errors.Wrap(err, "creating charge")
	}
	return ok(ctx, http.StatusCreated, p)
}

func (api *financeApi) retrievePayment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	p, err := api.svc.GetPayment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding payment by ID")
	}
	return ok(ctx, http.StatusOK, p)
}

func (api *financeApi) updatePayment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	var data finance.UpdatePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.UpdatePayment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ok(ctx, http.StatusOK, p)
}

// recordPayment marks the payment as paid.
func (api *financeApi) recordPayment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	var data finance.RecordPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.RecordPayment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ok(ctx, http.StatusOK, p)
}

func (api *financeApi) cancelPayment(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	p, err := api.svc.CancelPayment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "cancelling payment")
	}
	return ok(ctx, http.StatusOK, p)
}

func (api *financeApi) queryScholarships(ctx echo.Context) error {
	filter := &finance.ScholarshipFilter{
		StudentID: queryInt(ctx, "estudianteId"),
		Statuses:  ctx.QueryParams()["estatus"],
		Type:      ctx.QueryParam("tipo"),
	}
	filter.Clean()
	scholarships, err := api.svc.QueryScholarships(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scholarships")
	}
	return ok(ctx, http.StatusOK, scholarships)
}

func (api *financeApi) proposeScholarship(ctx echo.Context) error {
	var data finance.NewScholarship
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScholarship")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	sch, err := api.svc.ProposeScholarship(ctx.Request().Context(), data, contextAdminID(ctx))
	if err != nil {
		return errors.Wrap(err, "proposing scholarship")
	}
	return ok(ctx, http.StatusCreated, sch)
}

func (api *financeApi) retrieveScholarship(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	sch, err := api.svc.GetScholarship(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding scholarship by ID")
	}
	return ok(ctx, http.StatusOK, sch)
}

func (api *financeApi) approveScholarship(ctx echo.Context) error {
	return api.moveScholarship(ctx, "approving", func(svc finance.Service, ctx echo.Context, id int) (finance.Scholarship, error) {
		return svc.ApproveScholarship(ctx.Request().Context(), id, contextAdminID(ctx))
	})
}

func (api *financeApi) rejectScholarship(ctx echo.Context) error {
	return api.moveScholarship(ctx, "rejecting", func(svc finance.Service, ctx echo.Context, id int) (finance.Scholarship, error) {
		return svc.RejectScholarship(ctx.Request().Context(), id)
	})
}

func (api *financeApi) activateScholarship(ctx echo.Context) error {
	return api.moveScholarship(ctx, "activating", func(svc finance.Service, ctx echo.Context, id int) (finance.Scholarship, error) {
		return svc.ActivateScholarship(ctx.Request().Context(), id)
	})
}

func (api *financeApi) expireScholarship(ctx echo.Context) error {
	return api.moveScholarship(ctx, "expiring", func(svc finance.Service, ctx echo.Context, id int) (finance.Scholarship, error) {
		return svc.ExpireScholarship(ctx.Request().Context(), id)
	})
}

type scholarshipMove func(svc finance.Service, ctx echo.Context, id int) (finance.Scholarship, error)

func (api *financeApi) moveScholarship(ctx echo.Context, verb string, move scholarshipMove) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return errHttpNotFound
	}
	sch, err := move(api.svc, ctx, id)
	if err != nil {
		return errors.Wrap(err, verb+" scholarship")
	}
	return ok(ctx, http.StatusOK, sch)
}
