package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/enrollment"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

var (
	errStudentNotFoundInCtx = errors.New("student object not found in echo.Context")

	studentOrderings = map[string]string{
		"id":              "id",
		"matricula":       "matricula",
		"nombre":          "first_name",
		"apellidoPaterno": "last_name",
		"fechaCreacion":   "created_at",
	}
)

type studentApi struct {
	svc        student.Service
	enrollment enrollment.Service
	finance    finance.Service
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, _ *authenticator, deps *Deps) {
	api := studentApi{
		svc:        deps.StudentSvc,
		enrollment: deps.EnrollmentSvc,
		finance:    deps.FinanceSvc,
		validate:   deps.Validate,
	}

	sg := g.Group("/estudiantes")
	sg.POST("/inscribir", api.enroll)
	sg.GET("", api.query)

	// detail endpoints
	dg := sg.Group("/:id", studentObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.deactivate)
	dg.PATCH("/estatus", api.changeStatus)
	dg.GET("/finanzas", api.queryStates)
	dg.POST("/finanzas", api.createFinancialConfig)
	dg.GET("/pagos", api.queryPayments)
}

func contextStudent(ctx echo.Context) (student.Student, error) {
	st, found := ctx.Get("object").(student.Student)
	if !found {
		return student.Student{}, errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	return st, nil
}

// enroll registers a student along with the financial configuration of their first period.
func (api *studentApi) enroll(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.enrollment.Enroll(ctx.Request().Context(), data, contextAdminID(ctx))
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ok(ctx, http.StatusCreated, res)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := &student.QueryFilter{
		Search:    ctx.QueryParam("search"),
		ProgramID: queryInt(ctx, "programaId"),
		GroupID:   queryInt(ctx, "grupoId"),
		Statuses:  ctx.QueryParams()["estatus"],
		Modality:  ctx.QueryParam("modalidad"),
		IsActive:  queryBool(ctx, "activo"),
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, core.CleanOrdering(ordering.Orderings, studentOrderings))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ok(ctx, http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	return ok(ctx, http.StatusOK, st)
}

func (api *studentApi) update(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err = api.svc.Update(ctx.Request().Context(), st, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ok(ctx, http.StatusOK, st)
}

func (api *studentApi) changeStatus(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data student.ChangeStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err = api.svc.ChangeStatus(ctx.Request().Context(), st, student.Status(data.Status))
	if err != nil {
		return errors.Wrap(err, "changing student status")
	}
	return ok(ctx, http.StatusOK, st)
}

// deactivate soft-deletes the student.
func (api *studentApi) deactivate(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	st, err = api.svc.Deactivate(ctx.Request().Context(), st)
	if err != nil {
		return errors.Wrap(err, "deactivating student")
	}
	return ok(ctx, http.StatusOK, st)
}

func (api *studentApi) queryStates(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	states, err := api.finance.QueryStates(ctx.Request().Context(), st.ID)
	if err != nil {
		return errors.Wrap(err, "querying financial states")
	}
	return ok(ctx, http.StatusOK, states)
}

// createFinancialConfig sets up the tuition plan of an enrolled student for another period.
func (api *studentApi) createFinancialConfig(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data finance.FinancialConfig
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FinancialConfig")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.finance.CreateFinancialConfig(ctx.Request().Context(), st.ID, data, contextAdminID(ctx))
	if err != nil {
		return errors.Wrap(err, "creating financial configuration")
	}
	return ok(ctx, http.StatusCreated, res)
}

func (api *studentApi) queryPayments(ctx echo.Context) error {
	st, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	payments, err := api.finance.QueryPayments(ctx.Request().Context(), &finance.PaymentFilter{
		StudentID:      st.ID,
		SchoolPeriodID: queryInt(ctx, "periodoEscolarId"),
	}, []core.DBOrdering{{Field: "due_date", Ascending: true}, {Field: "id", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ok(ctx, http.StatusOK, payments)
}

// studentObjectMiddleware loads the student of the `:id` path param into the context as "object".
func studentObjectMiddleware(svc student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := paramID(ctx, "id")
			if err != nil {
				return errHttpNotFound
			}
			st, err := svc.Get(ctx.Request().Context(), id)
			if err != nil {
				if errors.Cause(err) == student.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set("object", st)
			return next(ctx)
		}
	}
}
