package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
)

type academicApi struct {
	svc      academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, deps *Deps) {
	api := academicApi{
		svc:      deps.AcademicSvc,
		validate: deps.Validate,
	}

	g.GET("/programas", api.queryPrograms)
	g.POST("/programas", api.createProgram)
	g.GET("/programas/:id", api.retrieveProgram)

	g.GET("/periodos", api.queryPeriods)
	g.POST("/periodos", api.createPeriod)
	g.GET("/periodos/:id", api.retrievePeriod)

	g.GET("/grupos", api.queryGroups)
	g.POST("/grupos", api.createGroup)
	g.GET("/grupos/:id", api.retrieveGroup)
}

func academicFilter(ctx echo.Context) academic.QueryFilter {
	filter := academic.QueryFilter{ProgramID: queryInt(ctx, "programaId")}
	if active := queryBool(ctx, "activos"); active != nil {
		filter.ActiveOnly = *active
	}
	return filter
}

func (api *academicApi) createProgram(ctx echo.Context) error {
	var data academic.NewProgram
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgram")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	prog, err := api.svc.CreateProgram(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating program")
	}
	return ok(ctx, http.StatusCreated, prog)
}

func (api *academicApi) queryPrograms(ctx echo.Context) error {
	progs, err := api.svc.QueryPrograms(ctx.Request().Context(), academicFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying programs")
	}
	return ok(ctx, http.StatusOK, progs)
}

func (api *academicApi) retrieveProgram(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	prog, err := api.svc.GetProgram(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding program")
	}
	return ok(ctx, http.StatusOK, prog)
}

func (api *academicApi) createPeriod(ctx echo.Context) error {
	var data academic.NewSchoolPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	period, err := api.svc.CreatePeriod(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school period")
	}
	return ok(ctx, http.StatusCreated, period)
}

func (api *academicApi) queryPeriods(ctx echo.Context) error {
	periods, err := api.svc.QueryPeriods(ctx.Request().Context(), academicFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying school periods")
	}
	return ok(ctx, http.StatusOK, periods)
}

func (api *academicApi) retrievePeriod(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	period, err := api.svc.GetPeriod(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding school period")
	}
	return ok(ctx, http.StatusOK, period)
}

func (api *academicApi) createGroup(ctx echo.Context) error {
	var data academic.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ok(ctx, http.StatusCreated, grp)
}

func (api *academicApi) queryGroups(ctx echo.Context) error {
	groups, err := api.svc.QueryGroups(ctx.Request().Context(), academicFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return ok(ctx, http.StatusOK, groups)
}

func (api *academicApi) retrieveGroup(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	grp, err := api.svc.GetGroup(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding group")
	}
	return ok(ctx, http.StatusOK, grp)
}
