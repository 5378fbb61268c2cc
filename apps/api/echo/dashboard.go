package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core/dashboard"
	"github.com/uzielB/backend-sistemagem-sub000/core/report"
)

type dashboardApi struct {
	svc     dashboard.Service
	reports report.Service
}

func registerDashboardAPI(g *echo.Group, deps *Deps) {
	api := dashboardApi{
		svc:     deps.DashboardSvc,
		reports: deps.ReportSvc,
	}

	g.GET("/dashboard", api.summary)
	g.GET("/reportes/pagos", api.downloadPayments)
	g.POST("/reportes/pagos", api.exportPayments)
}

func (api *dashboardApi) summary(ctx echo.Context) error {
	sum, err := api.svc.Summary(ctx.Request().Context(), queryInt(ctx, "periodoEscolarId"))
	if err != nil {
		return errors.Wrap(err, "computing dashboard summary")
	}
	return ok(ctx, http.StatusOK, sum)
}

// downloadPayments streams the payments report as an XLSX attachment.
func (api *dashboardApi) downloadPayments(ctx echo.Context) error {
	filter, err := paymentFilter(ctx)
	if err != nil {
		return err
	}
	fileName, data, err := api.reports.PaymentsXLSX(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "building payments report")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fileName))
	return ctx.Blob(http.StatusOK, report.ContentTypeXLSX, data)
}

// exportPayments uploads the payments report and answers with a temporary download URL.
func (api *dashboardApi) exportPayments(ctx echo.Context) error {
	filter, err := paymentFilter(ctx)
	if err != nil {
		return err
	}
	file, err := api.reports.ExportPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "exporting payments report")
	}
	return ok(ctx, http.StatusCreated, file)
}
