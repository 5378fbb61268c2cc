package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRequestTags(t *testing.T) {
	e := echo.New()

	newCtx := func(method, path string, id string) echo.Context {
		ctx := e.NewContext(httptest.NewRequest(method, "/", nil), httptest.NewRecorder())
		ctx.SetPath(path)
		if id != "" {
			ctx.SetParamNames("id")
			ctx.SetParamValues(id)
		}
		return ctx
	}

	t.Run("payment route", func(t *testing.T) {
		ctx := newCtx(http.MethodPost, "/api/pagos/:id/pagar", "42")
		ctx.Response().Header().Set(echo.HeaderXRequestID, "req-1")

		assert.Equal(t, map[string]interface{}{
			"method":     http.MethodPost,
			"route":      "/api/pagos/:id/pagar",
			"request_id": "req-1",
			"pago_id":    "42",
		}, requestTags(ctx))
	})

	t.Run("nested student route", func(t *testing.T) {
		tags := requestTags(newCtx(http.MethodGet, "/api/estudiantes/:id/pagos", "7"))
		assert.Equal(t, "7", tags["estudiante_id"])
		assert.NotContains(t, tags, "request_id")
	})

	t.Run("unknown resource", func(t *testing.T) {
		tags := requestTags(newCtx(http.MethodGet, "/api/otros/:id", "3"))
		assert.Equal(t, "3", tags["id"])
	})

	t.Run("no id", func(t *testing.T) {
		assert.Equal(t, map[string]interface{}{
			"method": http.MethodGet,
			"route":  "/api/pagos",
		}, requestTags(newCtx(http.MethodGet, "/api/pagos", "")))
	})
}
