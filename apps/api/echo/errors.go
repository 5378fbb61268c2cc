package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errInvalidID            = echo.NewHTTPError(http.StatusBadRequest, "invalid id")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		body := envelope{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				body.Error = origErr.Message.(string)
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				body.Error = msg
			} else {
				body.Error = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			body.Error = "validation failed"
			body.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				body.Errors[vErr.Field()] = vErr.Translate(translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			body.Error = origErr.Error()
			if len(origErr.Fields) > 0 {
				body.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					body.Errors[fErr.Field] = fErr.Error
				}
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			body.Error = origErr.Error()
			if origErr.Field != "" {
				body.Errors = map[string]string{origErr.Field: origErr.Error()}
			}
		case *core.ConflictError:
			code = http.StatusConflict
			body.Error = origErr.Error()
		default: // any other error is a server error
			msg := http.StatusText(http.StatusInternalServerError)
			body.Error = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.UserID()
				usr.CURP = claims.CURP
				usr.Email = claims.Email
			}
			args := []interface{}{errors.Wrap(err, msg), usr, requestTags(ctx)}
			if st, ok := ctx.Get("object").(student.Student); ok {
				args = append(args, st)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			body.Error = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// resourceIDKeys names the `:id` param of each resource in error reports.
var resourceIDKeys = map[string]string{
	"estudiantes": "estudiante_id",
	"pagos":       "pago_id",
	"becas":       "beca_id",
	"usuarios":    "usuario_id",
	"programas":   "programa_id",
	"periodos":    "periodo_id",
	"grupos":      "grupo_id",
}

// requestTags identifies the failed request in error reports.
func requestTags(ctx echo.Context) map[string]interface{} {
	tags := map[string]interface{}{
		"method": ctx.Request().Method,
		"route":  ctx.Path(),
	}
	if reqID := ctx.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
		tags["request_id"] = reqID
	}
	if id := ctx.Param("id"); id != "" {
		key := "id"
		if before, _, found := strings.Cut(ctx.Path(), "/:id"); found {
			if k, ok := resourceIDKeys[before[strings.LastIndex(before, "/")+1:]]; ok {
				key = k
			}
		}
		tags[key] = id
	}
	return tags
}
