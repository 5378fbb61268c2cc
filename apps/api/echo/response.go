package echoapi

import (
	"github.com/labstack/echo/v4"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, envelope{Success: true, Data: data})
}

func okMessage(ctx echo.Context, code int, msg string) error {
	return ctx.JSON(code, envelope{Success: true, Message: msg})
}
