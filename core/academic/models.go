package academic

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type Program struct {
	ID        int       `json:"id"`
	Code      string    `json:"clave"`
	Name      string    `json:"nombre"`
	IsActive  bool      `json:"activo"`
	CreatedAt time.Time `json:"fechaCreacion"`
	UpdatedAt time.Time `json:"fechaActualizacion"`
}

type SchoolPeriod struct {
	ID        int       `json:"id"`
	Name      string    `json:"nombre"`
	StartDate time.Time `json:"fechaInicio"`
	EndDate   time.Time `json:"fechaFin"`
	IsActive  bool      `json:"activo"`
	CreatedAt time.Time `json:"fechaCreacion"`
	UpdatedAt time.Time `json:"fechaActualizacion"`
}

// Contains reports whether day falls within the period, bounds included.
func (p SchoolPeriod) Contains(day time.Time) bool {
	day = core.Today(day)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

type Group struct {
	ID        int       `json:"id"`
	ProgramID int       `json:"programaId"`
	Name      string    `json:"nombre"`
	Term      int       `json:"semestre"`
	CreatedAt time.Time `json:"fechaCreacion"`
	UpdatedAt time.Time `json:"fechaActualizacion"`
}

type NewProgram struct {
	Code string `json:"clave" validate:"required,notblank,max=20"`
	Name string `json:"nombre" validate:"required,notblank,max=150"`
}

func (np *NewProgram) Validate(validate *validator.Validate) error {
	np.Code = strings.ToUpper(core.CleanString(np.Code))
	np.Name = core.CleanString(np.Name)
	return validate.Struct(np)
}

type NewSchoolPeriod struct {
	Name      string `json:"nombre" validate:"required,notblank,max=100"`
	StartDate string `json:"fechaInicio" validate:"required,isodate"`
	EndDate   string `json:"fechaFin" validate:"required,isodate"`
}

func (np *NewSchoolPeriod) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.StartDate = core.CleanString(np.StartDate)
	np.EndDate = core.CleanString(np.EndDate)
	if err := validate.Struct(np); err != nil {
		return err
	}
	start, _ := core.ParseDate(np.StartDate)
	end, _ := core.ParseDate(np.EndDate)
	if end.Before(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "fechaFin", Error: "must not be before fechaInicio"})
	}
	return nil
}

type NewGroup struct {
	ProgramID int    `json:"programaId" validate:"required,min=1"`
	Name      string `json:"nombre" validate:"required,notblank,max=50"`
	Term      int    `json:"semestre" validate:"required,min=1,max=12"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = strings.ToUpper(core.CleanString(ng.Name))
	return validate.Struct(ng)
}

type QueryFilter struct {
	ActiveOnly bool `query:"activos"`
	ProgramID  int  `query:"programaId"`
}
