package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type Modality string

const (
	ModalityOnCampus Modality = "ESCOLARIZADA"
	ModalitySaturday Modality = "SABATINA"
)

type Status string

const (
	StatusActive    Status = "ACTIVO"
	StatusOnLeave   Status = "BAJA_TEMPORAL"
	StatusGraduated Status = "EGRESADO"
)

// statusTransitions lists the statuses reachable from each status. EGRESADO is terminal.
var statusTransitions = map[Status][]Status{
	StatusActive:  {StatusOnLeave, StatusGraduated},
	StatusOnLeave: {StatusActive},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusOnLeave, StatusGraduated:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range statusTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type Student struct {
	ID             int        `json:"id"`
	Matricula      string     `json:"matricula"`
	CURP           string     `json:"curp"`
	FirstName      string     `json:"nombre"`
	LastName       string     `json:"apellidoPaterno"`
	SecondLastName string     `json:"apellidoMaterno"`
	Email          string     `json:"email"`
	Phone          string     `json:"telefono"`
	BirthDate      *time.Time `json:"fechaNacimiento"`
	ProgramID      int        `json:"programaId"`
	GroupID        *int       `json:"grupoId"`
	Modality       Modality   `json:"modalidad"`
	CurrentTerm    int        `json:"semestreActual"`
	Status         Status     `json:"estatus"`
	IsActive       bool       `json:"activo"`
	CreatedBy      int        `json:"creadoPor,omitempty"`
	CreatedAt      time.Time  `json:"fechaCreacion"`
	UpdatedAt      time.Time  `json:"fechaActualizacion"`
}

func (st Student) FullName() string {
	return strings.Join(strings.Fields(st.FirstName+" "+st.LastName+" "+st.SecondLastName), " ")
}

// NewStudent holds the personal and academic data captured at enrollment.
type NewStudent struct {
	CURP           string `json:"curp" validate:"required,curp"`
	FirstName      string `json:"nombre" validate:"required,notblank,max=100"`
	LastName       string `json:"apellidoPaterno" validate:"required,notblank,max=100"`
	SecondLastName string `json:"apellidoMaterno" validate:"omitempty,max=100"`
	Email          string `json:"email" validate:"omitempty,email,max=150"`
	Phone          string `json:"telefono" validate:"omitempty,max=20"`
	BirthDate      string `json:"fechaNacimiento" validate:"omitempty,isodate"`
	ProgramID      int    `json:"programaId" validate:"required,min=1"`
	GroupID        *int   `json:"grupoId" validate:"omitempty,min=1"`
	Modality       string `json:"modalidad" validate:"required,oneof=ESCOLARIZADA SABATINA"`
	CurrentTerm    int    `json:"semestreActual" validate:"omitempty,min=1,max=12"`
}

// Clean normalises the free-text fields. Call it before validation.
func (ns *NewStudent) Clean() {
	ns.CURP = strings.ToUpper(core.CleanString(ns.CURP))
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.SecondLastName = core.CleanString(ns.SecondLastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.BirthDate = core.CleanString(ns.BirthDate)
	ns.Modality = strings.ToUpper(core.CleanString(ns.Modality))
	if ns.CurrentTerm == 0 {
		ns.CurrentTerm = 1
	}
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Matrícula, CURP and program are fixed at enrollment.
type UpdateStudent struct {
	FirstName      string  `json:"nombre" validate:"omitempty,max=100"`
	LastName       string  `json:"apellidoPaterno" validate:"omitempty,max=100"`
	SecondLastName *string `json:"apellidoMaterno" validate:"omitempty,max=100"`
	Email          *string `json:"email" validate:"omitempty,email,max=150"`
	Phone          *string `json:"telefono" validate:"omitempty,max=20"`
	BirthDate      *string `json:"fechaNacimiento" validate:"omitempty,isodate"`
	GroupID        *int    `json:"grupoId" validate:"omitempty,min=1"`
	Modality       string  `json:"modalidad" validate:"omitempty,oneof=ESCOLARIZADA SABATINA"`
	CurrentTerm    int     `json:"semestreActual" validate:"omitempty,min=1,max=12"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	us.Modality = strings.ToUpper(core.CleanString(us.Modality))
	if us.Email != nil {
		email := core.CleanString(*us.Email, true /* lower */)
		us.Email = &email
	}
	return validate.Struct(us)
}

type ChangeStatus struct {
	Status string `json:"estatus" validate:"required,oneof=ACTIVO BAJA_TEMPORAL EGRESADO"`
}

func (cs *ChangeStatus) Validate(validate *validator.Validate) error {
	cs.Status = strings.ToUpper(core.CleanString(cs.Status))
	return validate.Struct(cs)
}

type QueryFilter struct {
	Search    string   `query:"search"`
	ProgramID int      `query:"programaId"`
	GroupID   int      `query:"grupoId"`
	Statuses  []string `query:"estatus"`
	Modality  string   `query:"modalidad"`
	IsActive  *bool    `query:"activo"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Modality = strings.ToUpper(core.CleanString(qf.Modality))
	for i, st := range qf.Statuses {
		qf.Statuses[i] = strings.ToUpper(core.CleanString(st))
	}
}
