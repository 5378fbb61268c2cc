package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type ScholarshipType string

const (
	ScholarshipAcademic      ScholarshipType = "ACADEMICA"
	ScholarshipSports        ScholarshipType = "DEPORTIVA"
	ScholarshipCultural      ScholarshipType = "CULTURAL"
	ScholarshipSocioeconomic ScholarshipType = "SOCIOECONOMICA"
)

type ScholarshipStatus string

const (
	ScholarshipProposed ScholarshipStatus = "PROPUESTA"
	ScholarshipApproved ScholarshipStatus = "APROBADA"
	ScholarshipRejected ScholarshipStatus = "RECHAZADA"
	ScholarshipActive   ScholarshipStatus = "ACTIVA"
	ScholarshipExpired  ScholarshipStatus = "VENCIDA"
)

var scholarshipTransitions = map[ScholarshipStatus][]ScholarshipStatus{
	ScholarshipProposed: {ScholarshipApproved, ScholarshipRejected},
	ScholarshipApproved: {ScholarshipActive, ScholarshipRejected},
	ScholarshipActive:   {ScholarshipExpired},
}

func (s ScholarshipStatus) CanTransitionTo(next ScholarshipStatus) bool {
	for _, st := range scholarshipTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

const ScholarshipPercentStep = 5

type Scholarship struct {
	ID            int               `json:"id"`
	StudentID     int               `json:"estudianteId"`
	Type          ScholarshipType   `json:"tipo"`
	Percentage    int               `json:"porcentaje"`
	ValidFrom     time.Time         `json:"vigenciaInicio"`
	ValidTo       time.Time         `json:"vigenciaFin"`
	Status        ScholarshipStatus `json:"estatus"`
	Justification string            `json:"justificacion"`
	ProposedBy    int               `json:"propuestaPor,omitempty"`
	ApprovedBy    *int              `json:"aprobadaPor"`
	CreatedAt     time.Time         `json:"fechaCreacion"`
	UpdatedAt     time.Time         `json:"fechaActualizacion"`
}

type NewScholarship struct {
	EstudianteID   int    `json:"estudianteId" validate:"required,min=1"`
	Tipo           string `json:"tipo" validate:"required,oneof=ACADEMICA DEPORTIVA CULTURAL SOCIOECONOMICA"`
	Porcentaje     int    `json:"porcentaje" validate:"required,min=5,max=30"`
	VigenciaInicio string `json:"vigenciaInicio" validate:"required,isodate"`
	VigenciaFin    string `json:"vigenciaFin" validate:"required,isodate"`
	Justificacion  string `json:"justificacion" validate:"required,notblank,max=2000"`
}

func (ns *NewScholarship) Validate(validate *validator.Validate) error {
	ns.Tipo = strings.ToUpper(core.CleanString(ns.Tipo))
	ns.VigenciaInicio = core.CleanString(ns.VigenciaInicio)
	ns.VigenciaFin = core.CleanString(ns.VigenciaFin)
	ns.Justificacion = core.CleanString(ns.Justificacion)
	return validate.Struct(ns)
}

type ScholarshipFilter struct {
	StudentID int      `query:"estudianteId"`
	Statuses  []string `query:"estatus"`
	Type      string   `query:"tipo"`
}

func (sf *ScholarshipFilter) Clean() {
	sf.Type = strings.ToUpper(core.CleanString(sf.Type))
	for i, st := range sf.Statuses {
		sf.Statuses[i] = strings.ToUpper(core.CleanString(st))
	}
}

var (
	ErrScholarshipNotFound = core.NewNotFoundError("scholarship")
	ErrActiveScholarship   = errors.New("the student already has an active scholarship")
)

func (svc *service) ProposeScholarship(ctx context.Context, ns NewScholarship, adminID int) (Scholarship, error) {
	from, err := core.ParseDate(ns.VigenciaInicio)
	if err != nil {
		return Scholarship{}, errors.Wrap(err, "parsing validity start")
	}
	to, err := core.ParseDate(ns.VigenciaFin)
	if err != nil {
		return Scholarship{}, errors.Wrap(err, "parsing validity end")
	}
	if to.Before(from) {
		return Scholarship{}, core.NewValidationError(nil, core.FieldError{Field: "vigenciaFin", Error: "must not be before vigenciaInicio"})
	}
	if err := svc.checkStudent(ctx, ns.EstudianteID); err != nil {
		return Scholarship{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateScholarship(ctx, Scholarship{
		StudentID:     ns.EstudianteID,
		Type:          ScholarshipType(ns.Tipo),
		Percentage:    ns.Porcentaje,
		ValidFrom:     from,
		ValidTo:       to,
		Status:        ScholarshipProposed,
		Justification: ns.Justificacion,
		ProposedBy:    adminID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) GetScholarship(ctx context.Context, id int) (Scholarship, error) {
	return svc.repo.GetScholarshipByID(ctx, id)
}

func (svc *service) QueryScholarships(ctx context.Context, filter *ScholarshipFilter) ([]Scholarship, error) {
	if filter == nil {
		filter = new(ScholarshipFilter)
	}
	return svc.repo.QueryScholarships(ctx, filter)
}

func (svc *service) ApproveScholarship(ctx context.Context, id, adminID int) (Scholarship, error) {
	return svc.moveScholarship(ctx, id, ScholarshipApproved, func(sch *Scholarship) error {
		sch.ApprovedBy = &adminID
		return nil
	})
}

func (svc *service) RejectScholarship(ctx context.Context, id int) (Scholarship, error) {
	return svc.moveScholarship(ctx, id, ScholarshipRejected, nil)
}

// ActivateScholarship makes an approved scholarship the active one of its student.
// A student holds at most one active scholarship.
func (svc *service) ActivateScholarship(ctx context.Context, id int) (Scholarship, error) {
	return svc.moveScholarship(ctx, id, ScholarshipActive, func(sch *Scholarship) error {
		active, err := svc.repo.QueryScholarships(ctx, &ScholarshipFilter{
			StudentID: sch.StudentID,
			Statuses:  []string{string(ScholarshipActive)},
		})
		if err != nil {
			return errors.Wrap(err, "querying active scholarships")
		}
		if len(active) > 0 {
			return core.NewConflictError("%s", ErrActiveScholarship)
		}
		return nil
	})
}

func (svc *service) ExpireScholarship(ctx context.Context, id int) (Scholarship, error) {
	return svc.moveScholarship(ctx, id, ScholarshipExpired, nil)
}

func (svc *service) moveScholarship(ctx context.Context, id int, next ScholarshipStatus, prepare func(*Scholarship) error) (Scholarship, error) {
	var sch Scholarship
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sch, err = svc.repo.GetScholarshipByID(ctx, id); err != nil {
			return errors.Wrap(err, "finding scholarship")
		}
		if !sch.Status.CanTransitionTo(next) {
			msg := fmt.Sprintf("cannot change status from %s to %s", sch.Status, next)
			return core.NewValidationError(nil, core.FieldError{Field: "estatus", Error: msg})
		}
		if prepare != nil {
			if err := prepare(&sch); err != nil {
				return err
			}
		}
		sch.Status = next
		sch.UpdatedAt = time.Now().UTC()
		sch, err = svc.repo.UpdateScholarship(ctx, sch)
		return errors.Wrap(err, "updating scholarship")
	})
	if err != nil {
		return Scholarship{}, err
	}
	return sch, nil
}
