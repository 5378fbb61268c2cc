package student

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("student")
	ErrCURPExists      = errors.New("a student with this CURP already exists")
	ErrMatriculaExists = errors.New("a student with this matrícula already exists")
	ErrInactive        = errors.New("student is deactivated")
)

type (
	Repository interface {
		// LockMatriculaSequence holds a lock on matrícula generation until the ctx transaction ends.
		LockMatriculaSequence(ctx context.Context) error
		CountStudents(ctx context.Context) (int, error)
		MatriculaExists(ctx context.Context, matricula string) (bool, error)
		// CreateStudent returns ErrCURPExists or ErrMatriculaExists on unique violations.
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudentByID(ctx context.Context, id int) (Student, error)
		GetStudentByCURP(ctx context.Context, curp string) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on the names, matrícula or CURP.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		CountStudentsByStatus(ctx context.Context) (map[Status]int, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewStudent, adminID int) (Student, error)
		CheckCURP(ctx context.Context, curp string) error
		Get(ctx context.Context, id int) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Update(ctx context.Context, st Student, us UpdateStudent) (Student, error)
		ChangeStatus(ctx context.Context, st Student, status Status) (Student, error)
		Deactivate(ctx context.Context, st Student) (Student, error)
		CountByStatus(ctx context.Context) (map[Status]int, error)
	}

	service struct {
		repo     Repository
		academic academic.Service
		gen      *MatriculaGenerator
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, academicSvc academic.Service) Service {
	return &service{
		repo:     repo,
		academic: academicSvc,
		gen:      NewMatriculaGenerator(repo),
	}
}

func curpExistsError() error {
	return core.NewValidationError(ErrCURPExists, core.FieldError{Field: "curp", Error: ErrCURPExists.Error()})
}

// CheckCURP fails with a validation error on field "curp" when a student already holds curp.
func (svc *service) CheckCURP(ctx context.Context, curp string) error {
	_, err := svc.repo.GetStudentByCURP(ctx, curp)
	switch {
	case err == nil:
		return curpExistsError()
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "finding student by CURP")
	}
}

// Create registers a new active student with a freshly generated matrícula.
// Run it inside a transaction: the matrícula sequence stays locked until commit.
func (svc *service) Create(ctx context.Context, ns NewStudent, adminID int) (Student, error) {
	if err := svc.CheckCURP(ctx, ns.CURP); err != nil {
		return Student{}, err
	}

	var birthDate *time.Time
	if ns.BirthDate != "" {
		bd, err := core.ParseDate(ns.BirthDate)
		if err != nil {
			return Student{}, errors.Wrap(err, "parsing birth date")
		}
		birthDate = &bd
	}

	matricula, err := svc.gen.Next(ctx, ns.ProgramID)
	if err != nil {
		return Student{}, errors.Wrap(err, "generating matrícula")
	}

	now := time.Now().UTC()
	st, err := svc.repo.CreateStudent(ctx, Student{
		Matricula:      matricula,
		CURP:           ns.CURP,
		FirstName:      ns.FirstName,
		LastName:       ns.LastName,
		SecondLastName: ns.SecondLastName,
		Email:          ns.Email,
		Phone:          ns.Phone,
		BirthDate:      birthDate,
		ProgramID:      ns.ProgramID,
		GroupID:        ns.GroupID,
		Modality:       Modality(ns.Modality),
		CurrentTerm:    ns.CurrentTerm,
		Status:         StatusActive,
		IsActive:       true,
		CreatedBy:      adminID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Cause(err) == ErrCURPExists {
			return Student{}, curpExistsError()
		}
		return Student{}, err
	}
	return st, nil
}

func (svc *service) Get(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, st Student, us UpdateStudent) (Student, error) {
	if !st.IsActive {
		return Student{}, core.NewValidationError(ErrInactive)
	}

	if us.FirstName != "" {
		st.FirstName = us.FirstName
	}
	if us.LastName != "" {
		st.LastName = us.LastName
	}
	if us.SecondLastName != nil {
		st.SecondLastName = core.CleanString(*us.SecondLastName)
	}
	if us.Email != nil {
		st.Email = *us.Email
	}
	if us.Phone != nil {
		st.Phone = core.CleanString(*us.Phone)
	}
	if us.BirthDate != nil {
		if *us.BirthDate == "" {
			st.BirthDate = nil
		} else {
			bd, err := core.ParseDate(*us.BirthDate)
			if err != nil {
				return Student{}, errors.Wrap(err, "parsing birth date")
			}
			st.BirthDate = &bd
		}
	}
	if us.Modality != "" {
		st.Modality = Modality(us.Modality)
	}
	if us.CurrentTerm > 0 {
		st.CurrentTerm = us.CurrentTerm
	}
	if us.GroupID != nil {
		grp, err := svc.academic.GetGroup(ctx, *us.GroupID)
		if err != nil {
			if errors.Cause(err) == academic.ErrGroupNotFound {
				return Student{}, core.NewNotFoundError("group", "grupoId")
			}
			return Student{}, errors.Wrap(err, "finding group")
		}
		if grp.ProgramID != st.ProgramID {
			return Student{}, core.NewValidationError(nil, core.FieldError{
				Field: "grupoId",
				Error: "group does not belong to the student's program",
			})
		}
		st.GroupID = &grp.ID
	}

	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

// ChangeStatus moves st to status, rejecting transitions the status machine does not allow.
func (svc *service) ChangeStatus(ctx context.Context, st Student, status Status) (Student, error) {
	if !status.IsValid() {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "estatus", Error: "invalid status"})
	}
	if !st.Status.CanTransitionTo(status) {
		msg := fmt.Sprintf("cannot change status from %s to %s", st.Status, status)
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "estatus", Error: msg})
	}
	st.Status = status
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

// Deactivate soft-deletes st. Students are never removed.
func (svc *service) Deactivate(ctx context.Context, st Student) (Student, error) {
	if !st.IsActive {
		return st, nil
	}
	st.IsActive = false
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return svc.repo.CountStudentsByStatus(ctx)
}
