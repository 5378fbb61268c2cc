package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

var (
	// errors
	ErrProgramNotFound = core.NewNotFoundError("program")
	ErrPeriodNotFound  = core.NewNotFoundError("school period")
	ErrGroupNotFound   = core.NewNotFoundError("group")
	ErrProgramExists   = errors.New("a program with this code already exists")
	ErrPeriodExists    = errors.New("a school period with this name already exists")
	ErrGroupExists     = errors.New("this program already has a group with this name")
)

type (
	Repository interface {
		CreateProgram(ctx context.Context, prog Program) (Program, error)
		QueryPrograms(ctx context.Context, filter QueryFilter) ([]Program, error)
		GetProgramByID(ctx context.Context, id int) (Program, error)
		CreatePeriod(ctx context.Context, period SchoolPeriod) (SchoolPeriod, error)
		QueryPeriods(ctx context.Context, filter QueryFilter) ([]SchoolPeriod, error)
		GetPeriodByID(ctx context.Context, id int) (SchoolPeriod, error)
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		QueryGroups(ctx context.Context, filter QueryFilter) ([]Group, error)
		GetGroupByID(ctx context.Context, id int) (Group, error)
	}

	Service interface {
		CreateProgram(ctx context.Context, np NewProgram) (Program, error)
		QueryPrograms(ctx context.Context, filter QueryFilter) ([]Program, error)
		GetProgram(ctx context.Context, id int) (Program, error)
		CreatePeriod(ctx context.Context, np NewSchoolPeriod) (SchoolPeriod, error)
		QueryPeriods(ctx context.Context, filter QueryFilter) ([]SchoolPeriod, error)
		GetPeriod(ctx context.Context, id int) (SchoolPeriod, error)
		CreateGroup(ctx context.Context, ng NewGroup) (Group, error)
		QueryGroups(ctx context.Context, filter QueryFilter) ([]Group, error)
		GetGroup(ctx context.Context, id int) (Group, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateProgram(ctx context.Context, np NewProgram) (Program, error) {
	now := time.Now().UTC()
	prog, err := svc.repo.CreateProgram(ctx, Program{
		Code:      np.Code,
		Name:      np.Name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Cause(err) == ErrProgramExists {
		return Program{}, core.NewValidationError(err, core.FieldError{Field: "clave", Error: err.Error()})
	}
	return prog, err
}

func (svc *service) QueryPrograms(ctx context.Context, filter QueryFilter) ([]Program, error) {
	return svc.repo.QueryPrograms(ctx, filter)
}

func (svc *service) GetProgram(ctx context.Context, id int) (Program, error) {
	return svc.repo.GetProgramByID(ctx, id)
}

func (svc *service) CreatePeriod(ctx context.Context, np NewSchoolPeriod) (SchoolPeriod, error) {
	start, err := core.ParseDate(np.StartDate)
	if err != nil {
		return SchoolPeriod{}, errors.Wrap(err, "parsing start date")
	}
	end, err := core.ParseDate(np.EndDate)
	if err != nil {
		return SchoolPeriod{}, errors.Wrap(err, "parsing end date")
	}

	now := time.Now().UTC()
	period, err := svc.repo.CreatePeriod(ctx, SchoolPeriod{
		Name:      np.Name,
		StartDate: start,
		EndDate:   end,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Cause(err) == ErrPeriodExists {
		return SchoolPeriod{}, core.NewValidationError(err, core.FieldError{Field: "nombre", Error: err.Error()})
	}
	return period, err
}

func (svc *service) QueryPeriods(ctx context.Context, filter QueryFilter) ([]SchoolPeriod, error) {
	return svc.repo.QueryPeriods(ctx, filter)
}

func (svc *service) GetPeriod(ctx context.Context, id int) (SchoolPeriod, error) {
	return svc.repo.GetPeriodByID(ctx, id)
}

func (svc *service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	if _, err := svc.repo.GetProgramByID(ctx, ng.ProgramID); err != nil {
		if errors.Cause(err) == ErrProgramNotFound {
			return Group{}, core.NewNotFoundError("program", "programaId")
		}
		return Group{}, errors.Wrap(err, "finding program")
	}

	now := time.Now().UTC()
	grp, err := svc.repo.CreateGroup(ctx, Group{
		ProgramID: ng.ProgramID,
		Name:      ng.Name,
		Term:      ng.Term,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Cause(err) == ErrGroupExists {
		return Group{}, core.NewValidationError(err, core.FieldError{Field: "nombre", Error: err.Error()})
	}
	return grp, err
}

func (svc *service) QueryGroups(ctx context.Context, filter QueryFilter) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, filter)
}

func (svc *service) GetGroup(ctx context.Context, id int) (Group, error) {
	return svc.repo.GetGroupByID(ctx, id)
}
