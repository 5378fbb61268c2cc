package inmemdb

import (
	"context"

	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) academic.Repository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) CreateProgram(ctx context.Context, prog academic.Program) (academic.Program, error) {
	defer repo.db.acquire(ctx)()

	for _, p := range repo.db.t.programs {
		if p.Code == prog.Code {
			return academic.Program{}, academic.ErrProgramExists
		}
	}
	prog.ID = repo.db.nextPK("programs")
	repo.db.t.programs[prog.ID] = prog
	return prog, nil
}

func (repo *academicRepository) QueryPrograms(ctx context.Context, filter academic.QueryFilter) ([]academic.Program, error) {
	defer repo.db.acquire(ctx)()

	progs := make([]academic.Program, 0)
	for _, p := range values(repo.db.t.programs) {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		progs = append(progs, p)
	}
	return progs, nil
}

func (repo *academicRepository) GetProgramByID(ctx context.Context, id int) (academic.Program, error) {
	defer repo.db.acquire(ctx)()

	if p, ok := repo.db.t.programs[id]; ok {
		return p, nil
	}
	return academic.Program{}, academic.ErrProgramNotFound
}

func (repo *academicRepository) CreatePeriod(ctx context.Context, period academic.SchoolPeriod) (academic.SchoolPeriod, error) {
	defer repo.db.acquire(ctx)()

	for _, p := range repo.db.t.periods {
		if p.Name == period.Name {
			return academic.SchoolPeriod{}, academic.ErrPeriodExists
		}
	}
	period.ID = repo.db.nextPK("periods")
	repo.db.t.periods[period.ID] = period
	return period, nil
}

func (repo *academicRepository) QueryPeriods(ctx context.Context, filter academic.QueryFilter) ([]academic.SchoolPeriod, error) {
	defer repo.db.acquire(ctx)()

	periods := make([]academic.SchoolPeriod, 0)
	for _, p := range values(repo.db.t.periods) {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func (repo *academicRepository) GetPeriodByID(ctx context.Context, id int) (academic.SchoolPeriod, error) {
	defer repo.db.acquire(ctx)()

	if p, ok := repo.db.t.periods[id]; ok {
		return p, nil
	}
	return academic.SchoolPeriod{}, academic.ErrPeriodNotFound
}

func (repo *academicRepository) CreateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	defer repo.db.acquire(ctx)()

	for _, g := range repo.db.t.groups {
		if g.ProgramID == grp.ProgramID && g.Name == grp.Name {
			return academic.Group{}, academic.ErrGroupExists
		}
	}
	grp.ID = repo.db.nextPK("groups")
	repo.db.t.groups[grp.ID] = grp
	return grp, nil
}

func (repo *academicRepository) QueryGroups(ctx context.Context, filter academic.QueryFilter) ([]academic.Group, error) {
	defer repo.db.acquire(ctx)()

	groups := make([]academic.Group, 0)
	for _, g := range values(repo.db.t.groups) {
		if filter.ProgramID > 0 && g.ProgramID != filter.ProgramID {
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (repo *academicRepository) GetGroupByID(ctx context.Context, id int) (academic.Group, error) {
	defer repo.db.acquire(ctx)()

	if g, ok := repo.db.t.groups[id]; ok {
		return g, nil
	}
	return academic.Group{}, academic.ErrGroupNotFound
}
