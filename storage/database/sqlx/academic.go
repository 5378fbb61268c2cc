package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core/academic"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
)

const (
	programColumns = "id, code, name, is_active, created_at, updated_at"
	periodColumns  = "id, name, start_date, end_date, is_active, created_at, updated_at"
	groupColumns   = "id, program_id, name, term, created_at, updated_at"
)

type programRow struct {
	ID        int       `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r programRow) toProgram() academic.Program {
	return academic.Program{
		ID:        r.ID,
		Code:      r.Code,
		Name:      r.Name,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type periodRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r periodRow) toPeriod() academic.SchoolPeriod {
	return academic.SchoolPeriod{
		ID:        r.ID,
		Name:      r.Name,
		StartDate: dateOnly(r.StartDate),
		EndDate:   dateOnly(r.EndDate),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type groupRow struct {
	ID        int       `db:"id"`
	ProgramID int       `db:"program_id"`
	Name      string    `db:"name"`
	Term      int       `db:"term"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r groupRow) toGroup() academic.Group {
	return academic.Group{
		ID:        r.ID,
		ProgramID: r.ProgramID,
		Name:      r.Name,
		Term:      r.Term,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type academicRepository struct {
	db *sqlx.DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) academic.Repository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) CreateProgram(ctx context.Context, prog academic.Program) (academic.Program, error) {
	q := `INSERT INTO programs (code, name, is_active, created_at, updated_at)
		VALUES (:code, :name, :is_active, :created_at, :updated_at) RETURNING ` + programColumns

	var row programRow
	err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, programRow{
		Code:      prog.Code,
		Name:      prog.Name,
		IsActive:  prog.IsActive,
		CreatedAt: prog.CreatedAt,
		UpdatedAt: prog.UpdatedAt,
	})
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return academic.Program{}, academic.ErrProgramExists
		}
		return academic.Program{}, errors.Wrap(err, "inserting program")
	}
	return row.toProgram(), nil
}

func (repo *academicRepository) QueryPrograms(ctx context.Context, filter academic.QueryFilter) ([]academic.Program, error) {
	var where conditions
	if filter.ActiveOnly {
		where.add("is_active")
	}
	var rows []programRow
	q := `SELECT ` + programColumns + ` FROM programs` + where.sql() + ` ORDER BY id`
	if err := database.Executor(ctx, repo.db).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying programs")
	}
	progs := make([]academic.Program, 0, len(rows))
	for _, r := range rows {
		progs = append(progs, r.toProgram())
	}
	return progs, nil
}

func (repo *academicRepository) GetProgramByID(ctx context.Context, id int) (academic.Program, error) {
	var row programRow
	q := `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return academic.Program{}, academic.ErrProgramNotFound
		}
		return academic.Program{}, errors.Wrap(err, "finding program")
	}
	return row.toProgram(), nil
}

func (repo *academicRepository) CreatePeriod(ctx context.Context, period academic.SchoolPeriod) (academic.SchoolPeriod, error) {
	q := `INSERT INTO school_periods (name, start_date, end_date, is_active, created_at, updated_at)
		VALUES (:name, :start_date, :end_date, :is_active, :created_at, :updated_at) RETURNING ` + periodColumns

	var row periodRow
	err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, periodRow{
		Name:      period.Name,
		StartDate: period.StartDate,
		EndDate:   period.EndDate,
		IsActive:  period.IsActive,
		CreatedAt: period.CreatedAt,
		UpdatedAt: period.UpdatedAt,
	})
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return academic.SchoolPeriod{}, academic.ErrPeriodExists
		}
		return academic.SchoolPeriod{}, errors.Wrap(err, "inserting school period")
	}
	return row.toPeriod(), nil
}

func (repo *academicRepository) QueryPeriods(ctx context.Context, filter academic.QueryFilter) ([]academic.SchoolPeriod, error) {
	var where conditions
	if filter.ActiveOnly {
		where.add("is_active")
	}
	var rows []periodRow
	q := `SELECT ` + periodColumns + ` FROM school_periods` + where.sql() + ` ORDER BY id`
	if err := database.Executor(ctx, repo.db).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying school periods")
	}
	periods := make([]academic.SchoolPeriod, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.toPeriod())
	}
	return periods, nil
}

func (repo *academicRepository) GetPeriodByID(ctx context.Context, id int) (academic.SchoolPeriod, error) {
	var row periodRow
	q := `SELECT ` + periodColumns + ` FROM school_periods WHERE id = $1`
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return academic.SchoolPeriod{}, academic.ErrPeriodNotFound
		}
		return academic.SchoolPeriod{}, errors.Wrap(err, "finding school period")
	}
	return row.toPeriod(), nil
}

func (repo *academicRepository) CreateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	q := `INSERT INTO groups (program_id, name, term, created_at, updated_at)
		VALUES (:program_id, :name, :term, :created_at, :updated_at) RETURNING ` + groupColumns

	var row groupRow
	err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, groupRow{
		ProgramID: grp.ProgramID,
		Name:      grp.Name,
		Term:      grp.Term,
		CreatedAt: grp.CreatedAt,
		UpdatedAt: grp.UpdatedAt,
	})
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return academic.Group{}, academic.ErrGroupExists
		}
		return academic.Group{}, errors.Wrap(err, "inserting group")
	}
	return row.toGroup(), nil
}

func (repo *academicRepository) QueryGroups(ctx context.Context, filter academic.QueryFilter) ([]academic.Group, error) {
	var where conditions
	if filter.ProgramID > 0 {
		where.add("program_id = ?", filter.ProgramID)
	}
	exec := database.Executor(ctx, repo.db)
	q := exec.Rebind(`SELECT ` + groupColumns + ` FROM groups` + where.sql() + ` ORDER BY id`)

	var rows []groupRow
	if err := exec.SelectContext(ctx, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]academic.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup())
	}
	return groups, nil
}

func (repo *academicRepository) GetGroupByID(ctx context.Context, id int) (academic.Group, error) {
	var row groupRow
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return academic.Group{}, academic.ErrGroupNotFound
		}
		return academic.Group{}, errors.Wrap(err, "finding group")
	}
	return row.toGroup(), nil
}
