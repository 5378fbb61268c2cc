package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
)

// matriculaLockKey identifies the advisory lock serialising matrícula generation.
const matriculaLockKey = 727301

const studentColumns = `id, matricula, curp, first_name, last_name, second_last_name, email, phone, birth_date,
	program_id, group_id, modality, current_term, status, is_active, created_by, created_at, updated_at`

type studentRow struct {
	ID             int       `db:"id"`
	Matricula      string    `db:"matricula"`
	CURP           string    `db:"curp"`
	FirstName      string    `db:"first_name"`
	LastName       string    `db:"last_name"`
	SecondLastName string    `db:"second_last_name"`
	Email          string    `db:"email"`
	Phone          string    `db:"phone"`
	BirthDate      null.Time `db:"birth_date"`
	ProgramID      int       `db:"program_id"`
	GroupID        null.Int  `db:"group_id"`
	Modality       string    `db:"modality"`
	CurrentTerm    int       `db:"current_term"`
	Status         string    `db:"status"`
	IsActive       bool      `db:"is_active"`
	CreatedBy      null.Int  `db:"created_by"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toStudentRow(st student.Student) studentRow {
	row := studentRow{
		ID:             st.ID,
		Matricula:      st.Matricula,
		CURP:           st.CURP,
		FirstName:      st.FirstName,
		LastName:       st.LastName,
		SecondLastName: st.SecondLastName,
		Email:          st.Email,
		Phone:          st.Phone,
		BirthDate:      nullDate(st.BirthDate),
		ProgramID:      st.ProgramID,
		Modality:       string(st.Modality),
		CurrentTerm:    st.CurrentTerm,
		Status:         string(st.Status),
		IsActive:       st.IsActive,
		CreatedBy:      nullID(st.CreatedBy),
		CreatedAt:      st.CreatedAt.UTC(),
		UpdatedAt:      st.UpdatedAt.UTC(),
	}
	if st.GroupID != nil {
		row.GroupID = null.IntFrom(*st.GroupID)
	}
	return row
}

func (r studentRow) toStudent() student.Student {
	st := student.Student{
		ID:             r.ID,
		Matricula:      r.Matricula,
		CURP:           r.CURP,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		SecondLastName: r.SecondLastName,
		Email:          r.Email,
		Phone:          r.Phone,
		BirthDate:      datePtr(r.BirthDate),
		ProgramID:      r.ProgramID,
		Modality:       student.Modality(r.Modality),
		CurrentTerm:    r.CurrentTerm,
		Status:         student.Status(r.Status),
		IsActive:       r.IsActive,
		CreatedBy:      r.CreatedBy.Int,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.GroupID.Valid {
		id := r.GroupID.Int
		st.GroupID = &id
	}
	return st
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

// LockMatriculaSequence takes a transaction scoped advisory lock. Outside a transaction it is a no-op.
func (repo *studentRepository) LockMatriculaSequence(ctx context.Context) error {
	if !database.InTx(ctx) {
		return nil
	}
	_, err := database.Executor(ctx, repo.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, matriculaLockKey)
	return errors.Wrap(err, "locking matrícula sequence")
}

func (repo *studentRepository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &count, `SELECT COUNT(*) FROM students`); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}

func (repo *studentRepository) MatriculaExists(ctx context.Context, matricula string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM students WHERE matricula = $1)`
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &exists, q, matricula); err != nil {
		return false, errors.Wrap(err, "checking matrícula")
	}
	return exists, nil
}

func (repo *studentRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case "students_curp_key":
			return student.ErrCURPExists
		case "students_matricula_key":
			return student.ErrMatriculaExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `INSERT INTO students (matricula, curp, first_name, last_name, second_last_name, email, phone, birth_date,
			program_id, group_id, modality, current_term, status, is_active, created_by, created_at, updated_at)
		VALUES (:matricula, :curp, :first_name, :last_name, :second_last_name, :email, :phone, :birth_date,
			:program_id, :group_id, :modality, :current_term, :status, :is_active, :created_by, :created_at, :updated_at)
		RETURNING ` + studentColumns

	var row studentRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toStudentRow(st)); err != nil {
		return student.Student{}, repo.trapUniqueErr(err, "inserting student")
	}
	return row.toStudent(), nil
}

func (repo *studentRepository) getStudent(ctx context.Context, cond string, arg interface{}) (student.Student, error) {
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM students WHERE ` + cond
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	return row.toStudent(), nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id int) (student.Student, error) {
	return repo.getStudent(ctx, "id = $1", id)
}

func (repo *studentRepository) GetStudentByCURP(ctx context.Context, curp string) (student.Student, error) {
	return repo.getStudent(ctx, "curp = $1", curp)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	var where conditions
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.add(`(CONCAT_WS(' ', first_name, last_name, second_last_name) ILIKE ? OR matricula ILIKE ? OR curp ILIKE ?)`,
				val, val, val)
		}
		if filter.ProgramID > 0 {
			where.add("program_id = ?", filter.ProgramID)
		}
		if filter.GroupID > 0 {
			where.add("group_id = ?", filter.GroupID)
		}
		if len(filter.Statuses) > 0 {
			where.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.Modality != "" {
			where.add("modality = ?", filter.Modality)
		}
		if filter.IsActive != nil {
			where.add("is_active = ?", *filter.IsActive)
		}
	}

	exec := database.Executor(ctx, repo.db)
	q := exec.Rebind(`SELECT ` + studentColumns + ` FROM students` + where.sql() + orderBy(ordering, "id"))

	var rows []studentRow
	if err := exec.SelectContext(ctx, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `UPDATE students SET first_name = :first_name, last_name = :last_name, second_last_name = :second_last_name,
			email = :email, phone = :phone, birth_date = :birth_date, group_id = :group_id, modality = :modality,
			current_term = :current_term, status = :status, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id RETURNING ` + studentColumns

	var row studentRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toStudentRow(st)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, repo.trapUniqueErr(err, "updating student")
	}
	return row.toStudent(), nil
}

func (repo *studentRepository) CountStudentsByStatus(ctx context.Context) (map[student.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	q := `SELECT status, COUNT(*) AS count FROM students WHERE is_active GROUP BY status`
	if err := database.Executor(ctx, repo.db).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting students by status")
	}
	counts := make(map[student.Status]int, len(rows))
	for _, r := range rows {
		counts[student.Status(r.Status)] = r.Count
	}
	return counts, nil
}
