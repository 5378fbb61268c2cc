package inmemdb

import (
	"context"
	"strings"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

var studentCmps = map[string]func(a, b student.Student) int{
	"id":         func(a, b student.Student) int { return a.ID - b.ID },
	"matricula":  func(a, b student.Student) int { return strings.Compare(a.Matricula, b.Matricula) },
	"last_name":  func(a, b student.Student) int { return strings.Compare(a.LastName, b.LastName) },
	"first_name": func(a, b student.Student) int { return strings.Compare(a.FirstName, b.FirstName) },
	"created_at": func(a, b student.Student) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// LockMatriculaSequence is a no-op: transactions already hold the database lock.
func (repo *studentRepository) LockMatriculaSequence(context.Context) error {
	return nil
}

func (repo *studentRepository) CountStudents(ctx context.Context) (int, error) {
	defer repo.db.acquire(ctx)()
	return len(repo.db.t.students), nil
}

func (repo *studentRepository) MatriculaExists(ctx context.Context, matricula string) (bool, error) {
	defer repo.db.acquire(ctx)()

	for _, st := range repo.db.t.students {
		if st.Matricula == matricula {
			return true, nil
		}
	}
	return false, nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	defer repo.db.acquire(ctx)()

	for _, s := range repo.db.t.students {
		if s.CURP == st.CURP {
			return student.Student{}, student.ErrCURPExists
		}
		if s.Matricula == st.Matricula {
			return student.Student{}, student.ErrMatriculaExists
		}
	}
	st.ID = repo.db.nextPK("students")
	repo.db.t.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id int) (student.Student, error) {
	defer repo.db.acquire(ctx)()

	if st, ok := repo.db.t.students[id]; ok {
		return st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByCURP(ctx context.Context, curp string) (student.Student, error) {
	defer repo.db.acquire(ctx)()

	for _, st := range repo.db.t.students {
		if st.CURP == curp {
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	defer repo.db.acquire(ctx)()

	students := make([]student.Student, 0)
	for _, st := range values(repo.db.t.students) {
		if filter.Search != "" && !(containsFold(st.FullName(), filter.Search) ||
			containsFold(st.Matricula, filter.Search) || containsFold(st.CURP, filter.Search)) {
			continue
		}
		if filter.ProgramID > 0 && st.ProgramID != filter.ProgramID {
			continue
		}
		if filter.GroupID > 0 && (st.GroupID == nil || *st.GroupID != filter.GroupID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, string(st.Status)) {
			continue
		}
		if filter.Modality != "" && string(st.Modality) != filter.Modality {
			continue
		}
		if filter.IsActive != nil && st.IsActive != *filter.IsActive {
			continue
		}
		students = append(students, st)
	}
	orderRows(students, ordering, studentCmps)
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	defer repo.db.acquire(ctx)()

	if _, ok := repo.db.t.students[st.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.t.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) CountStudentsByStatus(ctx context.Context) (map[student.Status]int, error) {
	defer repo.db.acquire(ctx)()

	counts := make(map[student.Status]int)
	for _, st := range repo.db.t.students {
		if st.IsActive {
			counts[st.Status]++
		}
	}
	return counts, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
