package inmemdb

import (
	"context"
	"time"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) finance.Repository {
	return &financeRepository{db: db}
}

var paymentCmps = map[string]func(a, b finance.Payment) int{
	"id":         func(a, b finance.Payment) int { return a.ID - b.ID },
	"due_date":   func(a, b finance.Payment) int { return a.DueDate.Compare(b.DueDate) },
	"student_id": func(a, b finance.Payment) int { return a.StudentID - b.StudentID },
	"final_amount": func(a, b finance.Payment) int {
		return a.FinalAmount.Cmp(b.FinalAmount)
	},
	"installment_number": func(a, b finance.Payment) int {
		return derefInt(a.InstallmentNumber) - derefInt(b.InstallmentNumber)
	},
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func (repo *financeRepository) GetConceptByID(ctx context.Context, id int) (finance.PaymentConcept, error) {
	defer repo.db.acquire(ctx)()

	if c, ok := repo.db.t.concepts[id]; ok {
		return c, nil
	}
	return finance.PaymentConcept{}, finance.ErrConceptNotFound
}

func (repo *financeRepository) QueryConcepts(ctx context.Context) ([]finance.PaymentConcept, error) {
	defer repo.db.acquire(ctx)()
	return values(repo.db.t.concepts), nil
}

func (repo *financeRepository) CreateFinancialState(ctx context.Context, fs finance.FinancialState) (finance.FinancialState, error) {
	defer repo.db.acquire(ctx)()

	for _, s := range repo.db.t.states {
		if s.StudentID == fs.StudentID && s.SchoolPeriodID == fs.SchoolPeriodID {
			return finance.FinancialState{}, finance.ErrStateExists
		}
	}
	fs.ID = repo.db.nextPK("states")
	repo.db.t.states[fs.ID] = fs
	return fs, nil
}

func (repo *financeRepository) GetFinancialStateByID(ctx context.Context, id int) (finance.FinancialState, error) {
	defer repo.db.acquire(ctx)()

	if fs, ok := repo.db.t.states[id]; ok {
		return fs, nil
	}
	return finance.FinancialState{}, finance.ErrStateNotFound
}

// LockFinancialState needs no row lock: transactions already hold the database lock.
func (repo *financeRepository) LockFinancialState(ctx context.Context, id int) (finance.FinancialState, error) {
	return repo.GetFinancialStateByID(ctx, id)
}

func (repo *financeRepository) GetFinancialState(ctx context.Context, studentID, periodID int) (finance.FinancialState, error) {
	defer repo.db.acquire(ctx)()

	for _, fs := range repo.db.t.states {
		if fs.StudentID == studentID && fs.SchoolPeriodID == periodID {
			return fs, nil
		}
	}
	return finance.FinancialState{}, finance.ErrStateNotFound
}

func (repo *financeRepository) QueryFinancialStates(ctx context.Context, studentID int) ([]finance.FinancialState, error) {
	defer repo.db.acquire(ctx)()

	states := make([]finance.FinancialState, 0)
	for _, fs := range values(repo.db.t.states) {
		if studentID > 0 && fs.StudentID != studentID {
			continue
		}
		states = append(states, fs)
	}
	return states, nil
}

func (repo *financeRepository) UpdateFinancialState(ctx context.Context, fs finance.FinancialState) (finance.FinancialState, error) {
	defer repo.db.acquire(ctx)()

	if _, ok := repo.db.t.states[fs.ID]; !ok {
		return finance.FinancialState{}, finance.ErrStateNotFound
	}
	repo.db.t.states[fs.ID] = fs
	return fs, nil
}

func (repo *financeRepository) CreatePayments(ctx context.Context, payments ...finance.Payment) ([]finance.Payment, error) {
	defer repo.db.acquire(ctx)()

	created := make([]finance.Payment, 0, len(payments))
	for _, p := range payments {
		p.ID = repo.db.nextPK("payments")
		repo.db.t.payments[p.ID] = p
		created = append(created, p)
	}
	return created, nil
}

func (repo *financeRepository) GetPaymentByID(ctx context.Context, id int) (finance.Payment, error) {
	defer repo.db.acquire(ctx)()

	if p, ok := repo.db.t.payments[id]; ok {
		return p, nil
	}
	return finance.Payment{}, finance.ErrPaymentNotFound
}

// LockPayment needs no row lock: transactions already hold the database lock.
func (repo *financeRepository) LockPayment(ctx context.Context, id int) (finance.Payment, error) {
	return repo.GetPaymentByID(ctx, id)
}

func (repo *financeRepository) QueryPayments(ctx context.Context, filter *finance.PaymentFilter, ordering []core.DBOrdering) ([]finance.Payment, error) {
	defer repo.db.acquire(ctx)()

	payments := make([]finance.Payment, 0)
	for _, p := range values(repo.db.t.payments) {
		if filter.StudentID > 0 && p.StudentID != filter.StudentID {
			continue
		}
		if filter.FinancialStateID > 0 && derefInt(p.FinancialStateID) != filter.FinancialStateID {
			continue
		}
		if filter.SchoolPeriodID > 0 {
			fs, ok := repo.db.t.states[derefInt(p.FinancialStateID)]
			if !ok || fs.SchoolPeriodID != filter.SchoolPeriodID {
				continue
			}
		}
		if filter.ConceptID > 0 && p.ConceptID != filter.ConceptID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, string(p.Status)) {
			continue
		}
		if !filter.DueFrom.IsZero() && p.DueDate.Before(filter.DueFrom) {
			continue
		}
		if !filter.DueTo.IsZero() && p.DueDate.After(filter.DueTo) {
			continue
		}
		payments = append(payments, p)
	}
	orderRows(payments, ordering, paymentCmps)
	return payments, nil
}

func (repo *financeRepository) UpdatePayment(ctx context.Context, p finance.Payment) (finance.Payment, error) {
	defer repo.db.acquire(ctx)()

	if _, ok := repo.db.t.payments[p.ID]; !ok {
		return finance.Payment{}, finance.ErrPaymentNotFound
	}
	repo.db.t.payments[p.ID] = p
	return p, nil
}

func (repo *financeRepository) MarkOverduePayments(ctx context.Context, today time.Time) (int, error) {
	defer repo.db.acquire(ctx)()

	var n int
	now := time.Now().UTC()
	for id, p := range repo.db.t.payments {
		if p.Status == finance.StatusPending && p.DueDate.Before(today) {
			p.Status = finance.StatusOverdue
			p.UpdatedAt = now
			repo.db.t.payments[id] = p
			n++
		}
	}
	return n, nil
}

func (repo *financeRepository) CreateScholarship(ctx context.Context, sch finance.Scholarship) (finance.Scholarship, error) {
	defer repo.db.acquire(ctx)()

	sch.ID = repo.db.nextPK("scholarships")
	repo.db.t.scholarships[sch.ID] = sch
	return sch, nil
}

func (repo *financeRepository) GetScholarshipByID(ctx context.Context, id int) (finance.Scholarship, error) {
	defer repo.db.acquire(ctx)()

	if sch, ok := repo.db.t.scholarships[id]; ok {
		return sch, nil
	}
	return finance.Scholarship{}, finance.ErrScholarshipNotFound
}

func (repo *financeRepository) QueryScholarships(ctx context.Context, filter *finance.ScholarshipFilter) ([]finance.Scholarship, error) {
	defer repo.db.acquire(ctx)()

	scholarships := make([]finance.Scholarship, 0)
	for _, sch := range values(repo.db.t.scholarships) {
		if filter.StudentID > 0 && sch.StudentID != filter.StudentID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, string(sch.Status)) {
			continue
		}
		if filter.Type != "" && string(sch.Type) != filter.Type {
			continue
		}
		scholarships = append(scholarships, sch)
	}
	return scholarships, nil
}

func (repo *financeRepository) UpdateScholarship(ctx context.Context, sch finance.Scholarship) (finance.Scholarship, error) {
	defer repo.db.acquire(ctx)()

	if _, ok := repo.db.t.scholarships[sch.ID]; !ok {
		return finance.Scholarship{}, finance.ErrScholarshipNotFound
	}
	repo.db.t.scholarships[sch.ID] = sch
	return sch, nil
}
