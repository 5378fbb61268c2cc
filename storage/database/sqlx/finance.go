package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
)

const (
	stateColumns = `id, student_id, school_period_id, total_semestre, porcentaje_beca, numero_pagos, monto_por_pago,
	total_descuento, total_con_descuento, total_pagado, saldo, fecha_ultimo_pago, created_by, created_at, updated_at`

	paymentColumns = `id, student_id, financial_state_id, concept_id, installment_number, original_amount,
	discount_amount, final_amount, due_date, paid_date, status, payment_method, reference, created_by, created_at, updated_at`

	scholarshipColumns = `id, student_id, type, percentage, valid_from, valid_to, status, justification,
	proposed_by, approved_by, created_at, updated_at`
)

type stateRow struct {
	ID                int             `db:"id"`
	StudentID         int             `db:"student_id"`
	SchoolPeriodID    int             `db:"school_period_id"`
	TotalSemestre     decimal.Decimal `db:"total_semestre"`
	PorcentajeBeca    int             `db:"porcentaje_beca"`
	NumeroPagos       int             `db:"numero_pagos"`
	MontoPorPago      decimal.Decimal `db:"monto_por_pago"`
	TotalDescuento    decimal.Decimal `db:"total_descuento"`
	TotalConDescuento decimal.Decimal `db:"total_con_descuento"`
	TotalPagado       decimal.Decimal `db:"total_pagado"`
	Saldo             decimal.Decimal `db:"saldo"`
	FechaUltimoPago   null.Time       `db:"fecha_ultimo_pago"`
	CreatedBy         null.Int        `db:"created_by"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func toStateRow(fs finance.FinancialState) stateRow {
	return stateRow{
		ID:                fs.ID,
		StudentID:         fs.StudentID,
		SchoolPeriodID:    fs.SchoolPeriodID,
		TotalSemestre:     fs.TotalSemestre,
		PorcentajeBeca:    fs.PorcentajeBeca,
		NumeroPagos:       fs.NumeroPagos,
		MontoPorPago:      fs.MontoPorPago,
		TotalDescuento:    fs.TotalDescuento,
		TotalConDescuento: fs.TotalConDescuento,
		TotalPagado:       fs.TotalPagado,
		Saldo:             fs.Saldo,
		FechaUltimoPago:   nullDate(fs.FechaUltimoPago),
		CreatedBy:         nullID(fs.CreatedBy),
		CreatedAt:         fs.CreatedAt.UTC(),
		UpdatedAt:         fs.UpdatedAt.UTC(),
	}
}

func (r stateRow) toState() finance.FinancialState {
	return finance.FinancialState{
		ID:                r.ID,
		StudentID:         r.StudentID,
		SchoolPeriodID:    r.SchoolPeriodID,
		TotalSemestre:     r.TotalSemestre,
		PorcentajeBeca:    r.PorcentajeBeca,
		NumeroPagos:       r.NumeroPagos,
		MontoPorPago:      r.MontoPorPago,
		TotalDescuento:    r.TotalDescuento,
		TotalConDescuento: r.TotalConDescuento,
		TotalPagado:       r.TotalPagado,
		Saldo:             r.Saldo,
		FechaUltimoPago:   datePtr(r.FechaUltimoPago),
		CreatedBy:         r.CreatedBy.Int,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type paymentRow struct {
	ID                int             `db:"id"`
	StudentID         int             `db:"student_id"`
	FinancialStateID  null.Int        `db:"financial_state_id"`
	ConceptID         int             `db:"concept_id"`
	InstallmentNumber null.Int        `db:"installment_number"`
	OriginalAmount    decimal.Decimal `db:"original_amount"`
	DiscountAmount    decimal.Decimal `db:"discount_amount"`
	FinalAmount       decimal.Decimal `db:"final_amount"`
	DueDate           time.Time       `db:"due_date"`
	PaidDate          null.Time       `db:"paid_date"`
	Status            string          `db:"status"`
	PaymentMethod     null.String     `db:"payment_method"`
	Reference         string          `db:"reference"`
	CreatedBy         null.Int        `db:"created_by"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func nullIntPtr(i *int) null.Int {
	return null.IntFromPtr(i)
}

func intPtr(i null.Int) *int {
	if !i.Valid {
		return nil
	}
	v := i.Int
	return &v
}

func toPaymentRow(p finance.Payment) paymentRow {
	row := paymentRow{
		ID:                p.ID,
		StudentID:         p.StudentID,
		FinancialStateID:  nullIntPtr(p.FinancialStateID),
		ConceptID:         p.ConceptID,
		InstallmentNumber: nullIntPtr(p.InstallmentNumber),
		OriginalAmount:    p.OriginalAmount,
		DiscountAmount:    p.DiscountAmount,
		FinalAmount:       p.FinalAmount,
		DueDate:           p.DueDate,
		PaidDate:          nullDate(p.PaidDate),
		Status:            string(p.Status),
		Reference:         p.Reference,
		CreatedBy:         nullID(p.CreatedBy),
		CreatedAt:         p.CreatedAt.UTC(),
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
	if p.Method != nil {
		row.PaymentMethod = null.StringFrom(string(*p.Method))
	}
	return row
}

func (r paymentRow) toPayment() finance.Payment {
	p := finance.Payment{
		ID:                r.ID,
		StudentID:         r.StudentID,
		FinancialStateID:  intPtr(r.FinancialStateID),
		ConceptID:         r.ConceptID,
		InstallmentNumber: intPtr(r.InstallmentNumber),
		OriginalAmount:    r.OriginalAmount,
		DiscountAmount:    r.DiscountAmount,
		FinalAmount:       r.FinalAmount,
		DueDate:           dateOnly(r.DueDate),
		PaidDate:          datePtr(r.PaidDate),
		Status:            finance.PaymentStatus(r.Status),
		Reference:         r.Reference,
		CreatedBy:         r.CreatedBy.Int,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.PaymentMethod.Valid {
		m := finance.PaymentMethod(r.PaymentMethod.String)
		p.Method = &m
	}
	return p
}

type scholarshipRow struct {
	ID            int       `db:"id"`
	StudentID     int       `db:"student_id"`
	Type          string    `db:"type"`
	Percentage    int       `db:"percentage"`
	ValidFrom     time.Time `db:"valid_from"`
	ValidTo       time.Time `db:"valid_to"`
	Status        string    `db:"status"`
	Justification string    `db:"justification"`
	ProposedBy    null.Int  `db:"proposed_by"`
	ApprovedBy    null.Int  `db:"approved_by"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toScholarshipRow(sch finance.Scholarship) scholarshipRow {
	return scholarshipRow{
		ID:            sch.ID,
		StudentID:     sch.StudentID,
		Type:          string(sch.Type),
		Percentage:    sch.Percentage,
		ValidFrom:     sch.ValidFrom,
		ValidTo:       sch.ValidTo,
		Status:        string(sch.Status),
		Justification: sch.Justification,
		ProposedBy:    nullID(sch.ProposedBy),
		ApprovedBy:    nullIntPtr(sch.ApprovedBy),
		CreatedAt:     sch.CreatedAt.UTC(),
		UpdatedAt:     sch.UpdatedAt.UTC(),
	}
}

func (r scholarshipRow) toScholarship() finance.Scholarship {
	return finance.Scholarship{
		ID:            r.ID,
		StudentID:     r.StudentID,
		Type:          finance.ScholarshipType(r.Type),
		Percentage:    r.Percentage,
		ValidFrom:     dateOnly(r.ValidFrom),
		ValidTo:       dateOnly(r.ValidTo),
		Status:        finance.ScholarshipStatus(r.Status),
		Justification: r.Justification,
		ProposedBy:    r.ProposedBy.Int,
		ApprovedBy:    intPtr(r.ApprovedBy),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type financeRepository struct {
	db *sqlx.DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *sqlx.DB) finance.Repository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) GetConceptByID(ctx context.Context, id int) (finance.PaymentConcept, error) {
	var c finance.PaymentConcept
	q := `SELECT id, code, name FROM payment_concepts WHERE id = $1`
	if err := database.Executor(ctx, repo.db).QueryRowxContext(ctx, q, id).Scan(&c.ID, &c.Code, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.PaymentConcept{}, finance.ErrConceptNotFound
		}
		return finance.PaymentConcept{}, errors.Wrap(err, "finding payment concept")
	}
	return c, nil
}

func (repo *financeRepository) QueryConcepts(ctx context.Context) ([]finance.PaymentConcept, error) {
	rows, err := database.Executor(ctx, repo.db).QueryxContext(ctx, `SELECT id, code, name FROM payment_concepts ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying payment concepts")
	}
	defer rows.Close()

	concepts := make([]finance.PaymentConcept, 0)
	for rows.Next() {
		var c finance.PaymentConcept
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, errors.Wrap(err, "scanning payment concept")
		}
		concepts = append(concepts, c)
	}
	return concepts, errors.Wrap(rows.Err(), "iterating payment concepts")
}

func (repo *financeRepository) CreateFinancialState(ctx context.Context, fs finance.FinancialState) (finance.FinancialState, error) {
	q := `INSERT INTO financial_states (student_id, school_period_id, total_semestre, porcentaje_beca, numero_pagos,
			monto_por_pago, total_descuento, total_con_descuento, total_pagado, saldo, fecha_ultimo_pago,
			created_by, created_at, updated_at)
		VALUES (:student_id, :school_period_id, :total_semestre, :porcentaje_beca, :numero_pagos,
			:monto_por_pago, :total_descuento, :total_con_descuento, :total_pagado, :saldo, :fecha_ultimo_pago,
			:created_by, :created_at, :updated_at)
		RETURNING ` + stateColumns

	var row stateRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toStateRow(fs)); err != nil {
		if constraint, ok := database.UniqueViolation(err); ok && constraint == "financial_states_student_period_key" {
			return finance.FinancialState{}, finance.ErrStateExists
		}
		return finance.FinancialState{}, errors.Wrap(err, "inserting financial state")
	}
	return row.toState(), nil
}

func (repo *financeRepository) getState(ctx context.Context, query string, args ...interface{}) (finance.FinancialState, error) {
	var row stateRow
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.FinancialState{}, finance.ErrStateNotFound
		}
		return finance.FinancialState{}, errors.Wrap(err, "finding financial state")
	}
	return row.toState(), nil
}

func (repo *financeRepository) GetFinancialStateByID(ctx context.Context, id int) (finance.FinancialState, error) {
	return repo.getState(ctx, `SELECT `+stateColumns+` FROM financial_states WHERE id = $1`, id)
}

func (repo *financeRepository) LockFinancialState(ctx context.Context, id int) (finance.FinancialState, error) {
	return repo.getState(ctx, `SELECT `+stateColumns+` FROM financial_states WHERE id = $1 FOR UPDATE`, id)
}

func (repo *financeRepository) GetFinancialState(ctx context.Context, studentID, periodID int) (finance.FinancialState, error) {
	q := `SELECT ` + stateColumns + ` FROM financial_states WHERE student_id = $1 AND school_period_id = $2`
	return repo.getState(ctx, q, studentID, periodID)
}

func (repo *financeRepository) QueryFinancialStates(ctx context.Context, studentID int) ([]finance.FinancialState, error) {
	var where conditions
	if studentID > 0 {
		where.add("student_id = ?", studentID)
	}
	exec := database.Executor(ctx, repo.db)
	q := exec.Rebind(`SELECT ` + stateColumns + ` FROM financial_states` + where.sql() + ` ORDER BY id`)

	var rows []stateRow
	if err := exec.SelectContext(ctx, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying financial states")
	}
	states := make([]finance.FinancialState, 0, len(rows))
	for _, r := range rows {
		states = append(states, r.toState())
	}
	return states, nil
}

func (repo *financeRepository) UpdateFinancialState(ctx context.Context, fs finance.FinancialState) (finance.FinancialState, error) {
	q := `UPDATE financial_states SET total_pagado = :total_pagado, saldo = :saldo,
			fecha_ultimo_pago = :fecha_ultimo_pago, updated_at = :updated_at
		WHERE id = :id RETURNING ` + stateColumns

	var row stateRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toStateRow(fs)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.FinancialState{}, finance.ErrStateNotFound
		}
		return finance.FinancialState{}, errors.Wrap(err, "updating financial state")
	}
	return row.toState(), nil
}

func (repo *financeRepository) CreatePayments(ctx context.Context, payments ...finance.Payment) ([]finance.Payment, error) {
	q := `INSERT INTO payments (student_id, financial_state_id, concept_id, installment_number, original_amount,
			discount_amount, final_amount, due_date, paid_date, status, payment_method, reference,
			created_by, created_at, updated_at)
		VALUES (:student_id, :financial_state_id, :concept_id, :installment_number, :original_amount,
			:discount_amount, :final_amount, :due_date, :paid_date, :status, :payment_method, :reference,
			:created_by, :created_at, :updated_at)
		RETURNING ` + paymentColumns

	exec := database.Executor(ctx, repo.db)
	created := make([]finance.Payment, 0, len(payments))
	for _, p := range payments {
		var row paymentRow
		if err := namedGet(ctx, exec, &row, q, toPaymentRow(p)); err != nil {
			return nil, errors.Wrap(err, "inserting payment")
		}
		created = append(created, row.toPayment())
	}
	return created, nil
}

func (repo *financeRepository) GetPaymentByID(ctx context.Context, id int) (finance.Payment, error) {
	return repo.getPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// LockPayment holds the row until the ctx transaction ends, so concurrent writers of the same
// payment see its committed status.
func (repo *financeRepository) LockPayment(ctx context.Context, id int) (finance.Payment, error) {
	return repo.getPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (repo *financeRepository) getPayment(ctx context.Context, query string, args ...interface{}) (finance.Payment, error) {
	var row paymentRow
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Payment{}, finance.ErrPaymentNotFound
		}
		return finance.Payment{}, errors.Wrap(err, "finding payment")
	}
	return row.toPayment(), nil
}

func (repo *financeRepository) QueryPayments(ctx context.Context, filter *finance.PaymentFilter, ordering []core.DBOrdering) ([]finance.Payment, error) {
	var where conditions
	if filter != nil {
		if filter.StudentID > 0 {
			where.add("student_id = ?", filter.StudentID)
		}
		if filter.FinancialStateID > 0 {
			where.add("financial_state_id = ?", filter.FinancialStateID)
		}
		if filter.SchoolPeriodID > 0 {
			where.add("financial_state_id IN (SELECT id FROM financial_states WHERE school_period_id = ?)", filter.SchoolPeriodID)
		}
		if filter.ConceptID > 0 {
			where.add("concept_id = ?", filter.ConceptID)
		}
		if len(filter.Statuses) > 0 {
			where.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if !filter.DueFrom.IsZero() {
			where.add("due_date >= ?", filter.DueFrom)
		}
		if !filter.DueTo.IsZero() {
			where.add("due_date <= ?", filter.DueTo)
		}
	}

	exec := database.Executor(ctx, repo.db)
	q := exec.Rebind(`SELECT ` + paymentColumns + ` FROM payments` + where.sql() + orderBy(ordering, "id"))

	var rows []paymentRow
	if err := exec.SelectContext(ctx, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]finance.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.toPayment())
	}
	return payments, nil
}

func (repo *financeRepository) UpdatePayment(ctx context.Context, p finance.Payment) (finance.Payment, error) {
	q := `UPDATE payments SET original_amount = :original_amount, discount_amount = :discount_amount,
			final_amount = :final_amount, due_date = :due_date, paid_date = :paid_date, status = :status,
			payment_method = :payment_method, reference = :reference, updated_at = :updated_at
		WHERE id = :id RETURNING ` + paymentColumns

	var row paymentRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toPaymentRow(p)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Payment{}, finance.ErrPaymentNotFound
		}
		return finance.Payment{}, errors.Wrap(err, "updating payment")
	}
	return row.toPayment(), nil
}

func (repo *financeRepository) MarkOverduePayments(ctx context.Context, today time.Time) (int, error) {
	q := `UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4`
	res, err := database.Executor(ctx, repo.db).ExecContext(ctx, q,
		finance.StatusOverdue, time.Now().UTC(), finance.StatusPending, today)
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue payments")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting overdue payments")
}

func (repo *financeRepository) trapScholarshipErr(err error, msg string) error {
	if constraint, ok := database.UniqueViolation(err); ok && constraint == "scholarships_one_active_idx" {
		return core.NewConflictError("%s", finance.ErrActiveScholarship)
	}
	return errors.Wrap(err, msg)
}

func (repo *financeRepository) CreateScholarship(ctx context.Context, sch finance.Scholarship) (finance.Scholarship, error) {
	q := `INSERT INTO scholarships (student_id, type, percentage, valid_from, valid_to, status, justification,
			proposed_by, approved_by, created_at, updated_at)
		VALUES (:student_id, :type, :percentage, :valid_from, :valid_to, :status, :justification,
			:proposed_by, :approved_by, :created_at, :updated_at)
		RETURNING ` + scholarshipColumns

	var row scholarshipRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toScholarshipRow(sch)); err != nil {
		return finance.Scholarship{}, repo.trapScholarshipErr(err, "inserting scholarship")
	}
	return row.toScholarship(), nil
}

func (repo *financeRepository) GetScholarshipByID(ctx context.Context, id int) (finance.Scholarship, error) {
	var row scholarshipRow
	q := `SELECT ` + scholarshipColumns + ` FROM scholarships WHERE id = $1`
	if err := database.Executor(ctx, repo.db).GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Scholarship{}, finance.ErrScholarshipNotFound
		}
		return finance.Scholarship{}, errors.Wrap(err, "finding scholarship")
	}
	return row.toScholarship(), nil
}

func (repo *financeRepository) QueryScholarships(ctx context.Context, filter *finance.ScholarshipFilter) ([]finance.Scholarship, error) {
	var where conditions
	if filter != nil {
		if filter.StudentID > 0 {
			where.add("student_id = ?", filter.StudentID)
		}
		if len(filter.Statuses) > 0 {
			where.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.Type != "" {
			where.add("type = ?", filter.Type)
		}
	}

	exec := database.Executor(ctx, repo.db)
	q := exec.Rebind(`SELECT ` + scholarshipColumns + ` FROM scholarships` + where.sql() + ` ORDER BY id`)

	var rows []scholarshipRow
	if err := exec.SelectContext(ctx, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying scholarships")
	}
	scholarships := make([]finance.Scholarship, 0, len(rows))
	for _, r := range rows {
		scholarships = append(scholarships, r.toScholarship())
	}
	return scholarships, nil
}

func (repo *financeRepository) UpdateScholarship(ctx context.Context, sch finance.Scholarship) (finance.Scholarship, error) {
	q := `UPDATE scholarships SET status = :status, approved_by = :approved_by, updated_at = :updated_at
		WHERE id = :id RETURNING ` + scholarshipColumns

	var row scholarshipRow
	if err := namedGet(ctx, database.Executor(ctx, repo.db), &row, q, toScholarshipRow(sch)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Scholarship{}, finance.ErrScholarshipNotFound
		}
		return finance.Scholarship{}, repo.trapScholarshipErr(err, "updating scholarship")
	}
	return row.toScholarship(), nil
}
