package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core/dashboard"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/storage/database"
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *sqlx.DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) PaymentTotals(ctx context.Context, periodID int) (dashboard.PaymentTotals, error) {
	var where conditions
	where.add("p.status <> ?", finance.StatusCancelled)
	if periodID > 0 {
		where.add("fs.school_period_id = ?", periodID)
	}

	exec := database.Executor(ctx, repo.db)
	q := exec.Rebind(`SELECT
			COALESCE(SUM(p.final_amount), 0) AS billed,
			COALESCE(SUM(p.final_amount) FILTER (WHERE p.status = ?), 0) AS collected,
			COALESCE(SUM(p.final_amount) FILTER (WHERE p.status IN (?, ?)), 0) AS outstanding,
			COUNT(*) FILTER (WHERE p.status = ?) AS pending,
			COUNT(*) FILTER (WHERE p.status = ?) AS overdue,
			COUNT(*) FILTER (WHERE p.status = ?) AS paid
		FROM payments p
		LEFT JOIN financial_states fs ON fs.id = p.financial_state_id` + where.sql())

	args := []interface{}{
		finance.StatusPaid,
		finance.StatusPending, finance.StatusOverdue,
		finance.StatusPending,
		finance.StatusOverdue,
		finance.StatusPaid,
	}
	args = append(args, where.args...)

	var row struct {
		Billed      decimal.Decimal `db:"billed"`
		Collected   decimal.Decimal `db:"collected"`
		Outstanding decimal.Decimal `db:"outstanding"`
		Pending     int             `db:"pending"`
		Overdue     int             `db:"overdue"`
		Paid        int             `db:"paid"`
	}
	if err := exec.GetContext(ctx, &row, q, args...); err != nil {
		return dashboard.PaymentTotals{}, errors.Wrap(err, "aggregating payments")
	}
	return dashboard.PaymentTotals{
		Billed:      row.Billed,
		Collected:   row.Collected,
		Outstanding: row.Outstanding,
		Pending:     row.Pending,
		Overdue:     row.Overdue,
		Paid:        row.Paid,
	}, nil
}
