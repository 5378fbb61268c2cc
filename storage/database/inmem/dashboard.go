package inmemdb

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core/dashboard"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *DB) dashboard.Repository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) PaymentTotals(ctx context.Context, periodID int) (dashboard.PaymentTotals, error) {
	defer repo.db.acquire(ctx)()

	totals := dashboard.PaymentTotals{Billed: decimal.Zero, Collected: decimal.Zero, Outstanding: decimal.Zero}
	for _, p := range repo.db.t.payments {
		if p.Status == finance.StatusCancelled {
			continue
		}
		if periodID > 0 {
			fs, ok := repo.db.t.states[derefInt(p.FinancialStateID)]
			if !ok || fs.SchoolPeriodID != periodID {
				continue
			}
		}

		totals.Billed = totals.Billed.Add(p.FinalAmount)
		switch p.Status {
		case finance.StatusPaid:
			totals.Paid++
			totals.Collected = totals.Collected.Add(p.FinalAmount)
		case finance.StatusPending:
			totals.Pending++
			totals.Outstanding = totals.Outstanding.Add(p.FinalAmount)
		case finance.StatusOverdue:
			totals.Overdue++
			totals.Outstanding = totals.Outstanding.Add(p.FinalAmount)
		}
	}
	return totals, nil
}
