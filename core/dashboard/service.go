package dashboard

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

const cachePrefix = "dashboard:"

// Summary is the admin overview of enrollment and collections.
// Payment figures cover one school period when PeriodID is set, every payment otherwise.
type Summary struct {
	PeriodID          *int            `json:"periodoEscolarId"`
	ActiveStudents    int             `json:"estudiantesActivos"`
	OnLeaveStudents   int             `json:"estudiantesBajaTemporal"`
	GraduatedStudents int             `json:"estudiantesEgresados"`
	TotalBilled       decimal.Decimal `json:"totalFacturado"`
	TotalCollected    decimal.Decimal `json:"totalCobrado"`
	TotalOutstanding  decimal.Decimal `json:"totalPendiente"`
	PendingPayments   int             `json:"pagosPendientes"`
	OverduePayments   int             `json:"pagosVencidos"`
	PaidPayments      int             `json:"pagosPagados"`
	GeneratedAt       time.Time       `json:"generadoEn"`
}

// PaymentTotals aggregates the non-cancelled payments.
type PaymentTotals struct {
	Billed      decimal.Decimal
	Collected   decimal.Decimal
	Outstanding decimal.Decimal
	Pending     int
	Overdue     int
	Paid        int
}

type (
	Repository interface {
		// PaymentTotals aggregates the payments of periodID's financial states, or all payments when periodID is 0.
		PaymentTotals(ctx context.Context, periodID int) (PaymentTotals, error)
	}

	Service interface {
		Summary(ctx context.Context, periodID int) (Summary, error)
		Invalidate(ctx context.Context)
	}

	service struct {
		repo     Repository
		students student.Repository
		cache    core.Cache
		ttl      time.Duration
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, students student.Repository, cache core.Cache, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:     repo,
		students: students,
		cache:    cache,
		ttl:      conf.Redis.DashboardTTL,
		logger:   logger,
	}
}

func cacheKey(periodID int) string {
	return cachePrefix + "summary:" + strconv.Itoa(periodID)
}

// Summary serves the cached summary when there is one. Cache failures only get logged.
func (svc *service) Summary(ctx context.Context, periodID int) (Summary, error) {
	key := cacheKey(periodID)

	var sum Summary
	if svc.cache != nil {
		hit, err := svc.cache.Get(ctx, key, &sum)
		if err != nil {
			svc.logger.Warn("reading dashboard cache", err)
		} else if hit {
			return sum, nil
		}
	}

	sum, err := svc.compute(ctx, periodID)
	if err != nil {
		return Summary{}, err
	}

	if svc.cache != nil {
		if err := svc.cache.Set(ctx, key, sum, svc.ttl); err != nil {
			svc.logger.Warn("writing dashboard cache", err)
		}
	}
	return sum, nil
}

func (svc *service) compute(ctx context.Context, periodID int) (Summary, error) {
	counts, err := svc.students.CountStudentsByStatus(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting students")
	}
	totals, err := svc.repo.PaymentTotals(ctx, periodID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "aggregating payments")
	}

	sum := Summary{
		ActiveStudents:    counts[student.StatusActive],
		OnLeaveStudents:   counts[student.StatusOnLeave],
		GraduatedStudents: counts[student.StatusGraduated],
		TotalBilled:       totals.Billed,
		TotalCollected:    totals.Collected,
		TotalOutstanding:  totals.Outstanding,
		PendingPayments:   totals.Pending,
		OverduePayments:   totals.Overdue,
		PaidPayments:      totals.Paid,
		GeneratedAt:       time.Now().UTC(),
	}
	if periodID > 0 {
		sum.PeriodID = &periodID
	}
	return sum, nil
}

// Invalidate drops every cached summary.
func (svc *service) Invalidate(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		svc.logger.Warn("invalidating dashboard cache", err)
	}
}
