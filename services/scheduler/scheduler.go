package schedulersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

const jobTimeout = 4 * time.Minute

// OverdueMarker flags the payments whose due date passed.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	marker  OverdueMarker
	logger  core.Logger
	nowFunc func() time.Time
}

// New schedules the overdue sweep on conf.Scheduler.OverdueSpec. Nothing runs until Start.
func New(conf *core.Config, marker OverdueMarker, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		marker:  marker,
		logger:  logger,
		nowFunc: time.Now,
	}
	if _, err := s.cron.AddFunc(conf.Scheduler.OverdueSpec, s.markOverdue); err != nil {
		return nil, errors.Wrapf(err, "scheduling overdue sweep %q", conf.Scheduler.OverdueSpec)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler and waits for a running job, if any, until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) markOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.marker.MarkOverdue(ctx, s.nowFunc())
	if err != nil {
		s.logger.Error(fmt.Sprintf("marking overdue payments: %v", err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("%d payments marked as overdue", n))
}
