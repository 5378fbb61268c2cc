package schedulersvc

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	logsvc "github.com/uzielB/backend-sistemagem-sub000/services/logger"
)

type markerFunc func(ctx context.Context, now time.Time) (int, error)

func (f markerFunc) MarkOverdue(ctx context.Context, now time.Time) (int, error) { return f(ctx, now) }

func TestScheduler_markOverdue(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)
	var buf bytes.Buffer
	logger := logsvc.NewStdLogger(log.New(&buf, "", 0), false)

	var calledWith time.Time
	s, err := New(core.NewTestConfig(), markerFunc(func(ctx context.Context, at time.Time) (int, error) {
		calledWith = at
		return 4, nil
	}), logger)
	require.NoError(t, err)
	s.nowFunc = func() time.Time { return now }

	s.markOverdue()
	assert.Equal(t, now, calledWith)
	assert.Contains(t, buf.String(), "4 payments marked as overdue")

	buf.Reset()
	s.marker = markerFunc(func(context.Context, time.Time) (int, error) { return 0, errors.New("db down") })
	s.markOverdue()
	assert.Contains(t, buf.String(), "ERROR: marking overdue payments: db down")
}

func TestNew_InvalidSpec(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Scheduler.OverdueSpec = "every now and then"
	_, err := New(conf, markerFunc(nil), logsvc.NewDiscardLogger())
	assert.Error(t, err)
}
