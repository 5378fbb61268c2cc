package student

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type matriculaRepoStub struct {
	Repository // only the sequence methods are used

	count    int
	taken    map[string]bool
	locked   bool
	countErr error
}

func (r *matriculaRepoStub) LockMatriculaSequence(context.Context) error {
	r.locked = true
	return nil
}

func (r *matriculaRepoStub) CountStudents(context.Context) (int, error) {
	return r.count, r.countErr
}

func (r *matriculaRepoStub) MatriculaExists(_ context.Context, m string) (bool, error) {
	return r.taken[m], nil
}

func TestFormatMatricula(t *testing.T) {
	tests := []struct {
		year, program, seq int
		want               string
	}{
		{year: 2025, program: 3, seq: 8, want: "25030008"},
		{year: 2024, program: 12, seq: 1, want: "24120001"},
		{year: 2030, program: 1, seq: 1234, want: "30011234"},
		{year: 2009, program: 7, seq: 45, want: "09070045"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMatricula(tt.year, tt.program, tt.seq))
		})
	}
}

func TestMatriculaGenerator_Next(t *testing.T) {
	fixedNow := func() time.Time { return time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC) }

	t.Run("seventh student in program 3", func(t *testing.T) {
		repo := &matriculaRepoStub{count: 7}
		gen := &MatriculaGenerator{repo: repo, nowFunc: fixedNow}

		got, err := gen.Next(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "25030008", got)
		assert.True(t, repo.locked)
	})

	t.Run("walks forward past taken candidates", func(t *testing.T) {
		repo := &matriculaRepoStub{count: 7, taken: map[string]bool{"25030008": true, "25030009": true}}
		gen := &MatriculaGenerator{repo: repo, nowFunc: fixedNow}

		got, err := gen.Next(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, "25030010", got)
	})

	t.Run("program id wider than two digits", func(t *testing.T) {
		repo := &matriculaRepoStub{count: 7}
		gen := &MatriculaGenerator{repo: repo, nowFunc: fixedNow}

		_, err := gen.Next(context.Background(), 100)
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "got %v", err)
		assert.Equal(t, "programaId", verr.Fields[0].Field)
		assert.False(t, repo.locked)
	})

	t.Run("last sequence number", func(t *testing.T) {
		repo := &matriculaRepoStub{count: 9998}
		gen := &MatriculaGenerator{repo: repo, nowFunc: fixedNow}

		got, err := gen.Next(context.Background(), 99)
		require.NoError(t, err)
		assert.Equal(t, "25999999", got)
		assert.Len(t, got, 8)
	})

	t.Run("sequence exhausted", func(t *testing.T) {
		repo := &matriculaRepoStub{count: 9998, taken: map[string]bool{"25039999": true}}
		gen := &MatriculaGenerator{repo: repo, nowFunc: fixedNow}

		_, err := gen.Next(context.Background(), 3)
		assert.Equal(t, ErrMatriculaExhausted, err)
		assert.True(t, core.IsConflict(err))

		repo.count = 9999
		_, err = gen.Next(context.Background(), 3)
		assert.Equal(t, ErrMatriculaExhausted, err)
	})

	t.Run("count error", func(t *testing.T) {
		repo := &matriculaRepoStub{countErr: errors.New("boom")}
		gen := &MatriculaGenerator{repo: repo, nowFunc: fixedNow}

		_, err := gen.Next(context.Background(), 3)
		assert.Error(t, err)
	})
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusActive, StatusOnLeave, true},
		{StatusOnLeave, StatusActive, true},
		{StatusActive, StatusGraduated, true},
		{StatusGraduated, StatusActive, false},
		{StatusGraduated, StatusOnLeave, false},
		{StatusOnLeave, StatusGraduated, false},
		{StatusActive, StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
