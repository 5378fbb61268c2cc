package student

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

// Bounds of the 8-digit matrícula.
const (
	MaxMatriculaProgramID = 99
	MaxMatriculaSeq       = 9999
)

var ErrMatriculaExhausted = core.NewConflictError("no matrícula left: the sequence passed %d", MaxMatriculaSeq)

// FormatMatricula renders the student code: last two digits of the year, the program ID on two
// digits and the sequence number on four digits, e.g. 2025, 3, 8 -> "25030008".
// The code is 8 digits long only for programID <= MaxMatriculaProgramID and seq <= MaxMatriculaSeq;
// MatriculaGenerator never goes past those bounds.
func FormatMatricula(year, programID, seq int) string {
	return fmt.Sprintf("%02d%02d%04d", year%100, programID, seq)
}

// maxMatriculaCandidates bounds the walk forward over taken candidates.
const maxMatriculaCandidates = 1000

// MatriculaGenerator derives the next free matrícula from the student count.
// It must run inside the transaction that inserts the student: the repository lock
// serialises concurrent enrollments until that transaction ends.
type MatriculaGenerator struct {
	repo    Repository
	nowFunc func() time.Time
}

func NewMatriculaGenerator(repo Repository) *MatriculaGenerator {
	return &MatriculaGenerator{repo: repo, nowFunc: time.Now}
}

func (gen *MatriculaGenerator) Next(ctx context.Context, programID int) (string, error) {
	if programID < 1 || programID > MaxMatriculaProgramID {
		return "", core.NewValidationError(nil, core.FieldError{
			Field: "programaId",
			Error: fmt.Sprintf("program id must be between 1 and %d to fit the matrícula", MaxMatriculaProgramID),
		})
	}

	if err := gen.repo.LockMatriculaSequence(ctx); err != nil {
		return "", errors.Wrap(err, "locking matrícula sequence")
	}

	count, err := gen.repo.CountStudents(ctx)
	if err != nil {
		return "", errors.Wrap(err, "counting students")
	}

	year := gen.nowFunc().Year()
	last := min(count+maxMatriculaCandidates, MaxMatriculaSeq)
	for seq := count + 1; seq <= last; seq++ {
		candidate := FormatMatricula(year, programID, seq)
		taken, err := gen.repo.MatriculaExists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "checking matrícula")
		}
		if !taken {
			return candidate, nil
		}
	}
	if last == MaxMatriculaSeq {
		return "", ErrMatriculaExhausted
	}
	return "", errors.Errorf("no free matrícula after %d candidates", maxMatriculaCandidates)
}
