package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"progress-engine/internal/domain"
)

// AttemptStore persists the append-only quiz attempt audit trail.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Append(ctx context.Context, attempt domain.QuizAttempt) error {
	row := &quizAttemptRow{
		ID:            attempt.ID,
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		RawScore:      attempt.RawScore,
		TotalPossible: attempt.TotalPossible,
		Percentage:    attempt.Percentage,
		Passed:        attempt.Passed,
		PointsEarned:  attempt.PointsEarned,
		Answers:       attempt.Answers,
		CreatedAt:     attempt.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// Latest returns the learner's current standing for the quiz: most recent
// by creation time, id as a deterministic tie-break.
func (s *AttemptStore) Latest(ctx context.Context, studentID, quizID string) (domain.QuizAttempt, bool, error) {
	row := new(quizAttemptRow)
	err := s.db.NewSelect().
		Model(row).
		Where("student_id = ?", studentID).
		Where("quiz_id = ?", quizID).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizAttempt{}, false, nil
	}
	if err != nil {
		return domain.QuizAttempt{}, false, fmt.Errorf("latest attempt: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *AttemptStore) List(ctx context.Context, studentID, quizID string) ([]domain.QuizAttempt, error) {
	var rows []quizAttemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("student_id = ?", studentID).
		Where("quiz_id = ?", quizID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.QuizAttempt, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
