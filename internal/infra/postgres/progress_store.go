package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"progress-engine/internal/domain"
)

// ProgressStore persists completion records in Postgres.
//
// Complete is one upsert: the ON CONFLICT update is guarded by
// `NOT is_completed`, so the statement that writes the flip is also the
// one that answers whether this call performed it. Two concurrent passing
// attempts can never both observe a fresh completion.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) Complete(ctx context.Context, studentID, lessonID, courseID string, at time.Time) (domain.Progress, bool, error) {
	row := &progressRow{
		StudentID:   studentID,
		LessonID:    lessonID,
		CourseID:    courseID,
		Completed:   true,
		CompletedAt: at,
	}
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (student_id, lesson_id) DO UPDATE").
		Set("is_completed = TRUE").
		Set("completed_at = EXCLUDED.completed_at").
		Where("progress.is_completed = FALSE").
		Exec(ctx)
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("complete progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("complete progress: %w", err)
	}
	if affected > 0 {
		return row.toDomain(), true, nil
	}

	// Already completed: return the existing record unchanged.
	existing, ok, err := s.Get(ctx, studentID, lessonID)
	if err != nil {
		return domain.Progress{}, false, err
	}
	if !ok {
		// The row vanished between the upsert and the read; let the
		// caller's retry loop settle it.
		return domain.Progress{}, false, domain.ErrConflict
	}
	return existing, false, nil
}

func (s *ProgressStore) Get(ctx context.Context, studentID, lessonID string) (domain.Progress, bool, error) {
	row := new(progressRow)
	err := s.db.NewSelect().
		Model(row).
		Where("student_id = ?", studentID).
		Where("lesson_id = ?", lessonID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Progress{}, false, nil
	}
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("get progress: %w", err)
	}
	return row.toDomain(), true, nil
}
