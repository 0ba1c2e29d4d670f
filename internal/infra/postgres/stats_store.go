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

// StatsStore persists learner aggregates in Postgres. ApplyDelta is a
// single upsert whose SET expressions add the delta server-side and
// recompute current_level from the post-delta points, so concurrent
// deltas for the same learner serialize on the row without a
// read-modify-write window.
type StatsStore struct {
	db    *bun.DB
	clock func() time.Time
}

func NewStatsStore(db *bun.DB) *StatsStore {
	return &StatsStore{db: db, clock: time.Now}
}

func (s *StatsStore) ApplyDelta(ctx context.Context, studentID string, delta domain.StatsDelta) (domain.UserStats, error) {
	row := &userStatsRow{
		StudentID:        studentID,
		TotalPoints:      delta.Points,
		CurrentLevel:     domain.LevelForPoints(delta.Points),
		LessonsCompleted: delta.Lessons,
		QuizzesCompleted: delta.Quizzes,
		CoursesEnrolled:  delta.Courses,
		UpdatedAt:        s.clock(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (student_id) DO UPDATE").
		Set("total_points = user_stats.total_points + EXCLUDED.total_points").
		Set(fmt.Sprintf("current_level = (user_stats.total_points + EXCLUDED.total_points) / %d + 1", domain.PointsPerLevel)).
		Set("lessons_completed = user_stats.lessons_completed + EXCLUDED.lessons_completed").
		Set("quizzes_completed = user_stats.quizzes_completed + EXCLUDED.quizzes_completed").
		Set("courses_enrolled = user_stats.courses_enrolled + EXCLUDED.courses_enrolled").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("apply stats delta: %w", err)
	}
	return row.toDomain(), nil
}

func (s *StatsStore) Get(ctx context.Context, studentID string) (domain.UserStats, bool, error) {
	row := new(userStatsRow)
	err := s.db.NewSelect().
		Model(row).
		Where("student_id = ?", studentID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserStats{}, false, nil
	}
	if err != nil {
		return domain.UserStats{}, false, fmt.Errorf("get stats: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *StatsStore) Snapshot(ctx context.Context) ([]domain.UserStats, error) {
	var rows []userStatsRow
	err := s.db.NewSelect().
		Model(&rows).
		Order("total_points DESC", "student_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot stats: %w", err)
	}
	out := make([]domain.UserStats, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
