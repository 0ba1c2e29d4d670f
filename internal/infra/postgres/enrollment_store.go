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

// EnrollmentStore persists course membership, unique per
// (student, course). Enroll reports creation from the insert itself
// (ON CONFLICT DO NOTHING), never from a pre-check.
type EnrollmentStore struct {
	db *bun.DB
}

func NewEnrollmentStore(db *bun.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

func (s *EnrollmentStore) Enroll(ctx context.Context, studentID, courseID string, at time.Time) (domain.Enrollment, bool, error) {
	row := &enrollmentRow{StudentID: studentID, CourseID: courseID, EnrolledAt: at}
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (student_id, course_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Enrollment{}, false, fmt.Errorf("enroll: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Enrollment{}, false, fmt.Errorf("enroll: %w", err)
	}
	if affected > 0 {
		return row.toDomain(), true, nil
	}

	existing := new(enrollmentRow)
	err = s.db.NewSelect().
		Model(existing).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		Scan(ctx)
	if err != nil {
		return domain.Enrollment{}, false, fmt.Errorf("load enrollment: %w", err)
	}
	return existing.toDomain(), false, nil
}

func (s *EnrollmentStore) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*enrollmentRow)(nil)).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		Exists(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}
