package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"progress-engine/internal/domain"
)

type progressRow struct {
	bun.BaseModel `bun:"table:progress"`

	StudentID   string    `bun:"student_id,pk"`
	LessonID    string    `bun:"lesson_id,pk"`
	CourseID    string    `bun:"course_id"`
	Completed   bool      `bun:"is_completed"`
	CompletedAt time.Time `bun:"completed_at,nullzero"`
}

func (r progressRow) toDomain() domain.Progress {
	return domain.Progress{
		StudentID:   r.StudentID,
		LessonID:    r.LessonID,
		CourseID:    r.CourseID,
		Completed:   r.Completed,
		CompletedAt: r.CompletedAt,
	}
}

type userStatsRow struct {
	bun.BaseModel `bun:"table:user_stats"`

	StudentID        string    `bun:"student_id,pk"`
	TotalPoints      int       `bun:"total_points"`
	CurrentLevel     int       `bun:"current_level"`
	LessonsCompleted int       `bun:"lessons_completed"`
	QuizzesCompleted int       `bun:"quizzes_completed"`
	CoursesEnrolled  int       `bun:"courses_enrolled"`
	UpdatedAt        time.Time `bun:"updated_at"`
}

func (r userStatsRow) toDomain() domain.UserStats {
	stats := domain.UserStats{
		StudentID:        r.StudentID,
		TotalPoints:      r.TotalPoints,
		LessonsCompleted: r.LessonsCompleted,
		QuizzesCompleted: r.QuizzesCompleted,
		CoursesEnrolled:  r.CoursesEnrolled,
		UpdatedAt:        r.UpdatedAt,
	}
	// Derived in Go as well: the stored current_level is kept in step by
	// the upsert, but points remain the source of truth.
	stats.DeriveLevel()
	return stats
}

type quizAttemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID            string                `bun:"id,pk"`
	QuizID        string                `bun:"quiz_id"`
	StudentID     string                `bun:"student_id"`
	RawScore      int                   `bun:"raw_score"`
	TotalPossible int                   `bun:"total_possible"`
	Percentage    float64               `bun:"percentage"`
	Passed        bool                  `bun:"passed"`
	PointsEarned  int                   `bun:"points_earned"`
	Answers       []domain.AnswerRecord `bun:"answers,type:jsonb"`
	CreatedAt     time.Time             `bun:"created_at"`
}

func (r quizAttemptRow) toDomain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:            r.ID,
		QuizID:        r.QuizID,
		StudentID:     r.StudentID,
		RawScore:      r.RawScore,
		TotalPossible: r.TotalPossible,
		Percentage:    r.Percentage,
		Passed:        r.Passed,
		PointsEarned:  r.PointsEarned,
		Answers:       r.Answers,
		CreatedAt:     r.CreatedAt,
	}
}

type enrollmentRow struct {
	bun.BaseModel `bun:"table:enrollments"`

	StudentID  string    `bun:"student_id,pk"`
	CourseID   string    `bun:"course_id,pk"`
	EnrolledAt time.Time `bun:"enrolled_at"`
}

func (r enrollmentRow) toDomain() domain.Enrollment {
	return domain.Enrollment{
		StudentID:  r.StudentID,
		CourseID:   r.CourseID,
		EnrolledAt: r.EnrolledAt,
	}
}
