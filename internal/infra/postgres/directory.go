package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"progress-engine/internal/domain"
)

// Directory reads quiz and lesson definitions from Postgres. Quizzes are
// stored as JSONB documents; lessons as plain rows carrying the course
// mapping and the completion award. Read-only: the authoring flow owns
// writes to these tables.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := d.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

func (d *Directory) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	lesson := domain.Lesson{ID: lessonID}
	err := d.pool.QueryRow(ctx,
		`SELECT course_id, title, completion_points FROM lessons WHERE id=$1`, lessonID,
	).Scan(&lesson.CourseID, &lesson.Title, &lesson.CompletionPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	return lesson, nil
}
