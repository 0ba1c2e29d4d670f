package redis

import (
	"context"
	"testing"
	"time"

	"progress-engine/internal/domain"
)

type countingLoader struct {
	quiz  domain.Quiz
	calls int
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	if quizID != l.quiz.ID {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return l.quiz, nil
}

func TestQuizCacheFillsAndServesFromRedis(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	loader := &countingLoader{quiz: domain.Quiz{
		ID:           "quiz-1",
		LessonID:     "lesson-1",
		PassingScore: 70,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.QuestionMultipleChoice,
				Options: []domain.Option{
					{ID: "o1", Correct: false},
					{ID: "o2", Correct: true},
				},
			},
		},
	}}
	cache := NewQuizCache(client, loader, 5*time.Minute)

	quiz, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.PassingScore != 70 {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}

	if n, err := client.Exists(ctx, "quiz:quiz-1:def").Result(); err != nil || n != 1 {
		t.Fatalf("expected cache key to be set, exists=%d err=%v", n, err)
	}

	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single loader call, got %d", loader.calls)
	}
}

func TestQuizCacheMissSurfacesNotFound(t *testing.T) {
	cache := NewQuizCache(newTestClient(t), &countingLoader{quiz: domain.Quiz{ID: "quiz-1"}}, time.Minute)
	if _, err := cache.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}
