package memory

import (
	"context"
	"sync"

	"progress-engine/internal/domain"
)

// AttemptStore is an in-memory, append-only implementation of
// app.AttemptStore.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey][]domain.QuizAttempt
}

type attemptKey struct {
	studentID string
	quizID    string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[attemptKey][]domain.QuizAttempt)}
}

func (s *AttemptStore) Append(_ context.Context, attempt domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{studentID: attempt.StudentID, quizID: attempt.QuizID}
	s.attempts[key] = append(s.attempts[key], attempt)
	return nil
}

// Latest returns the most recent attempt by creation time. Ties fall to
// the later append, so standing stays deterministic within one instant.
func (s *AttemptStore) Latest(_ context.Context, studentID, quizID string) (domain.QuizAttempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.attempts[attemptKey{studentID: studentID, quizID: quizID}]
	if len(list) == 0 {
		return domain.QuizAttempt{}, false, nil
	}
	latest := list[0]
	for _, attempt := range list[1:] {
		if !attempt.CreatedAt.Before(latest.CreatedAt) {
			latest = attempt
		}
	}
	return latest, true, nil
}

func (s *AttemptStore) List(_ context.Context, studentID, quizID string) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.attempts[attemptKey{studentID: studentID, quizID: quizID}]
	out := make([]domain.QuizAttempt, len(list))
	copy(out, list)
	return out, nil
}
