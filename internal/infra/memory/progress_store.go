package memory

import (
	"context"
	"sync"
	"time"

	"progress-engine/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore. The
// mutex makes Complete an atomic check-and-set: exactly one caller per
// (student, lesson) observes the completion transition.
type ProgressStore struct {
	mu      sync.RWMutex
	records map[progressKey]domain.Progress
}

type progressKey struct {
	studentID string
	lessonID  string
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{records: make(map[progressKey]domain.Progress)}
}

func (s *ProgressStore) Complete(_ context.Context, studentID, lessonID, courseID string, at time.Time) (domain.Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{studentID: studentID, lessonID: lessonID}
	if existing, ok := s.records[key]; ok && existing.Completed {
		return existing, false, nil
	}
	record := domain.Progress{
		StudentID:   studentID,
		LessonID:    lessonID,
		CourseID:    courseID,
		Completed:   true,
		CompletedAt: at,
	}
	s.records[key] = record
	return record, true, nil
}

func (s *ProgressStore) Get(_ context.Context, studentID, lessonID string) (domain.Progress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[progressKey{studentID: studentID, lessonID: lessonID}]
	return record, ok, nil
}

// ListByStudent returns the learner's completion records (any lesson).
func (s *ProgressStore) ListByStudent(_ context.Context, studentID string) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Progress
	for key, record := range s.records {
		if key.studentID == studentID {
			out = append(out, record)
		}
	}
	return out, nil
}
