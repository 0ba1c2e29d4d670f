package memory

import (
	"context"
	"sync"
	"time"

	"progress-engine/internal/domain"
)

// StatsStore is an in-memory implementation of app.StatsStore. Deltas are
// applied under the mutex, so concurrent increments for the same learner
// never lose updates and level derivation always matches the stored
// points.
type StatsStore struct {
	mu    sync.RWMutex
	stats map[string]domain.UserStats
	clock func() time.Time
}

func NewStatsStore() *StatsStore {
	return &StatsStore{
		stats: make(map[string]domain.UserStats),
		clock: time.Now,
	}
}

func (s *StatsStore) ApplyDelta(_ context.Context, studentID string, delta domain.StatsDelta) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.stats[studentID]
	if !ok {
		record = domain.NewUserStats(studentID)
	}
	record.TotalPoints += delta.Points
	record.LessonsCompleted += delta.Lessons
	record.QuizzesCompleted += delta.Quizzes
	record.CoursesEnrolled += delta.Courses
	record.UpdatedAt = s.clock()
	record.DeriveLevel()
	s.stats[studentID] = record
	return record, nil
}

func (s *StatsStore) Get(_ context.Context, studentID string) (domain.UserStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.stats[studentID]
	return record, ok, nil
}

func (s *StatsStore) Snapshot(_ context.Context) ([]domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserStats, 0, len(s.stats))
	for _, record := range s.stats {
		out = append(out, record)
	}
	return out, nil
}
