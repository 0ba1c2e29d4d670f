package memory

import (
	"context"
	"sync"
	"time"

	"progress-engine/internal/domain"
)

// EnrollmentStore is an in-memory implementation of app.EnrollmentStore
// with the (student, course) uniqueness guarantee held by the mutex.
type EnrollmentStore struct {
	mu          sync.RWMutex
	enrollments map[enrollmentKey]domain.Enrollment
}

type enrollmentKey struct {
	studentID string
	courseID  string
}

func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{enrollments: make(map[enrollmentKey]domain.Enrollment)}
}

func (s *EnrollmentStore) Enroll(_ context.Context, studentID, courseID string, at time.Time) (domain.Enrollment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := enrollmentKey{studentID: studentID, courseID: courseID}
	if existing, ok := s.enrollments[key]; ok {
		return existing, false, nil
	}
	record := domain.Enrollment{StudentID: studentID, CourseID: courseID, EnrolledAt: at}
	s.enrollments[key] = record
	return record, true, nil
}

func (s *EnrollmentStore) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.enrollments[enrollmentKey{studentID: studentID, courseID: courseID}]
	return ok, nil
}
