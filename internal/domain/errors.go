package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz reference does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLessonNotFound indicates the lesson reference does not exist.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrCourseNotFound indicates the course reference does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrNotEnrolled is returned when a learner acts on a course they have
	// not enrolled in.
	ErrNotEnrolled = errors.New("learner not enrolled in course")
	// ErrValidation marks a malformed submission rejected before any state
	// mutation.
	ErrValidation = errors.New("invalid submission")
	// ErrInvalidQuiz indicates a quiz definition that cannot be graded
	// (e.g. a choice question without exactly one correct option).
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrConflict is a retryable concurrent-write conflict. The engine
	// retries a bounded number of times before surfacing it.
	ErrConflict = errors.New("concurrent write conflict")
)
