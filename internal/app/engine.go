package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"progress-engine/internal/domain"
)

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// LessonDirectory resolves lesson references to their owning course and
// completion award. Read-only from the engine's perspective.
type LessonDirectory interface {
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// ProgressStore holds the per (student, lesson) completion records.
//
// Complete must be an atomic check-and-set: the same operation that writes
// the completion answers whether it was the transition. It returns the
// record and true exactly once per (student, lesson) pair; every later call
// returns the existing record and false.
type ProgressStore interface {
	Complete(ctx context.Context, studentID, lessonID, courseID string, at time.Time) (domain.Progress, bool, error)
	Get(ctx context.Context, studentID, lessonID string) (domain.Progress, bool, error)
}

// StatsStore holds the per-learner aggregates.
//
// ApplyDelta must apply every field of the delta as a single atomic
// increment (no lost updates under concurrent deltas for the same learner,
// no observable partial application) and return the post-delta record with
// the level fields derived. A retryable conflict is reported as
// domain.ErrConflict.
type StatsStore interface {
	ApplyDelta(ctx context.Context, studentID string, delta domain.StatsDelta) (domain.UserStats, error)
	Get(ctx context.Context, studentID string) (domain.UserStats, bool, error)
	Snapshot(ctx context.Context) ([]domain.UserStats, error)
}

// AttemptStore is the append-only quiz attempt audit trail.
type AttemptStore interface {
	Append(ctx context.Context, attempt domain.QuizAttempt) error
	Latest(ctx context.Context, studentID, quizID string) (domain.QuizAttempt, bool, error)
	List(ctx context.Context, studentID, quizID string) ([]domain.QuizAttempt, error)
}

// EnrollmentStore records course membership. Enroll returns true only for
// the call that created the enrollment.
type EnrollmentStore interface {
	Enroll(ctx context.Context, studentID, courseID string, at time.Time) (domain.Enrollment, bool, error)
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

// Notifier delivers event descriptions to an external notification
// system. Fire-and-forget: failures are logged, never surfaced.
type Notifier interface {
	Publish(ctx context.Context, event domain.Event) error
}

// LeaderboardFeed receives a fresh leaderboard snapshot after stats
// changes (live subscribers, not a persisted ranking).
type LeaderboardFeed interface {
	Broadcast(lb domain.Leaderboard)
}

const (
	defaultRetryAttempts    = 3
	defaultLeaderboardLimit = 50
)

// EngineParams wires the engine's collaborators. Notifier, Feed and Badges
// are optional.
type EngineParams struct {
	Quizzes     QuizRepository
	Lessons     LessonDirectory
	Progress    ProgressStore
	Stats       StatsStore
	Attempts    AttemptStore
	Enrollments EnrollmentStore

	Notifier Notifier
	Feed     LeaderboardFeed
	Badges   []domain.Badge

	RetryAttempts    int
	LeaderboardLimit int
}

// Engine is the progress and gamification core: it scores submissions,
// flips lesson completion exactly once, applies point deltas atomically
// and projects the leaderboard.
type Engine struct {
	quizzes     QuizRepository
	lessons     LessonDirectory
	progress    ProgressStore
	stats       StatsStore
	attempts    AttemptStore
	enrollments EnrollmentStore
	notifier    Notifier
	feed        LeaderboardFeed
	badges      []domain.Badge
	retries     int
	lbLimit     int

	now   func() time.Time
	newID func() string
}

func NewEngine(p EngineParams) *Engine {
	retries := p.RetryAttempts
	if retries <= 0 {
		retries = defaultRetryAttempts
	}
	lbLimit := p.LeaderboardLimit
	if lbLimit <= 0 {
		lbLimit = defaultLeaderboardLimit
	}
	return &Engine{
		quizzes:     p.Quizzes,
		lessons:     p.Lessons,
		progress:    p.Progress,
		stats:       p.Stats,
		attempts:    p.Attempts,
		enrollments: p.Enrollments,
		notifier:    p.Notifier,
		feed:        p.Feed,
		badges:      p.Badges,
		retries:     retries,
		lbLimit:     lbLimit,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// AttemptResult reports the score together with the completion side
// effect, so a failed award is never mistaken for a passed-and-awarded
// quiz.
type AttemptResult struct {
	Attempt           domain.QuizAttempt `json:"attempt"`
	Completion        *domain.Progress   `json:"completion,omitempty"`
	WasNewlyCompleted bool               `json:"wasNewlyCompleted"`
	Stats             *domain.UserStats  `json:"stats,omitempty"`
}

// SubmitQuizAttempt grades a submission, records it as an immutable
// attempt, and on a pass drives the completion path: the lesson flips to
// completed at most once, and only that first flip applies the point
// delta (quiz points earned plus the lesson's completion award, lesson
// and quiz counters each +1).
//
// If the attempt passed but the award could not be applied, the returned
// result still carries the score and the error reports the pending side
// effect; the whole call is safe to retry.
func (e *Engine) SubmitQuizAttempt(ctx context.Context, studentID, quizID string, answers map[string]string) (AttemptResult, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AttemptResult{}, err
	}
	if err := ValidateQuiz(quiz); err != nil {
		return AttemptResult{}, err
	}
	if err := ValidateSubmission(quiz, answers); err != nil {
		return AttemptResult{}, err
	}
	lesson, err := e.lessons.GetLesson(ctx, quiz.LessonID)
	if err != nil {
		return AttemptResult{}, err
	}
	if err := e.requireEnrollment(ctx, studentID, lesson.CourseID); err != nil {
		return AttemptResult{}, err
	}

	score := Score(quiz, answers)
	attempt := domain.QuizAttempt{
		ID:            e.newID(),
		QuizID:        quiz.ID,
		StudentID:     studentID,
		RawScore:      score.RawScore,
		TotalPossible: score.TotalPossible,
		Percentage:    score.Percentage,
		Passed:        score.Passed,
		PointsEarned:  score.PointsEarned,
		Answers:       score.Answers,
		CreatedAt:     e.now(),
	}
	if err := e.attempts.Append(ctx, attempt); err != nil {
		return AttemptResult{}, fmt.Errorf("record attempt: %w", err)
	}

	result := AttemptResult{Attempt: attempt}
	e.publish(ctx, domain.Event{
		Kind:      domain.EventQuizResult,
		StudentID: studentID,
		CourseID:  lesson.CourseID,
		Message:   fmt.Sprintf("quiz %s: %.0f%%", quiz.ID, score.Percentage),
		Points:    score.PointsEarned,
		CreatedAt: attempt.CreatedAt,
	})

	if !score.Passed {
		return result, nil
	}

	completion, wasNew, stats, err := e.completeLesson(ctx, studentID, lesson, domain.StatsDelta{
		Points:  score.PointsEarned,
		Quizzes: 1,
	})
	if err != nil {
		// The score stands; the award is pending and the call may be
		// retried without re-awarding.
		return result, fmt.Errorf("apply completion award: %w", err)
	}
	result.Completion = &completion
	result.WasNewlyCompleted = wasNew
	result.Stats = stats
	return result, nil
}

// MarkLessonComplete flips the lesson to completed for the learner.
// Idempotent: the first call returns true and awards the lesson's
// completion points; every later call returns the existing record, false,
// and changes nothing.
func (e *Engine) MarkLessonComplete(ctx context.Context, studentID, lessonID string) (domain.Progress, bool, error) {
	lesson, err := e.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.Progress{}, false, err
	}
	if err := e.requireEnrollment(ctx, studentID, lesson.CourseID); err != nil {
		return domain.Progress{}, false, err
	}
	completion, wasNew, _, err := e.completeLesson(ctx, studentID, lesson, domain.StatsDelta{})
	return completion, wasNew, err
}

// completeLesson performs the flip-then-award pair. The extra delta (quiz
// points, quiz counter) is merged with the lesson award into one atomic
// delta, applied only when this call performed the completion transition.
func (e *Engine) completeLesson(ctx context.Context, studentID string, lesson domain.Lesson, extra domain.StatsDelta) (domain.Progress, bool, *domain.UserStats, error) {
	var (
		completion domain.Progress
		wasNew     bool
	)
	err := e.withRetry(func() error {
		var err error
		completion, wasNew, err = e.progress.Complete(ctx, studentID, lesson.ID, lesson.CourseID, e.now())
		return err
	})
	if err != nil {
		return domain.Progress{}, false, nil, fmt.Errorf("complete lesson %s: %w", lesson.ID, err)
	}
	if !wasNew {
		return completion, false, nil, nil
	}

	delta := domain.StatsDelta{
		Points:  extra.Points + lesson.CompletionPoints,
		Lessons: 1,
		Quizzes: extra.Quizzes,
		Courses: extra.Courses,
	}
	stats, err := e.applyDelta(ctx, studentID, delta)
	if err != nil {
		return completion, true, nil, err
	}

	e.publish(ctx, domain.Event{
		Kind:      domain.EventLessonComplete,
		StudentID: studentID,
		CourseID:  lesson.CourseID,
		Message:   fmt.Sprintf("completed lesson %s", lesson.ID),
		Points:    delta.Points,
		CreatedAt: completion.CompletedAt,
	})
	e.emitThresholdEvents(ctx, stats, delta)
	e.broadcast(ctx)
	return completion, true, &stats, nil
}

// Enroll records course membership. The first call counts the course
// toward the learner's stats; duplicates return the existing enrollment
// unchanged.
func (e *Engine) Enroll(ctx context.Context, studentID, courseID string) (domain.Enrollment, bool, error) {
	enrollment, created, err := e.enrollments.Enroll(ctx, studentID, courseID, e.now())
	if err != nil {
		return domain.Enrollment{}, false, err
	}
	if !created {
		return enrollment, false, nil
	}
	if _, err := e.applyDeltaNotified(ctx, studentID, domain.StatsDelta{Courses: 1}); err != nil {
		return enrollment, true, fmt.Errorf("record enrollment: %w", err)
	}
	e.publish(ctx, domain.Event{
		Kind:      domain.EventEnrollment,
		StudentID: studentID,
		CourseID:  courseID,
		CreatedAt: enrollment.EnrolledAt,
	})
	return enrollment, true, nil
}

// RecordQuizPass applies a quiz-pass delta directly. The caller is
// responsible for the exactly-once gate; the aggregator does not
// deduplicate.
func (e *Engine) RecordQuizPass(ctx context.Context, studentID string, pointsEarned int) (domain.UserStats, error) {
	return e.applyDeltaNotified(ctx, studentID, domain.StatsDelta{Points: pointsEarned, Quizzes: 1})
}

// RecordLessonCompletion applies a lesson-completion delta directly.
func (e *Engine) RecordLessonCompletion(ctx context.Context, studentID string, points int) (domain.UserStats, error) {
	return e.applyDeltaNotified(ctx, studentID, domain.StatsDelta{Points: points, Lessons: 1})
}

// RecordEnrollment applies an enrollment counter delta directly.
func (e *Engine) RecordEnrollment(ctx context.Context, studentID string) (domain.UserStats, error) {
	return e.applyDeltaNotified(ctx, studentID, domain.StatsDelta{Courses: 1})
}

// GetStats returns the learner's aggregate, or zeroed defaults when the
// learner has no record yet.
func (e *Engine) GetStats(ctx context.Context, studentID string) (domain.UserStats, error) {
	stats, ok, err := e.stats.Get(ctx, studentID)
	if err != nil {
		return domain.UserStats{}, err
	}
	if !ok {
		return domain.NewUserStats(studentID), nil
	}
	return stats, nil
}

// GetLeaderboard ranks the current stats snapshot. Recomputed on demand,
// never persisted; may observe a slightly stale snapshot under concurrent
// writes.
func (e *Engine) GetLeaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	snapshot, err := e.stats.Snapshot(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if limit <= 0 {
		limit = e.lbLimit
	}
	return Rank(snapshot, limit, e.now()), nil
}

// LatestAttempt returns the learner's current standing for a quiz: the
// most recent attempt by creation time, not the best one.
func (e *Engine) LatestAttempt(ctx context.Context, studentID, quizID string) (domain.QuizAttempt, bool, error) {
	return e.attempts.Latest(ctx, studentID, quizID)
}

// ListAttempts returns the learner's full attempt trail for a quiz,
// oldest first.
func (e *Engine) ListAttempts(ctx context.Context, studentID, quizID string) ([]domain.QuizAttempt, error) {
	return e.attempts.List(ctx, studentID, quizID)
}

// HasPassedQuiz derives pass standing from the latest attempt.
func (e *Engine) HasPassedQuiz(ctx context.Context, studentID, quizID string) (bool, error) {
	attempt, ok, err := e.attempts.Latest(ctx, studentID, quizID)
	if err != nil || !ok {
		return false, err
	}
	return attempt.Passed, nil
}

func (e *Engine) requireEnrollment(ctx context.Context, studentID, courseID string) error {
	enrolled, err := e.enrollments.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return domain.ErrNotEnrolled
	}
	return nil
}

// applyDeltaNotified applies the delta and publishes any level or badge
// thresholds it crossed.
func (e *Engine) applyDeltaNotified(ctx context.Context, studentID string, delta domain.StatsDelta) (domain.UserStats, error) {
	stats, err := e.applyDelta(ctx, studentID, delta)
	if err != nil {
		return domain.UserStats{}, err
	}
	e.emitThresholdEvents(ctx, stats, delta)
	return stats, nil
}

func (e *Engine) applyDelta(ctx context.Context, studentID string, delta domain.StatsDelta) (domain.UserStats, error) {
	var stats domain.UserStats
	err := e.withRetry(func() error {
		var err error
		stats, err = e.stats.ApplyDelta(ctx, studentID, delta)
		return err
	})
	if err != nil {
		return domain.UserStats{}, err
	}
	return stats, nil
}

// withRetry re-runs fn on retryable conflicts, a bounded number of times.
func (e *Engine) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < e.retries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return err
}

// emitThresholdEvents publishes level-up and badge events crossed by the
// delta. The pre-delta snapshot is reconstructed from the atomic result,
// so a concurrent delta can never make two calls claim the same
// threshold.
func (e *Engine) emitThresholdEvents(ctx context.Context, after domain.UserStats, delta domain.StatsDelta) {
	before := after
	before.TotalPoints -= delta.Points
	before.LessonsCompleted -= delta.Lessons
	before.QuizzesCompleted -= delta.Quizzes
	before.CoursesEnrolled -= delta.Courses
	before.DeriveLevel()

	if after.CurrentLevel > before.CurrentLevel {
		e.publish(ctx, domain.Event{
			Kind:      domain.EventLevelUp,
			StudentID: after.StudentID,
			Message:   fmt.Sprintf("reached level %d", after.CurrentLevel),
			Points:    after.TotalPoints,
			CreatedAt: e.now(),
		})
	}
	for _, badge := range e.badges {
		if badge.MetBy(after) && !badge.MetBy(before) {
			e.publish(ctx, domain.Event{
				Kind:      domain.EventBadgeEarned,
				StudentID: after.StudentID,
				Message:   badge.Name,
				CreatedAt: e.now(),
			})
		}
	}
}

func (e *Engine) publish(ctx context.Context, event domain.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(ctx, event); err != nil {
		log.Printf("publish %s event for %s: %v", event.Kind, event.StudentID, err)
	}
}

func (e *Engine) broadcast(ctx context.Context) {
	if e.feed == nil {
		return
	}
	lb, err := e.GetLeaderboard(ctx, e.lbLimit)
	if err != nil {
		log.Printf("leaderboard broadcast: %v", err)
		return
	}
	e.feed.Broadcast(lb)
}
