package domain

import "time"

// QuestionType discriminates how a question is answered and graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// Choice reports whether answers to this question are option selections.
func (t QuestionType) Choice() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Option represents a possible answer for a choice question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Question models a single quiz question. Choice questions carry options
// with exactly one flagged correct; short-answer questions carry none and
// are never auto-graded.
type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Points  int          `json:"points"` // defaults to 1 if zero
	Options []Option     `json:"options,omitempty"`
}

// PointValue returns the question's point value with the default applied.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Quiz is an ordered list of questions attached to a lesson, with a
// passing threshold expressed as a percentage.
type Quiz struct {
	ID           string     `json:"id"`
	LessonID     string     `json:"lessonId"`
	Title        string     `json:"title"`
	Questions    []Question `json:"questions"`
	PassingScore int        `json:"passingScore"` // 0-100
}

// Lesson is the slice of the course directory the engine needs: the owning
// course and the point award for completing the lesson.
type Lesson struct {
	ID               string `json:"id"`
	CourseID         string `json:"courseId"`
	Title            string `json:"title"`
	CompletionPoints int    `json:"completionPoints"`
}

// AnswerRecord is one graded answer as persisted on an attempt.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"` // option ID for choice questions, raw text otherwise
	Correct    bool   `json:"correct"`
}

// QuizAttempt is one immutable submission record. Attempts are append-only;
// the learner's current standing for a quiz is the most recent attempt.
type QuizAttempt struct {
	ID            string         `json:"id"`
	QuizID        string         `json:"quizId"`
	StudentID     string         `json:"studentId"`
	RawScore      int            `json:"rawScore"`
	TotalPossible int            `json:"totalPossible"`
	Percentage    float64        `json:"percentage"`
	Passed        bool           `json:"passed"`
	PointsEarned  int            `json:"pointsEarned"`
	Answers       []AnswerRecord `json:"answers"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Progress is the per (student, lesson) completion record. At most one
// exists per pair; once completed it never resets.
type Progress struct {
	StudentID   string    `json:"studentId"`
	LessonID    string    `json:"lessonId"`
	CourseID    string    `json:"courseId"`
	Completed   bool      `json:"isCompleted"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// StatsDelta is one atomic adjustment to a learner's stats. All fields are
// applied together or not at all.
type StatsDelta struct {
	Points  int
	Lessons int
	Quizzes int
	Courses int
}

// Zero reports whether applying the delta would change nothing.
func (d StatsDelta) Zero() bool {
	return d.Points == 0 && d.Lessons == 0 && d.Quizzes == 0 && d.Courses == 0
}

// UserStats is the per-learner aggregate. CurrentLevel and LevelProgress
// are derived from TotalPoints via DeriveLevel and never advance
// independently.
type UserStats struct {
	StudentID        string    `json:"studentId"`
	TotalPoints      int       `json:"totalPoints"`
	CurrentLevel     int       `json:"currentLevel"`
	LevelProgress    int       `json:"levelProgress"`
	LessonsCompleted int       `json:"lessonsCompleted"`
	QuizzesCompleted int       `json:"quizzesCompleted"`
	CoursesEnrolled  int       `json:"coursesEnrolled"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// PointsPerLevel is the width of one level band.
const PointsPerLevel = 1000

// LevelForPoints is the authoritative level formula.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// DeriveLevel recomputes the derived level fields from TotalPoints.
func (s *UserStats) DeriveLevel() {
	s.CurrentLevel = LevelForPoints(s.TotalPoints)
	s.LevelProgress = s.TotalPoints % PointsPerLevel
	if s.LevelProgress < 0 {
		s.LevelProgress = 0
	}
}

// NewUserStats returns the zeroed default record for a learner.
func NewUserStats(studentID string) UserStats {
	s := UserStats{StudentID: studentID}
	s.DeriveLevel()
	return s
}

// Enrollment records course membership for a learner.
type Enrollment struct {
	StudentID  string    `json:"studentId"`
	CourseID   string    `json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// LeaderboardEntry is one ranked row. Ranks are 1-based, dense, assigned
// by output position; ties keep consecutive ranks.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	StudentID    string `json:"studentId"`
	TotalPoints  int    `json:"totalPoints"`
	CurrentLevel int    `json:"currentLevel"`
}

// Leaderboard is a read-only projection over the stats snapshot.
type Leaderboard struct {
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// EventKind classifies the notification events the engine emits.
type EventKind string

const (
	EventEnrollment     EventKind = "enrollment"
	EventQuizResult     EventKind = "quiz_result"
	EventLessonComplete EventKind = "lesson_complete"
	EventLevelUp        EventKind = "level_up"
	EventBadgeEarned    EventKind = "badge_earned"
)

// Event is the fire-and-forget description handed to the notifier.
type Event struct {
	Kind      EventKind `json:"kind"`
	StudentID string    `json:"studentId"`
	CourseID  string    `json:"courseId,omitempty"`
	Message   string    `json:"message,omitempty"`
	Points    int       `json:"points,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RequirementType is the stat a badge threshold applies to.
type RequirementType string

const (
	RequirePoints  RequirementType = "points"
	RequireLessons RequirementType = "lessons"
	RequireQuizzes RequirementType = "quizzes"
	RequireCourses RequirementType = "courses"
)

// Badge is a static gamification rule: earned once the named stat reaches
// the requirement value.
type Badge struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	RequirementType  RequirementType `json:"requirementType"`
	RequirementValue int             `json:"requirementValue"`
}

// MetBy reports whether the stats snapshot satisfies the badge requirement.
func (b Badge) MetBy(s UserStats) bool {
	switch b.RequirementType {
	case RequirePoints:
		return s.TotalPoints >= b.RequirementValue
	case RequireLessons:
		return s.LessonsCompleted >= b.RequirementValue
	case RequireQuizzes:
		return s.QuizzesCompleted >= b.RequirementValue
	case RequireCourses:
		return s.CoursesEnrolled >= b.RequirementValue
	}
	return false
}
