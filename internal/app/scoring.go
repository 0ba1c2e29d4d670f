package app

import (
	"fmt"

	"progress-engine/internal/domain"
)

// ScoreResult is the outcome of grading one submission. PointsEarned is
// zero unless the attempt passed.
type ScoreResult struct {
	RawScore      int
	TotalPossible int
	Percentage    float64
	Passed        bool
	PointsEarned  int
	Answers       []domain.AnswerRecord
}

// ValidateQuiz rejects quiz definitions that cannot be graded: choice
// questions must carry exactly one option flagged correct.
func ValidateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: quiz %s has no questions", domain.ErrInvalidQuiz, quiz.ID)
	}
	for _, q := range quiz.Questions {
		if !q.Type.Choice() {
			continue
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: question %s has %d correct options", domain.ErrInvalidQuiz, q.ID, correct)
		}
	}
	return nil
}

// ValidateSubmission rejects malformed answer maps before any state is
// touched: there must be at least one answer and every answered question
// must exist on the quiz.
func ValidateSubmission(quiz domain.Quiz, answers map[string]string) error {
	if len(answers) == 0 {
		return fmt.Errorf("%w: no answers submitted", domain.ErrValidation)
	}
	known := make(map[string]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		known[q.ID] = struct{}{}
	}
	for questionID := range answers {
		if _, ok := known[questionID]; !ok {
			return fmt.Errorf("%w: unknown question %s", domain.ErrValidation, questionID)
		}
	}
	return nil
}

// Score grades a submission against a quiz definition. Pure function: no
// I/O, deterministic.
//
// Unanswered questions are skipped: they contribute nothing to RawScore but
// still count in TotalPossible. Choice questions award their points when
// the chosen option is flagged correct. Short-answer questions have no
// automatic grading path and always score zero; the answer text is still
// recorded for the attempt's audit trail.
func Score(quiz domain.Quiz, answers map[string]string) ScoreResult {
	var result ScoreResult
	for _, q := range quiz.Questions {
		result.TotalPossible += q.PointValue()

		value, answered := answers[q.ID]
		if !answered {
			continue
		}

		correct := false
		if q.Type.Choice() {
			for _, opt := range q.Options {
				if opt.ID == value && opt.Correct {
					correct = true
					break
				}
			}
		}
		if correct {
			result.RawScore += q.PointValue()
		}
		result.Answers = append(result.Answers, domain.AnswerRecord{
			QuestionID: q.ID,
			Value:      value,
			Correct:    correct,
		})
	}

	if result.TotalPossible > 0 {
		result.Percentage = 100 * float64(result.RawScore) / float64(result.TotalPossible)
		result.Passed = result.Percentage >= float64(quiz.PassingScore)
	}
	if result.Passed {
		result.PointsEarned = result.RawScore
	}
	return result
}
