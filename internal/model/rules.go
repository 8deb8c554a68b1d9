package model

import (
	"math"
	"time"
)

const (
	DefaultMaxScore       = 10
	DefaultQuestionPoints = 1
)

// QuestionPoints returns the weight of q, defaulting to one point.
func QuestionPoints(q Question) float64 {
	if q.Points > 0 {
		return q.Points
	}
	return DefaultQuestionPoints
}

// DeriveMaxScore picks the exercise max score: the explicit value when
// given, the sum of question points for multiple choice, otherwise 10.
func DeriveMaxScore(explicit *float64, exerciseType ExerciseType, questions []Question) float64 {
	if explicit != nil {
		return *explicit
	}
	if exerciseType == ExerciseMultipleChoice && len(questions) > 0 {
		total := 0.0
		for _, q := range questions {
			total += QuestionPoints(q)
		}
		return total
	}
	return DefaultMaxScore
}

// DueDateChangeAllowed rejects a due date change only when both the current
// and the requested due date are already in the past.
func DueDateChangeAllowed(current, requested, now time.Time) bool {
	return !(current.Before(now) && requested.Before(now))
}

// AnswerProblem describes why a multiple choice answer sheet is unusable.
type AnswerProblem int

const (
	AnswersOK AnswerProblem = iota
	AnswersCountMismatch
	AnswersInvalidIndex
)

func CheckAnswers(questions []Question, answers []int) (AnswerProblem, int) {
	if len(answers) != len(questions) {
		return AnswersCountMismatch, -1
	}
	for i, answer := range answers {
		if answer < 0 || answer >= len(questions[i].Options) {
			return AnswersInvalidIndex, i
		}
	}
	return AnswersOK, -1
}

// ScoreAnswers auto-grades a multiple choice sheet. The earned ratio is
// computed before scaling so a perfect sheet yields exactly maxScore.
func ScoreAnswers(questions []Question, answers []int, maxScore float64) float64 {
	total := 0.0
	earned := 0.0
	for i, q := range questions {
		points := QuestionPoints(q)
		total += points
		if i < len(answers) && containsInt(q.CorrectAnswerIndices, answers[i]) {
			earned += points
		}
	}
	if total == 0 {
		return 0
	}
	if earned == total {
		return maxScore
	}
	return math.Min(maxScore, maxScore*(earned/total))
}

// StatusAfterGrading recomputes the exercise status from its submissions.
// A closed exercise stays closed.
func StatusAfterGrading(current ExerciseStatus, submissions []Submission) ExerciseStatus {
	if current == StatusClosed {
		return current
	}
	if len(submissions) > 0 && CountGraded(submissions) == len(submissions) {
		return StatusGraded
	}
	return StatusOpen
}

func CountGraded(submissions []Submission) int {
	graded := 0
	for _, s := range submissions {
		if s.IsGraded() {
			graded++
		}
	}
	return graded
}

type GradingStatus string

const (
	FullyGraded     GradingStatus = "fully_graded"
	PartiallyGraded GradingStatus = "partially_graded"
	Ungraded        GradingStatus = "ungraded"
)

func GradingStatusOf(submissionCount, gradedCount int) GradingStatus {
	switch {
	case gradedCount == 0:
		return Ungraded
	case gradedCount == submissionCount:
		return FullyGraded
	default:
		return PartiallyGraded
	}
}

// GradingProgress is the graded share of submissions in percent.
func GradingProgress(submissionCount, gradedCount int) float64 {
	if submissionCount == 0 {
		return 0
	}
	return Round2(float64(gradedCount) / float64(submissionCount) * 100)
}

// DaysUntil counts whole days left until due, rounding up. Past dates give
// a negative or zero count.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func containsInt(values []int, target int) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
