package exercise

import (
	"fmt"
	"strings"
	"time"

	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

// Draft is the author's input for a new exercise.
type Draft struct {
	Title       string
	Description string
	Type        string
	Subject     string
	MaxScore    *float64
	StartDate   *time.Time
	DueDate     *time.Time
	Questions   []model.Question
}

// Patch overwrites only the fields that are set. Questions is replaced as a
// whole when non-nil.
type Patch struct {
	Title                *string
	Description          *string
	Type                 *string
	Subject              *string
	MaxScore             *float64
	StartDate            *time.Time
	DueDate              *time.Time
	Status               *string
	Questions            *[]model.Question
	RemoveAttachmentURLs []string
}

func (p Patch) changesQuestionBank(current model.Exercise) bool {
	if p.Type != nil && model.ExerciseType(*p.Type) != current.Type {
		return true
	}
	return p.Questions != nil
}

func validateDraft(d Draft, now time.Time) (model.ExerciseType, []string) {
	var problems []string
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	kind, ok := model.ParseExerciseType(d.Type)
	if !ok {
		problems = append(problems, "type must be essay, multiple_choice or file_upload")
	}
	if d.DueDate == nil {
		problems = append(problems, "dueDate is required")
	} else if !d.DueDate.After(now) {
		problems = append(problems, "dueDate must be in the future")
	}
	if d.StartDate != nil && d.DueDate != nil && d.StartDate.After(*d.DueDate) {
		problems = append(problems, "startDate must not be after dueDate")
	}
	if d.MaxScore != nil && *d.MaxScore <= 0 {
		problems = append(problems, "maxScore must be positive")
	}
	if ok && kind == model.ExerciseMultipleChoice {
		problems = append(problems, validateQuestions(d.Questions)...)
	}
	return kind, problems
}

func validatePatch(p Patch, current model.Exercise, now time.Time) []string {
	var problems []string
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		problems = append(problems, "title must not be empty")
	}
	kind := current.Type
	if p.Type != nil {
		parsed, ok := model.ParseExerciseType(*p.Type)
		if !ok || *p.Type == "" {
			problems = append(problems, "type must be essay, multiple_choice or file_upload")
		} else {
			kind = parsed
		}
	}
	if p.Status != nil {
		if status, ok := model.ParseExerciseStatus(*p.Status); !ok || status == model.StatusGraded {
			problems = append(problems, "status must be open or closed")
		}
	}
	if p.MaxScore != nil && *p.MaxScore <= 0 {
		problems = append(problems, "maxScore must be positive")
	}
	start := current.StartDate
	if p.StartDate != nil {
		start = p.StartDate
	}
	due := current.DueDate
	if p.DueDate != nil {
		due = *p.DueDate
	}
	if start != nil && start.After(due) {
		problems = append(problems, "startDate must not be after dueDate")
	}
	if kind == model.ExerciseMultipleChoice {
		questions := current.Questions
		if p.Questions != nil {
			questions = *p.Questions
		}
		problems = append(problems, validateQuestions(questions)...)
	}
	return problems
}

func validateQuestions(questions []model.Question) []string {
	if len(questions) == 0 {
		return []string{"multiple_choice exercises need at least one question"}
	}
	var problems []string
	for i, q := range questions {
		label := fmt.Sprintf("question %d", i+1)
		if strings.TrimSpace(q.Text) == "" {
			problems = append(problems, label+": text is required")
		}
		if len(q.Options) < 2 {
			problems = append(problems, label+": at least two options are required")
		}
		if len(q.CorrectAnswerIndices) == 0 {
			problems = append(problems, label+": at least one correct answer is required")
		}
		for _, idx := range q.CorrectAnswerIndices {
			if idx < 0 || idx >= len(q.Options) {
				problems = append(problems, fmt.Sprintf("%s: correct answer %d is out of range", label, idx))
				break
			}
		}
		if q.Points < 0 {
			problems = append(problems, label+": points must be positive")
		}
	}
	return problems
}

// normalizeQuestions fills in the default weight so stored questions carry
// explicit points.
func normalizeQuestions(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.Points = model.QuestionPoints(q)
		if q.Options == nil {
			q.Options = []string{}
		}
		out[i] = q
	}
	return out
}

func dueDateError() error {
	return operations.Invalid(operations.ErrInvalidDueDate, "due date cannot move from the past to another past date")
}
