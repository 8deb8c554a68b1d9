package exercise

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/metrics"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/storage"
)

type Answer struct {
	Content string
	Answers []int
}

type GradeInput struct {
	Grade    *float64
	Feedback *string
}

// Submit records the one and only submission of a student for an exercise.
// Multiple choice sheets are graded on the spot.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, classID, exerciseID string, answer Answer, files []storage.File) (created model.Submission, err error) {
	defer func() { metrics.Observe("exercise", "submit", err) }()
	if !actor.Can(auth.CapExerciseSubmit) {
		return model.Submission{}, operations.Forbidden(operations.ErrForbidden)
	}
	if len(files) > MaxSubmissionFiles {
		return model.Submission{}, operations.Invalid(operations.ErrTooManyFiles, "at most 3 files")
	}
	if _, err := s.store.GetClass(ctx, classID); err != nil {
		return model.Submission{}, err
	}
	if err := s.requireEnrolled(ctx, classID, actor.ProfileID); err != nil {
		return model.Submission{}, err
	}
	exercise, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return model.Submission{}, err
	}
	if exercise.ClassID != classID {
		return model.Submission{}, operations.NotFound(operations.ErrExerciseNotFound)
	}
	now := s.now().UTC()
	if err := checkOpen(exercise, now); err != nil {
		return model.Submission{}, err
	}
	if _, found, err := s.store.FindStudentSubmission(ctx, exerciseID, actor.ProfileID); err != nil {
		return model.Submission{}, err
	} else if found {
		return model.Submission{}, operations.Conflict(operations.ErrAlreadySubmitted)
	}
	if err := checkAnswer(exercise, answer, len(files)); err != nil {
		return model.Submission{}, err
	}

	uploaded, err := s.uploads.UploadAll(ctx, storage.SubmissionPrefix(classID, exerciseID, actor.ProfileID), files)
	if err != nil {
		return model.Submission{}, err
	}

	submission := model.Submission{
		ID:          uuid.NewString(),
		ExerciseID:  exerciseID,
		StudentID:   actor.ProfileID,
		SubmittedAt: now,
		Files:       uploaded,
	}
	if len(uploaded) > 0 {
		submission.FileURL = uploaded[0].FileURL
	}

	err = s.store.WithExerciseLock(ctx, exerciseID, func(locked model.Exercise, tx Tx) error {
		// The sheet is checked and scored against the locked row; the
		// questions may have changed since the first read.
		if err := checkOpen(locked, now); err != nil {
			return err
		}
		if err := checkAnswer(locked, answer, len(files)); err != nil {
			return err
		}
		switch locked.Type {
		case model.ExerciseMultipleChoice:
			grade := model.ScoreAnswers(locked.Questions, answer.Answers, locked.MaxScore)
			submission.Answers = answer.Answers
			submission.Grade = &grade
			submission.GradedAt = &now
		default:
			submission.Content = strings.TrimSpace(answer.Content)
		}
		inserted, err := tx.InsertSubmission(ctx, submission)
		if err != nil {
			return err
		}
		if _, err := s.refreshStatus(ctx, tx, locked, now); err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		s.uploads.Abandon(ctx, "submit", uploaded)
		return model.Submission{}, err
	}
	return created, nil
}

// Grade sets the grade and feedback of one submission and moves the
// exercise to graded once every submission carries a grade.
func (s *Service) Grade(ctx context.Context, actor auth.Actor, classID, exerciseID, submissionID string, in GradeInput) (graded model.Submission, status model.ExerciseStatus, err error) {
	defer func() { metrics.Observe("exercise", "grade", err) }()
	if !actor.Can(auth.CapExerciseAuthor) {
		return model.Submission{}, "", operations.Forbidden(operations.ErrForbidden)
	}
	if in.Grade == nil && in.Feedback == nil {
		return model.Submission{}, "", operations.InvalidFields([]string{"grade or feedback is required"})
	}
	now := s.now().UTC()
	err = s.store.WithExerciseLock(ctx, exerciseID, func(exercise model.Exercise, tx Tx) error {
		if exercise.ClassID != classID {
			return operations.NotFound(operations.ErrExerciseNotFound)
		}
		if !actor.Owns(exercise.CreatedBy) {
			return operations.Forbidden(operations.ErrForbidden)
		}
		if in.Grade != nil && (*in.Grade < 0 || *in.Grade > exercise.MaxScore) {
			return operations.Invalid(operations.ErrInvalidGrade, fmt.Sprintf("grade must be between 0 and %g", exercise.MaxScore))
		}
		submission, err := tx.FindSubmission(ctx, exerciseID, submissionID)
		if err != nil {
			return err
		}
		if in.Grade != nil {
			value := *in.Grade
			submission.Grade = &value
			submission.GradedAt = &now
		}
		if in.Feedback != nil {
			submission.Feedback = *in.Feedback
		}
		if err := tx.UpdateSubmission(ctx, submission); err != nil {
			return err
		}
		status, err = s.refreshStatus(ctx, tx, exercise, now)
		if err != nil {
			return err
		}
		graded = submission
		return nil
	})
	if err != nil {
		return model.Submission{}, "", err
	}
	return graded, status, nil
}

func (s *Service) refreshStatus(ctx context.Context, tx Tx, exercise model.Exercise, now time.Time) (model.ExerciseStatus, error) {
	submissions, err := tx.ListSubmissions(ctx, exercise.ID)
	if err != nil {
		return "", err
	}
	next := model.StatusAfterGrading(exercise.Status, submissions)
	if next == exercise.Status {
		return next, nil
	}
	exercise.Status = next
	exercise.UpdatedAt = now
	return next, tx.UpdateExercise(ctx, exercise)
}

func (s *Service) requireEnrolled(ctx context.Context, classID, profileID string) error {
	membership, ok, err := s.store.GetMembership(ctx, classID, profileID)
	if err != nil {
		return err
	}
	if !ok || membership.Status != model.MembershipApproved {
		return operations.Forbidden(operations.ErrNotAMember)
	}
	return nil
}

func checkOpen(exercise model.Exercise, now time.Time) error {
	if exercise.Status == model.StatusClosed {
		return operations.Conflict(operations.ErrExerciseClosed)
	}
	if exercise.IsOverdue(now) {
		return operations.Forbidden(operations.ErrPastDue)
	}
	return nil
}

func checkAnswer(exercise model.Exercise, answer Answer, fileCount int) error {
	switch exercise.Type {
	case model.ExerciseEssay:
		if strings.TrimSpace(answer.Content) == "" && fileCount == 0 {
			return operations.Invalid(operations.ErrMissingContent, "essay submissions need content or a file")
		}
	case model.ExerciseFileUpload:
		if fileCount == 0 {
			return operations.Invalid(operations.ErrMissingFile, "file upload submissions need at least one file")
		}
	case model.ExerciseMultipleChoice:
		problem, idx := model.CheckAnswers(exercise.Questions, answer.Answers)
		switch problem {
		case model.AnswersCountMismatch:
			return operations.Invalid(operations.ErrAnswerCountMismatch, fmt.Sprintf("expected %d answers, got %d", len(exercise.Questions), len(answer.Answers)))
		case model.AnswersInvalidIndex:
			return operations.Invalid(operations.ErrInvalidAnswer, fmt.Sprintf("answer %d is not a valid option", idx+1))
		}
	}
	return nil
}
