// Package exercise authors exercises, accepts one submission per student,
// grades them and summarizes grading progress.
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

const (
	MaxAttachmentFiles = 5
	MaxSubmissionFiles = 3
)

type Store interface {
	GetClass(ctx context.Context, classID string) (model.Class, error)
	GetClasses(ctx context.Context, classIDs []string) (map[string]model.Class, error)
	GetMembership(ctx context.Context, classID, profileID string) (model.Membership, bool, error)
	GetProfiles(ctx context.Context, profileIDs []string) (map[string]model.Profile, error)

	CreateExercise(ctx context.Context, exercise model.Exercise) (model.Exercise, error)
	GetExercise(ctx context.Context, exerciseID string) (model.Exercise, error)
	GetExercises(ctx context.Context, exerciseIDs []string) (map[string]model.Exercise, error)
	ExerciseDeleted(ctx context.Context, exerciseID string) (bool, error)
	ListExercisesByClass(ctx context.Context, classID string) ([]model.Exercise, error)
	ListExercisesByAuthor(ctx context.Context, profileID string) ([]model.Exercise, error)

	ListSubmissions(ctx context.Context, exerciseID string) ([]model.Submission, error)
	ListSubmissionsFor(ctx context.Context, exerciseIDs []string) (map[string][]model.Submission, error)
	ListSubmissionsByStudent(ctx context.Context, studentID string) ([]model.Submission, error)
	FindStudentSubmission(ctx context.Context, exerciseID, studentID string) (model.Submission, bool, error)

	WithExerciseLock(ctx context.Context, exerciseID string, fn func(model.Exercise, Tx) error) error
}

// Tx is the set of writes available while an exercise row is locked.
type Tx interface {
	ListSubmissions(ctx context.Context, exerciseID string) ([]model.Submission, error)
	FindSubmission(ctx context.Context, exerciseID, submissionID string) (model.Submission, error)
	InsertSubmission(ctx context.Context, submission model.Submission) (model.Submission, error)
	UpdateSubmission(ctx context.Context, submission model.Submission) error
	UpdateExercise(ctx context.Context, exercise model.Exercise) error
	SoftDeleteExercise(ctx context.Context, exerciseID string, at time.Time) error
}

type Service struct {
	store   Store
	uploads *storage.Uploader
	now     func() time.Time
}

func NewService(store Store, uploads *storage.Uploader, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, uploads: uploads, now: now}
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, classID string, draft Draft, files []storage.File) (created model.Exercise, err error) {
	defer func() { metrics.Observe("exercise", "create", err) }()
	if !actor.Can(auth.CapExerciseAuthor) {
		return model.Exercise{}, operations.Forbidden(operations.ErrForbidden)
	}
	if len(files) > MaxAttachmentFiles {
		return model.Exercise{}, operations.Invalid(operations.ErrTooManyFiles, "at most 5 attachments")
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return model.Exercise{}, err
	}
	if !actor.Owns(class.TeacherID) {
		return model.Exercise{}, operations.Forbidden(operations.ErrForbidden)
	}
	now := s.now().UTC()
	kind, problems := validateDraft(draft, now)
	if len(problems) > 0 {
		return model.Exercise{}, operations.InvalidFields(problems)
	}

	title := strings.TrimSpace(draft.Title)
	attachments, err := s.uploads.UploadAll(ctx, storage.ExercisePrefix(class.TeacherID, classID, title), files)
	if err != nil {
		return model.Exercise{}, err
	}

	questions := []model.Question{}
	if kind == model.ExerciseMultipleChoice {
		questions = normalizeQuestions(draft.Questions)
	}
	exercise := model.Exercise{
		ID:          uuid.NewString(),
		ClassID:     classID,
		CreatedBy:   actor.ProfileID,
		Title:       title,
		Description: draft.Description,
		Type:        kind,
		Subject:     draft.Subject,
		MaxScore:    model.DeriveMaxScore(draft.MaxScore, kind, questions),
		StartDate:   draft.StartDate,
		DueDate:     draft.DueDate.UTC(),
		Status:      model.StatusOpen,
		Questions:   questions,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if exercise.Subject == "" {
		exercise.Subject = class.Subject
	}
	created, err = s.store.CreateExercise(ctx, exercise)
	if err != nil {
		s.uploads.Abandon(ctx, "create", attachments)
		return model.Exercise{}, err
	}
	return created, nil
}

// Update applies patch to an exercise. New files are uploaded before the
// record is touched; removed attachments are deleted from the file store
// only after the record no longer references them.
func (s *Service) Update(ctx context.Context, actor auth.Actor, exerciseID string, patch Patch, files []storage.File) (updated model.Exercise, err error) {
	defer func() { metrics.Observe("exercise", "update", err) }()
	if !actor.Can(auth.CapExerciseAuthor) {
		return model.Exercise{}, operations.Forbidden(operations.ErrForbidden)
	}
	if len(files) > MaxAttachmentFiles {
		return model.Exercise{}, operations.Invalid(operations.ErrTooManyFiles, "at most 5 attachments")
	}
	current, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return model.Exercise{}, err
	}
	if !actor.Owns(current.CreatedBy) {
		return model.Exercise{}, operations.Forbidden(operations.ErrForbidden)
	}
	now := s.now().UTC()
	if problems := validatePatch(patch, current, now); len(problems) > 0 {
		return model.Exercise{}, operations.InvalidFields(problems)
	}
	if patch.DueDate != nil && !model.DueDateChangeAllowed(current.DueDate, *patch.DueDate, now) {
		return model.Exercise{}, dueDateError()
	}

	title := current.Title
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
	}
	class, err := s.store.GetClass(ctx, current.ClassID)
	if err != nil {
		return model.Exercise{}, err
	}
	added, err := s.uploads.UploadAll(ctx, storage.ExercisePrefix(class.TeacherID, current.ClassID, title), files)
	if err != nil {
		return model.Exercise{}, err
	}

	var removed []string
	err = s.store.WithExerciseLock(ctx, exerciseID, func(exercise model.Exercise, tx Tx) error {
		if !actor.Owns(exercise.CreatedBy) {
			return operations.Forbidden(operations.ErrForbidden)
		}
		if problems := validatePatch(patch, exercise, now); len(problems) > 0 {
			return operations.InvalidFields(problems)
		}
		if patch.DueDate != nil && !model.DueDateChangeAllowed(exercise.DueDate, *patch.DueDate, now) {
			return dueDateError()
		}
		if patch.changesQuestionBank(exercise) || patch.MaxScore != nil {
			submissions, err := tx.ListSubmissions(ctx, exerciseID)
			if err != nil {
				return err
			}
			if err := checkFrozen(patch, exercise, submissions); err != nil {
				return err
			}
		}
		removed = applyPatch(&exercise, patch, title)
		exercise.Attachments = append(exercise.Attachments, added...)
		exercise.UpdatedAt = now
		if err := tx.UpdateExercise(ctx, exercise); err != nil {
			return err
		}
		updated = exercise
		return nil
	})
	if err != nil {
		s.uploads.Abandon(ctx, "update", added)
		return model.Exercise{}, err
	}
	s.uploads.DeleteBestEffort(ctx, removed)
	return updated, nil
}

// checkFrozen refuses question bank changes once anyone has submitted, and
// a maxScore below a grade already handed out.
func checkFrozen(patch Patch, exercise model.Exercise, submissions []model.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	if patch.changesQuestionBank(exercise) {
		return operations.Conflict(operations.ErrHasSubmissions).WithMessage("questions and type are frozen once students have submitted")
	}
	if patch.MaxScore == nil {
		return nil
	}
	for _, sub := range submissions {
		if sub.Grade != nil && *sub.Grade > *patch.MaxScore {
			return operations.Invalid(operations.ErrInvalidGrade, fmt.Sprintf("maxScore cannot drop below an existing grade of %g", *sub.Grade))
		}
	}
	return nil
}

// applyPatch overwrites the provided fields and drops the attachments named
// for removal, returning their URLs.
func applyPatch(exercise *model.Exercise, patch Patch, title string) []string {
	exercise.Title = title
	if patch.Description != nil {
		exercise.Description = *patch.Description
	}
	if patch.Subject != nil {
		exercise.Subject = *patch.Subject
	}
	typeChanged := patch.Type != nil && model.ExerciseType(*patch.Type) != exercise.Type
	if typeChanged {
		exercise.Type = model.ExerciseType(*patch.Type)
	}
	if patch.StartDate != nil {
		start := patch.StartDate.UTC()
		exercise.StartDate = &start
	}
	if patch.DueDate != nil {
		exercise.DueDate = patch.DueDate.UTC()
	}
	if patch.Status != nil {
		exercise.Status = model.ExerciseStatus(*patch.Status)
	}
	if exercise.Type != model.ExerciseMultipleChoice {
		exercise.Questions = []model.Question{}
	} else if patch.Questions != nil {
		exercise.Questions = normalizeQuestions(*patch.Questions)
	}
	switch {
	case patch.MaxScore != nil:
		exercise.MaxScore = *patch.MaxScore
	case patch.Questions != nil || typeChanged:
		exercise.MaxScore = model.DeriveMaxScore(nil, exercise.Type, exercise.Questions)
	}

	if len(patch.RemoveAttachmentURLs) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(patch.RemoveAttachmentURLs))
	for _, url := range patch.RemoveAttachmentURLs {
		drop[url] = true
	}
	kept := make([]model.Attachment, 0, len(exercise.Attachments))
	var removed []string
	for _, a := range exercise.Attachments {
		if drop[a.FileURL] {
			removed = append(removed, a.FileURL)
			continue
		}
		kept = append(kept, a)
	}
	exercise.Attachments = kept
	return removed
}

// Delete soft-deletes an exercise that nobody has submitted to yet.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, exerciseID string) (err error) {
	defer func() { metrics.Observe("exercise", "delete", err) }()
	if !actor.Can(auth.CapExerciseAuthor) {
		return operations.Forbidden(operations.ErrForbidden)
	}
	err = s.store.WithExerciseLock(ctx, exerciseID, func(exercise model.Exercise, tx Tx) error {
		if !actor.Owns(exercise.CreatedBy) {
			return operations.Forbidden(operations.ErrForbidden)
		}
		submissions, err := tx.ListSubmissions(ctx, exerciseID)
		if err != nil {
			return err
		}
		if len(submissions) > 0 {
			return operations.Conflict(operations.ErrHasSubmissions)
		}
		return tx.SoftDeleteExercise(ctx, exerciseID, s.now().UTC())
	})
	if operations.IsCode(err, operations.ErrExerciseNotFound) {
		deleted, lookupErr := s.store.ExerciseDeleted(ctx, exerciseID)
		if lookupErr != nil {
			return lookupErr
		}
		if deleted {
			return operations.Conflict(operations.ErrAlreadyDeleted)
		}
	}
	return err
}
