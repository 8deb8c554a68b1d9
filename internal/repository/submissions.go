package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

const submissionColumns = `s.id, s.exercise_id, s.student_id, s.submitted_at, s.content, s.file_url, s.files,
	s.answers, s.grade, s.feedback, s.graded_at`

func scanSubmission(row rowScanner) (model.Submission, error) {
	var s model.Submission
	err := row.Scan(
		&s.ID,
		&s.ExerciseID,
		&s.StudentID,
		&s.SubmittedAt,
		&s.Content,
		&s.FileURL,
		&s.Files,
		&s.Answers,
		&s.Grade,
		&s.Feedback,
		&s.GradedAt,
	)
	if s.Files == nil {
		s.Files = []model.Attachment{}
	}
	return s, err
}

func collectSubmissions(rows pgx.Rows) ([]model.Submission, error) {
	defer rows.Close()
	out := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSubmissions returns the submissions of one exercise, oldest first.
func (q *Queries) ListSubmissions(ctx context.Context, exerciseID string) ([]model.Submission, error) {
	if !validID(exerciseID) {
		return []model.Submission{}, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		WHERE s.exercise_id = $1
		ORDER BY s.submitted_at, s.id
	`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return collectSubmissions(rows)
}

func (q *Queries) ListSubmissionsFor(ctx context.Context, exerciseIDs []string) (map[string][]model.Submission, error) {
	out := make(map[string][]model.Submission, len(exerciseIDs))
	if len(exerciseIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		WHERE s.exercise_id = ANY($1)
		ORDER BY s.submitted_at, s.id
	`, pgUUIDs(exerciseIDs))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	submissions, err := collectSubmissions(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range submissions {
		out[s.ExerciseID] = append(out[s.ExerciseID], s)
	}
	return out, nil
}

func (q *Queries) ListSubmissionsByStudent(ctx context.Context, studentID string) ([]model.Submission, error) {
	if !validID(studentID) {
		return []model.Submission{}, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN exercises e ON e.id = s.exercise_id
		WHERE s.student_id = $1 AND `+live("e")+`
		ORDER BY s.submitted_at DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return collectSubmissions(rows)
}

func (q *Queries) FindStudentSubmission(ctx context.Context, exerciseID, studentID string) (model.Submission, bool, error) {
	if !validID(exerciseID) || !validID(studentID) {
		return model.Submission{}, false, nil
	}
	row := q.db.QueryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		WHERE s.exercise_id = $1 AND s.student_id = $2
	`, exerciseID, studentID)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Submission{}, false, nil
		}
		return model.Submission{}, false, fmt.Errorf("find submission: %w", err)
	}
	return s, true, nil
}

func (q *Queries) FindSubmission(ctx context.Context, exerciseID, submissionID string) (model.Submission, error) {
	if !validID(submissionID) {
		return model.Submission{}, operations.NotFound(operations.ErrSubmissionNotFound)
	}
	row := q.db.QueryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		WHERE s.id = $1 AND s.exercise_id = $2
	`, submissionID, exerciseID)
	s, err := scanSubmission(row)
	if err != nil {
		return model.Submission{}, notFound(err, operations.ErrSubmissionNotFound)
	}
	return s, nil
}

func (q *Queries) InsertSubmission(ctx context.Context, s model.Submission) (model.Submission, error) {
	if s.Files == nil {
		s.Files = []model.Attachment{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO submissions (id, exercise_id, student_id, submitted_at, content, file_url, files,
			answers, grade, feedback, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.ExerciseID, s.StudentID, s.SubmittedAt, s.Content, s.FileURL, s.Files,
		s.Answers, s.Grade, s.Feedback, s.GradedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Submission{}, operations.Conflict(operations.ErrAlreadySubmitted)
		}
		return model.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return s, nil
}

func (q *Queries) UpdateSubmission(ctx context.Context, s model.Submission) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE submissions SET grade = $2, feedback = $3, graded_at = $4 WHERE id = $1
	`, s.ID, s.Grade, s.Feedback, s.GradedAt)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return operations.NotFound(operations.ErrSubmissionNotFound)
	}
	return nil
}
