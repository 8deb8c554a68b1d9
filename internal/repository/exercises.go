package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

const exerciseColumns = `e.id, e.class_id, e.created_by, e.title, e.description, e.type, e.subject, e.max_score,
	e.start_date, e.due_date, e.status, e.questions, e.attachments, e.created_at, e.updated_at, e.deleted_at`

func scanExercise(row rowScanner) (model.Exercise, error) {
	var e model.Exercise
	var kind, status string
	err := row.Scan(
		&e.ID,
		&e.ClassID,
		&e.CreatedBy,
		&e.Title,
		&e.Description,
		&kind,
		&e.Subject,
		&e.MaxScore,
		&e.StartDate,
		&e.DueDate,
		&status,
		&e.Questions,
		&e.Attachments,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.DeletedAt,
	)
	e.Type = model.ExerciseType(kind)
	e.Status = model.ExerciseStatus(status)
	if e.Questions == nil {
		e.Questions = []model.Question{}
	}
	if e.Attachments == nil {
		e.Attachments = []model.Attachment{}
	}
	return e, err
}

func collectExercises(rows pgx.Rows) ([]model.Exercise, error) {
	defer rows.Close()
	out := []model.Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) CreateExercise(ctx context.Context, e model.Exercise) (model.Exercise, error) {
	if e.Questions == nil {
		e.Questions = []model.Question{}
	}
	if e.Attachments == nil {
		e.Attachments = []model.Attachment{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO exercises (id, class_id, created_by, title, description, type, subject, max_score,
			start_date, due_date, status, questions, attachments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, e.ID, e.ClassID, e.CreatedBy, e.Title, e.Description, string(e.Type), e.Subject, e.MaxScore,
		e.StartDate, e.DueDate, string(e.Status), e.Questions, e.Attachments, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return model.Exercise{}, fmt.Errorf("insert exercise: %w", err)
	}
	return e, nil
}

func (q *Queries) GetExercise(ctx context.Context, exerciseID string) (model.Exercise, error) {
	if !validID(exerciseID) {
		return model.Exercise{}, operations.NotFound(operations.ErrExerciseNotFound)
	}
	row := q.db.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises e WHERE e.id = $1 AND `+live("e"), exerciseID)
	exercise, err := scanExercise(row)
	if err != nil {
		return model.Exercise{}, notFound(err, operations.ErrExerciseNotFound)
	}
	return exercise, nil
}

func (q *Queries) lockExercise(ctx context.Context, exerciseID string) (model.Exercise, error) {
	if !validID(exerciseID) {
		return model.Exercise{}, operations.NotFound(operations.ErrExerciseNotFound)
	}
	row := q.db.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises e WHERE e.id = $1 AND `+live("e")+` FOR UPDATE`, exerciseID)
	exercise, err := scanExercise(row)
	if err != nil {
		return model.Exercise{}, notFound(err, operations.ErrExerciseNotFound)
	}
	return exercise, nil
}

func (q *Queries) GetExercises(ctx context.Context, exerciseIDs []string) (map[string]model.Exercise, error) {
	out := make(map[string]model.Exercise, len(exerciseIDs))
	if len(exerciseIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises e WHERE e.id = ANY($1) AND `+live("e"), pgUUIDs(exerciseIDs))
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	exercises, err := collectExercises(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range exercises {
		out[e.ID] = e
	}
	return out, nil
}

// ExerciseDeleted reports whether the exercise exists but was soft-deleted.
func (q *Queries) ExerciseDeleted(ctx context.Context, exerciseID string) (bool, error) {
	if !validID(exerciseID) {
		return false, nil
	}
	var deleted bool
	err := q.db.QueryRow(ctx, `SELECT deleted_at IS NOT NULL FROM exercises WHERE id = $1`, exerciseID).Scan(&deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("exercise deleted: %w", err)
	}
	return deleted, nil
}

func (q *Queries) ListExercisesByClass(ctx context.Context, classID string) ([]model.Exercise, error) {
	if !validID(classID) {
		return []model.Exercise{}, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercises e
		WHERE e.class_id = $1 AND `+live("e")+`
		ORDER BY e.created_at DESC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("list class exercises: %w", err)
	}
	return collectExercises(rows)
}

// ListExercisesByAuthor skips exercises whose class has been deleted.
func (q *Queries) ListExercisesByAuthor(ctx context.Context, profileID string) ([]model.Exercise, error) {
	if !validID(profileID) {
		return []model.Exercise{}, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercises e
		JOIN classes c ON c.id = e.class_id
		WHERE e.created_by = $1 AND `+live("e")+` AND `+live("c")+`
		ORDER BY e.created_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list authored exercises: %w", err)
	}
	return collectExercises(rows)
}

func (q *Queries) UpdateExercise(ctx context.Context, e model.Exercise) error {
	_, err := q.db.Exec(ctx, `
		UPDATE exercises
		SET title = $2, description = $3, type = $4, subject = $5, max_score = $6, start_date = $7,
			due_date = $8, status = $9, questions = $10, attachments = $11, updated_at = $12
		WHERE id = $1
	`, e.ID, e.Title, e.Description, string(e.Type), e.Subject, e.MaxScore, e.StartDate,
		e.DueDate, string(e.Status), e.Questions, e.Attachments, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update exercise: %w", err)
	}
	return nil
}

// SoftDeleteExercise hides the exercise and closes it so it no longer
// accepts submissions through any path.
func (q *Queries) SoftDeleteExercise(ctx context.Context, exerciseID string, at time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE exercises SET deleted_at = $2, updated_at = $2, status = 'closed' WHERE id = $1
	`, exerciseID, at)
	if err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}
	return nil
}
