package repository

import (
	"context"
	"fmt"
	"time"

	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

const classColumns = `c.id, c.name, c.subject, c.description, c.schedule, c.location, c.max_students,
	c.grade_level, c.price_per_session, c.teacher_id, c.created_by, c.created_at, c.updated_at, c.deleted_at`

func scanClass(row rowScanner) (model.Class, error) {
	var c model.Class
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Subject,
		&c.Description,
		&c.Schedule,
		&c.Location,
		&c.MaxStudents,
		&c.GradeLevel,
		&c.PricePerSession,
		&c.TeacherID,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	)
	if c.Schedule == nil {
		c.Schedule = []model.ScheduleSlot{}
	}
	return c, err
}

func (q *Queries) CreateClass(ctx context.Context, c model.Class) (model.Class, error) {
	if c.Schedule == nil {
		c.Schedule = []model.ScheduleSlot{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO classes (id, name, subject, description, schedule, location, max_students,
			grade_level, price_per_session, teacher_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.Name, c.Subject, c.Description, c.Schedule, c.Location, c.MaxStudents,
		c.GradeLevel, c.PricePerSession, c.TeacherID, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return model.Class{}, fmt.Errorf("insert class: %w", err)
	}
	return c, nil
}

func (q *Queries) GetClass(ctx context.Context, classID string) (model.Class, error) {
	if !validID(classID) {
		return model.Class{}, operations.NotFound(operations.ErrClassNotFound)
	}
	row := q.db.QueryRow(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.id = $1 AND `+live("c"), classID)
	class, err := scanClass(row)
	if err != nil {
		return model.Class{}, notFound(err, operations.ErrClassNotFound)
	}
	return class, nil
}

func (q *Queries) lockClass(ctx context.Context, classID string) (model.Class, error) {
	if !validID(classID) {
		return model.Class{}, operations.NotFound(operations.ErrClassNotFound)
	}
	row := q.db.QueryRow(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.id = $1 AND `+live("c")+` FOR UPDATE`, classID)
	class, err := scanClass(row)
	if err != nil {
		return model.Class{}, notFound(err, operations.ErrClassNotFound)
	}
	return class, nil
}

func (q *Queries) GetClasses(ctx context.Context, classIDs []string) (map[string]model.Class, error) {
	out := make(map[string]model.Class, len(classIDs))
	if len(classIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.id = ANY($1) AND `+live("c"), pgUUIDs(classIDs))
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out[class.ID] = class
	}
	return out, rows.Err()
}

// ListClasses returns live classes, newest first. A non-empty teacherID
// restricts the list to that teacher's classes.
func (q *Queries) ListClasses(ctx context.Context, teacherID string) ([]model.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes c WHERE ` + live("c")
	args := []any{}
	if teacherID != "" {
		if !validID(teacherID) {
			return []model.Class{}, nil
		}
		query += ` AND c.teacher_id = $1`
		args = append(args, teacherID)
	}
	query += ` ORDER BY c.created_at DESC`
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()
	classes := []model.Class{}
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

func (q *Queries) UpdateClass(ctx context.Context, c model.Class) error {
	_, err := q.db.Exec(ctx, `
		UPDATE classes
		SET name = $2, subject = $3, description = $4, schedule = $5, location = $6, max_students = $7,
			grade_level = $8, price_per_session = $9, updated_at = $10
		WHERE id = $1
	`, c.ID, c.Name, c.Subject, c.Description, c.Schedule, c.Location, c.MaxStudents,
		c.GradeLevel, c.PricePerSession, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

func (q *Queries) SoftDeleteClass(ctx context.Context, classID string, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE classes SET deleted_at = $2, updated_at = $2 WHERE id = $1`, classID, at)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

func (q *Queries) CountSeats(ctx context.Context, classIDs []string) (map[string]model.SeatCount, error) {
	out := make(map[string]model.SeatCount, len(classIDs))
	if len(classIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT class_id,
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM class_memberships
		WHERE class_id = ANY($1)
		GROUP BY class_id
	`, pgUUIDs(classIDs))
	if err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var classID string
		var seats model.SeatCount
		if err := rows.Scan(&classID, &seats.Approved, &seats.Pending); err != nil {
			return nil, err
		}
		out[classID] = seats
	}
	return out, rows.Err()
}
