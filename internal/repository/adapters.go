package repository

import (
	"context"

	"semaphore/classroom/internal/classes"
	"semaphore/classroom/internal/enrollment"
	"semaphore/classroom/internal/exercise"
	"semaphore/classroom/internal/model"
)

// Each workflow declares its own locked-transaction callback type, so the
// repository is handed to them through thin views that only differ in
// WithClassLock or WithExerciseLock.

type Enrollment struct{ *Repository }

func (r Enrollment) WithClassLock(ctx context.Context, classID string, fn func(model.Class, enrollment.Tx) error) error {
	return r.withTx(ctx, func(q *Queries) error {
		class, err := q.lockClass(ctx, classID)
		if err != nil {
			return err
		}
		return fn(class, q)
	})
}

type Classes struct{ *Repository }

func (r Classes) WithClassLock(ctx context.Context, classID string, fn func(model.Class, classes.Tx) error) error {
	return r.withTx(ctx, func(q *Queries) error {
		class, err := q.lockClass(ctx, classID)
		if err != nil {
			return err
		}
		return fn(class, q)
	})
}

type Exercises struct{ *Repository }

func (r Exercises) WithExerciseLock(ctx context.Context, exerciseID string, fn func(model.Exercise, exercise.Tx) error) error {
	return r.withTx(ctx, func(q *Queries) error {
		locked, err := q.lockExercise(ctx, exerciseID)
		if err != nil {
			return err
		}
		return fn(locked, q)
	})
}

var (
	_ enrollment.Store = Enrollment{}
	_ classes.Store    = Classes{}
	_ exercise.Store   = Exercises{}
)
