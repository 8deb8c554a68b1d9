package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"semaphore/classroom/internal/db"
	"semaphore/classroom/internal/operations"
)

const uniqueViolation = "23505"

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs every statement of the service against a pool or a
// transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Repository is the Postgres backed store shared by the workflows.
type Repository struct {
	*Queries
	store *db.Store
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Queries: New(pool), store: db.NewStore(pool)}
}

func (r *Repository) withTx(ctx context.Context, fn func(*Queries) error) error {
	return r.store.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// live is the soft-delete predicate. Every read of a soft-deletable table
// goes through it.
func live(alias string) string {
	return alias + ".deleted_at IS NULL"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error, code string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return operations.NotFound(code)
	}
	return fmt.Errorf("%s lookup: %w", code, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDs converts ids for uuid[] parameters, skipping malformed values.
func pgUUIDs(ids []string) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil || seen[parsed] {
			continue
		}
		seen[parsed] = true
		out = append(out, pgUUID(parsed))
	}
	return out
}
