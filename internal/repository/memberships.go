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

const membershipColumns = `m.class_id, m.profile_id, m.status, m.requested_at, m.approved_at, m.seq`

func scanMembership(row rowScanner) (model.Membership, error) {
	var m model.Membership
	var status string
	err := row.Scan(&m.ClassID, &m.ProfileID, &status, &m.RequestedAt, &m.ApprovedAt, &m.Seq)
	m.Status = model.MembershipStatus(status)
	return m, err
}

func collectMemberships(rows pgx.Rows) ([]model.Membership, error) {
	defer rows.Close()
	out := []model.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) GetMembership(ctx context.Context, classID, profileID string) (model.Membership, bool, error) {
	if !validID(classID) || !validID(profileID) {
		return model.Membership{}, false, nil
	}
	row := q.db.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM class_memberships m
		WHERE m.class_id = $1 AND m.profile_id = $2
	`, classID, profileID)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Membership{}, false, nil
		}
		return model.Membership{}, false, fmt.Errorf("get membership: %w", err)
	}
	return m, true, nil
}

// ListMemberships returns every membership of a class in queue order.
func (q *Queries) ListMemberships(ctx context.Context, classID string) ([]model.Membership, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+membershipColumns+`
		FROM class_memberships m
		WHERE m.class_id = $1
		ORDER BY m.seq
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return collectMemberships(rows)
}

func (q *Queries) ListMembers(ctx context.Context, classID string, status model.MembershipStatus) ([]model.Member, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+membershipColumns+`, p.username, p.email, p.avatar
		FROM class_memberships m
		JOIN profiles p ON p.id = m.profile_id
		WHERE m.class_id = $1 AND m.status = $2
		ORDER BY m.seq
	`, classID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	members := []model.Member{}
	for rows.Next() {
		var member model.Member
		var memberStatus string
		if err := rows.Scan(
			&member.ClassID,
			&member.ProfileID,
			&memberStatus,
			&member.RequestedAt,
			&member.ApprovedAt,
			&member.Seq,
			&member.Username,
			&member.Email,
			&member.Avatar,
		); err != nil {
			return nil, err
		}
		member.Status = model.MembershipStatus(memberStatus)
		members = append(members, member)
	}
	return members, rows.Err()
}

// ListRegistrations is the profile side view of memberships, limited to
// classes that still exist.
func (q *Queries) ListRegistrations(ctx context.Context, profileID string) ([]model.Membership, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+membershipColumns+`
		FROM class_memberships m
		JOIN classes c ON c.id = m.class_id
		WHERE m.profile_id = $1 AND `+live("c")+`
		ORDER BY m.requested_at
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return collectMemberships(rows)
}

func (q *Queries) InsertMembership(ctx context.Context, m model.Membership) (model.Membership, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO class_memberships (class_id, profile_id, status, requested_at, approved_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`, m.ClassID, m.ProfileID, string(m.Status), m.RequestedAt, m.ApprovedAt)
	if err := row.Scan(&m.Seq); err != nil {
		if isUniqueViolation(err) {
			return model.Membership{}, operations.Conflict(operations.ErrAlreadyPending)
		}
		return model.Membership{}, fmt.Errorf("insert membership: %w", err)
	}
	return m, nil
}

func (q *Queries) ApproveMembership(ctx context.Context, classID, profileID string, at time.Time) (model.Membership, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE class_memberships m
		SET status = 'approved', approved_at = $3
		WHERE m.class_id = $1 AND m.profile_id = $2 AND m.status = 'pending'
		RETURNING `+membershipColumns, classID, profileID, at)
	m, err := scanMembership(row)
	if err != nil {
		return model.Membership{}, notFound(err, operations.ErrNotInQueue)
	}
	return m, nil
}

func (q *Queries) DeleteMembership(ctx context.Context, classID, profileID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM class_memberships WHERE class_id = $1 AND profile_id = $2`, classID, profileID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return operations.NotFound(operations.ErrNotAMember)
	}
	return nil
}
