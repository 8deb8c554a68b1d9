package repository

import (
	"context"
	"fmt"
	"time"

	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

const profileColumns = `p.id, p.identity_id, p.role, p.email, p.username, p.phone, p.user_class, p.user_school,
	p.address, p.avatar, p.date_of_birth, p.gender, p.created_at, p.updated_at`

func scanProfile(row rowScanner) (model.Profile, error) {
	var p model.Profile
	var gender string
	err := row.Scan(
		&p.ID,
		&p.IdentityID,
		&p.Role,
		&p.Email,
		&p.Username,
		&p.Phone,
		&p.UserClass,
		&p.UserSchool,
		&p.Address,
		&p.Avatar,
		&p.DateOfBirth,
		&gender,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.Gender = model.Gender(gender)
	return p, err
}

func (q *Queries) GetProfileByIdentity(ctx context.Context, identityID string) (model.Profile, error) {
	row := q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.identity_id = $1 AND `+live("p"), identityID)
	profile, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, notFound(err, operations.ErrProfileNotFound)
	}
	return profile, nil
}

func (q *Queries) GetProfiles(ctx context.Context, profileIDs []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(profileIDs))
	if len(profileIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.id = ANY($1) AND `+live("p"), pgUUIDs(profileIDs))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[profile.ID] = profile
	}
	return out, rows.Err()
}

// UpsertProfile inserts a profile or overwrites the one already bound to the
// same identity. The stored id always wins over the one passed in.
func (q *Queries) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO profiles AS p (id, identity_id, role, email, username, phone, user_class, user_school,
			address, avatar, date_of_birth, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (identity_id) DO UPDATE
		SET role = EXCLUDED.role, email = EXCLUDED.email, username = EXCLUDED.username, phone = EXCLUDED.phone,
			user_class = EXCLUDED.user_class, user_school = EXCLUDED.user_school, address = EXCLUDED.address,
			date_of_birth = EXCLUDED.date_of_birth, gender = EXCLUDED.gender, updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
		RETURNING `+profileColumns,
		p.ID, p.IdentityID, p.Role, p.Email, p.Username, p.Phone, p.UserClass, p.UserSchool,
		p.Address, p.Avatar, p.DateOfBirth, string(p.Gender), p.CreatedAt, p.UpdatedAt)
	saved, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return saved, nil
}

func (q *Queries) UpdateAvatar(ctx context.Context, profileID, avatarURL string, at time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE profiles SET avatar = $2, updated_at = $3 WHERE id = $1`, profileID, avatarURL, at)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return operations.NotFound(operations.ErrProfileNotFound)
	}
	return nil
}
