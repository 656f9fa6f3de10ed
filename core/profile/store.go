package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("profile not found")

func Create(ctx context.Context, db sqlx.ExtContext, p Profile) error {
	const q = `
	INSERT INTO profiles
		(id, first_name, last_name, avatar_url, role, created_at, updated_at)
	VALUES
		(:id, :first_name, :last_name, :avatar_url, :role, :created_at, :updated_at)
	ON CONFLICT (id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting profile[%s]: %w", p.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Profile, error) {
	const q = `
	SELECT
		id, first_name, last_name, avatar_url, role, created_at, updated_at
	FROM
		profiles
	WHERE
		id = $1`

	var p Profile
	if err := database.GetContext(ctx, db, &p, q, id); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("selecting profile[%s]: %w", id, err)
	}
	return p, nil
}

func FetchGrants(ctx context.Context, db sqlx.ExtContext, userID string) ([]claims.Role, error) {
	const q = `
	SELECT
		role
	FROM
		user_roles
	WHERE
		user_id = $1`

	var roles []claims.Role
	if err := database.SelectContext(ctx, db, &roles, q, userID); err != nil {
		return nil, fmt.Errorf("selecting grants of user[%s]: %w", userID, err)
	}
	return roles, nil
}

// ReplaceRole leaves the user with exactly one grant. The legacy role column
// of the profile follows, so the degraded resolution path cannot hand back a
// revoked role.
func ReplaceRole(ctx context.Context, db *sqlx.DB, userID string, role claims.Role) error {
	return database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("deleting grants of user[%s]: %w", userID, err)
		}

		g := Grant{UserID: userID, Role: role}
		const q = `INSERT INTO user_roles (user_id, role) VALUES (:user_id, :role)`
		if _, err := sqlx.NamedExecContext(ctx, tx, q, g); err != nil {
			return fmt.Errorf("granting %s to user[%s]: %w", role, userID, err)
		}

		const up = `UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`
		if _, err := tx.ExecContext(ctx, up, userID, role); err != nil {
			return fmt.Errorf("syncing the profile role of user[%s]: %w", userID, err)
		}
		return nil
	})
}

func AddGrant(ctx context.Context, db sqlx.ExtContext, userID string, role claims.Role) error {
	const q = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := db.ExecContext(ctx, q, userID, role); err != nil {
		return fmt.Errorf("granting %s to user[%s]: %w", role, userID, err)
	}
	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	n, err := database.ExecContext(ctx, db, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting profile[%s]: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Store binds the queries to a database for callers that take interfaces.
type Store struct {
	DB *sqlx.DB
}

func (s Store) FetchProfile(ctx context.Context, id string) (Profile, error) {
	return Fetch(ctx, s.DB, id)
}

func (s Store) FetchGrants(ctx context.Context, userID string) ([]claims.Role, error) {
	return FetchGrants(ctx, s.DB, userID)
}

// Listed is a profile with the account email and every grant of the user.
type Listed struct {
	Profile
	Email  string         `db:"email"`
	Grants pq.StringArray `db:"grants"`
}

// List returns every profile, newest first.
func List(ctx context.Context, db sqlx.ExtContext) ([]Listed, error) {
	const q = `
	SELECT
		p.id, p.first_name, p.last_name, p.avatar_url, p.role, p.created_at, p.updated_at,
		u.email,
		COALESCE(ARRAY_AGG(r.role) FILTER (WHERE r.role IS NOT NULL), '{}') AS grants
	FROM
		profiles AS p
	JOIN
		auth_users AS u ON u.user_id = p.id
	LEFT JOIN
		user_roles AS r ON r.user_id = p.id
	GROUP BY
		p.id, u.email
	ORDER BY
		p.created_at DESC`

	ls := []Listed{}
	if err := database.SelectContext(ctx, db, &ls, q); err != nil {
		return nil, fmt.Errorf("selecting profiles: %w", err)
	}
	return ls, nil
}
