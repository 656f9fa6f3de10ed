// Package user exposes the administration of accounts: every profile with
// its effective role, role changes and deletion.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
)

const CacheKey = "users"

var ErrNotFound = errors.New("user not found")

type User struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	FirstName *string     `json:"firstName"`
	LastName  *string     `json:"lastName"`
	AvatarURL *string     `json:"avatarUrl"`
	Role      claims.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (u User) Name() string {
	var parts []string
	for _, p := range []*string{u.FirstName, u.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return u.Email
	}
	return strings.Join(parts, " ")
}

// FromListed computes the effective role from the grants. Users without
// grants are students.
func FromListed(l profile.Listed) User {
	grants := make([]claims.Role, 0, len(l.Grants))
	for _, g := range l.Grants {
		grants = append(grants, claims.Role(g))
	}

	return User{
		ID:        l.ID,
		Email:     l.Email,
		FirstName: l.FirstName,
		LastName:  l.LastName,
		AvatarURL: l.AvatarURL,
		Role:      claims.Effective(grants),
		CreatedAt: l.CreatedAt,
	}
}

func List(ctx context.Context, db sqlx.ExtContext) ([]User, error) {
	ls, err := profile.List(ctx, db)
	if err != nil {
		return nil, err
	}

	us := make([]User, 0, len(ls))
	for _, l := range ls {
		us = append(us, FromListed(l))
	}
	return us, nil
}

// Delete removes the account together with its profile, grants, sessions
// and enrollments.
func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	n, err := database.ExecContext(ctx, db, `DELETE FROM auth_users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user[%s]: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
