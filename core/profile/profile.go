package profile

import (
	"time"

	"github.com/irsalhamdi/raiseup/core/claims"
)

// Profile is the public record of a user. Every field filled at sign-up may
// be null for users created through other paths.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	FirstName *string   `json:"firstName" db:"first_name"`
	LastName  *string   `json:"lastName" db:"last_name"`
	AvatarURL *string   `json:"avatarUrl" db:"avatar_url"`
	Role      *string   `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// EmbeddedRole is the legacy role column, used only when grants cannot be
// read.
func (p Profile) EmbeddedRole() (claims.Role, bool) {
	if p.Role == nil {
		return "", false
	}
	r := claims.Role(*p.Role)
	return r, r.Valid()
}

type Grant struct {
	UserID string      `db:"user_id"`
	Role   claims.Role `db:"role"`
}

type RoleUp struct {
	Role claims.Role `json:"role" validate:"required,oneof=admin instructor student"`
}
