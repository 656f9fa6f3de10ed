package claims

import (
	"context"
	"errors"
)

// Role is an authorization level. Higher precedence wins when a user holds
// several grants.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Precedence lists roles from most to least privileged.
var Precedence = []Role{RoleAdmin, RoleInstructor, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

func (r Role) rank() int {
	for i, p := range Precedence {
		if p == r {
			return i
		}
	}
	return len(Precedence)
}

// AtLeast reports whether r is as privileged as min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() <= min.rank()
}

// Effective applies the precedence to a set of grants. No grants, or only
// unknown ones, yields the student role.
func Effective(grants []Role) Role {
	best := RoleStudent
	for _, g := range grants {
		if g.Valid() && g.rank() < best.rank() {
			best = g
		}
	}
	return best
}

type Claims struct {
	UserID string
	Role   Role
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}

func IsAdmin(ctx context.Context) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.Role == RoleAdmin
}

func IsUser(ctx context.Context, id string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.UserID == id
}
