package auth

import (
	"context"
	"errors"

	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/sirupsen/logrus"
)

// User is a principal enriched with its effective role and display names.
type User struct {
	Principal
	Role      claims.Role `json:"role"`
	FirstName *string     `json:"first_name,omitempty"`
	LastName  *string     `json:"last_name,omitempty"`
}

func (u User) Claims() claims.Claims {
	return claims.Claims{UserID: u.ID, Role: u.Role}
}

type Profiles interface {
	FetchProfile(ctx context.Context, id string) (profile.Profile, error)
}

type Grants interface {
	FetchGrants(ctx context.Context, userID string) ([]claims.Role, error)
}

type Observer interface {
	Resolution(outcome string)
}

type nopObserver struct{}

func (nopObserver) Resolution(string) {}

// Resolver computes the effective role of a principal. It always reads fresh
// state and never fails: read errors degrade towards the student role.
type Resolver struct {
	log      logrus.FieldLogger
	profiles Profiles
	grants   Grants
	obs      Observer
}

func NewResolver(log logrus.FieldLogger, profiles Profiles, grants Grants, obs Observer) *Resolver {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Resolver{log: log, profiles: profiles, grants: grants, obs: obs}
}

func (r *Resolver) Resolve(ctx context.Context, p Principal) User {
	log := r.log.WithField("user_id", p.ID)

	prof, err := r.profiles.FetchProfile(ctx, p.ID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		prof = profile.Profile{}
	case err != nil:
		log.WithError(err).Warn("resolving role: profile unavailable, using least privilege")
		r.obs.Resolution("degraded")
		return User{
			Principal: p,
			Role:      claims.RoleStudent,
			FirstName: nonEmpty(p.Metadata.FirstName),
			LastName:  nonEmpty(p.Metadata.LastName),
		}
	}

	var role claims.Role
	grants, err := r.grants.FetchGrants(ctx, p.ID)
	if err != nil {
		log.WithError(err).Warn("resolving role: grants unavailable, using profile role")
		r.obs.Resolution("degraded")
		role = claims.RoleStudent
		if embedded, ok := prof.EmbeddedRole(); ok {
			role = embedded
		}
	} else {
		r.obs.Resolution("ok")
		role = claims.Effective(grants)
	}

	return User{
		Principal: p,
		Role:      role,
		FirstName: firstOf(prof.FirstName, p.Metadata.FirstName),
		LastName:  firstOf(prof.LastName, p.Metadata.LastName),
	}
}

func firstOf(fromProfile *string, fromPrincipal string) *string {
	if fromProfile != nil && *fromProfile != "" {
		v := *fromProfile
		return &v
	}
	return nonEmpty(fromPrincipal)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
