package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/core/claims"
)

const (
	tokenKey      = "auth_token"
	oauthStateKey = "oauth_state"
)

// LoadAndSave loads the session of the request and commits it once the
// handler returns.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	return func(handler web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var herr error
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				herr = handler(r.Context(), w, r)
			})

			sm.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
			return herr
		}
	}
}

// Authenticate resolves the session token to claims with a fresh role.
// Requests without a live session are rejected.
func (s *Service) Authenticate() web.Middleware {
	return func(handler web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ctx, err := s.identify(ctx)
			if err != nil {
				return err
			}
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
	}
}

// Identify attaches claims when the request carries a live session and lets
// anonymous requests through.
func (s *Service) Identify() web.Middleware {
	return func(handler web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ctx, err := s.identify(ctx)
			if err != nil && !errors.Is(err, ErrSessionNotFound) {
				return err
			}
			return handler(ctx, w, r)
		}
	}
}

func (s *Service) identify(ctx context.Context) (context.Context, error) {
	token := s.sm.GetString(ctx, tokenKey)
	if token == "" {
		return ctx, nil
	}

	p, err := s.backend.CurrentPrincipal(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.sm.Remove(ctx, tokenKey)
			return ctx, weberr.NotAuthorized(err)
		}
		return ctx, fmt.Errorf("authenticating session: %w", err)
	}

	u := s.resolver.Resolve(ctx, p)
	return claims.Set(ctx, u.Claims()), nil
}

// RequireRole authenticates the request and rejects users whose effective
// role is below min.
func (s *Service) RequireRole(min claims.Role) web.Middleware {
	authen := s.Authenticate()
	return func(handler web.Handler) web.Handler {
		check := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(err)
			}
			if !clm.Role.AtLeast(min) {
				return weberr.Forbidden(fmt.Errorf("role %s is below %s", clm.Role, min))
			}
			return handler(ctx, w, r)
		}
		return authen(check)
	}
}

func (s *Service) Admin() web.Middleware {
	return s.RequireRole(claims.RoleAdmin)
}

func (s *Service) Instructor() web.Middleware {
	return s.RequireRole(claims.RoleInstructor)
}
