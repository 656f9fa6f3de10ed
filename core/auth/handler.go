package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/raiseup/api/web"
	"github.com/irsalhamdi/raiseup/api/weberr"
	"github.com/irsalhamdi/raiseup/random"
	"github.com/irsalhamdi/raiseup/validate"
	"github.com/sirupsen/logrus"
)

// Backend is a Provider that also supports password updates, session
// refreshes and sign-in through an identity provider.
type Backend interface {
	Provider
	UpdatePassword(ctx context.Context, resetToken, password string) error
	Refresh(ctx context.Context, token string) (*Session, error)
	SignInExternal(ctx context.Context, provider, email string, meta Metadata) (*Session, error)
}

// Throttle limits attempts per key.
type Throttle interface {
	Allow(key string) bool
}

type Service struct {
	log              logrus.FieldLogger
	sm               *scs.SessionManager
	backend          Backend
	resolver         *Resolver
	throttle         Throttle
	oauth            map[string]*OauthProvider
	loginRedirectURL string
}

type ServiceConfig struct {
	Log              logrus.FieldLogger
	Session          *scs.SessionManager
	Backend          Backend
	Resolver         *Resolver
	Throttle         Throttle
	Oauth            map[string]*OauthProvider
	LoginRedirectURL string
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		log:              cfg.Log,
		sm:               cfg.Session,
		backend:          cfg.Backend,
		resolver:         cfg.Resolver,
		throttle:         cfg.Throttle,
		oauth:            cfg.Oauth,
		loginRedirectURL: cfg.LoginRedirectURL,
	}
}

func (s *Service) tracker() *Tracker {
	return NewTracker(s.log, s.backend, s.resolver)
}

// establish binds a session token to the browser session. The session id is
// renewed to prevent fixation.
func (s *Service) establish(ctx context.Context, token string) error {
	if err := s.sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	s.sm.Put(ctx, tokenKey, token)
	return nil
}

type signupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordUpdate struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func decode(w http.ResponseWriter, r *http.Request, val any) error {
	if err := web.Decode(w, r, val); err != nil {
		return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}
	if err := validate.Check(val); err != nil {
		return weberr.NewError(err, err.Error(), http.StatusBadRequest)
	}
	return nil
}

func (s *Service) HandleSignup() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in signupRequest
		if err := decode(w, r, &in); err != nil {
			return err
		}

		t := s.tracker()
		defer t.Close()

		u, err := t.SignUp(ctx, in.Email, in.Password, Metadata{FirstName: in.FirstName, LastName: in.LastName})
		if err != nil {
			if errors.Is(err, ErrEmailTaken) {
				return weberr.Conflict(err)
			}
			return fmt.Errorf("signing up: %w", err)
		}

		if err := s.establish(ctx, t.Token()); err != nil {
			return err
		}
		return web.Respond(ctx, w, u, http.StatusCreated)
	}
}

func (s *Service) HandleLogin() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in loginRequest
		if err := decode(w, r, &in); err != nil {
			return err
		}

		if !s.throttle.Allow(normalizeEmail(in.Email)) {
			return weberr.TooManyRequests(fmt.Errorf("login attempts exceeded for %s", in.Email))
		}

		t := s.tracker()
		defer t.Close()

		u, err := t.SignIn(ctx, in.Email, in.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				return weberr.NewError(err, err.Error(), http.StatusUnauthorized)
			}
			return fmt.Errorf("signing in: %w", err)
		}

		if err := s.establish(ctx, t.Token()); err != nil {
			return err
		}
		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

// HandleLogout only forgets the session token once the backend confirmed the
// sign-out. A failed sign-out leaves the user signed in.
func (s *Service) HandleLogout() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		token := s.sm.GetString(ctx, tokenKey)
		if token == "" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		t := s.tracker()
		defer t.Close()

		if _, err := t.Resume(ctx, token); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				return fmt.Errorf("resuming session: %w", err)
			}
			s.sm.Remove(ctx, tokenKey)
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := t.SignOut(ctx); err != nil {
			return weberr.NewError(err, "sign out failed, please retry", http.StatusServiceUnavailable)
		}

		s.sm.Remove(ctx, tokenKey)
		if err := s.sm.RenewToken(ctx); err != nil {
			return fmt.Errorf("renewing session token: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func (s *Service) HandleResetPassword() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in resetRequest
		if err := decode(w, r, &in); err != nil {
			return err
		}

		if !s.throttle.Allow("reset:" + normalizeEmail(in.Email)) {
			return weberr.TooManyRequests(fmt.Errorf("reset attempts exceeded for %s", in.Email))
		}

		if err := s.backend.ResetPassword(ctx, in.Email); err != nil {
			return fmt.Errorf("requesting password reset: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusAccepted)
	}
}

func (s *Service) HandleUpdatePassword() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in passwordUpdate
		if err := decode(w, r, &in); err != nil {
			return err
		}

		if err := s.backend.UpdatePassword(ctx, in.Token, in.Password); err != nil {
			if errors.Is(err, ErrInvalidResetToken) {
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
			return fmt.Errorf("updating password: %w", err)
		}

		s.sm.Remove(ctx, tokenKey)
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func (s *Service) HandleShowCurrent() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		token := s.sm.GetString(ctx, tokenKey)
		if token == "" {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		t := s.tracker()
		defer t.Close()

		u, err := t.Resume(ctx, token)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				s.sm.Remove(ctx, tokenKey)
				return weberr.NotAuthorized(err)
			}
			return fmt.Errorf("resuming session: %w", err)
		}
		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

// HandleRefresh extends the current session and returns the user with the
// role resolved again.
func (s *Service) HandleRefresh() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		token := s.sm.GetString(ctx, tokenKey)
		if token == "" {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		t := s.tracker()
		defer t.Close()

		_, err := t.Resume(ctx, token)
		if err == nil {
			var u User
			u, err = t.Refresh(ctx)
			if err == nil {
				return web.Respond(ctx, w, u, http.StatusOK)
			}
		}

		if errors.Is(err, ErrSessionNotFound) {
			s.sm.Remove(ctx, tokenKey)
			return weberr.NotAuthorized(err)
		}
		return fmt.Errorf("refreshing session: %w", err)
	}
}

// =============================================================================

func (s *Service) provider(r *http.Request) (*OauthProvider, error) {
	name := web.Param(r, "provider")
	p, ok := s.oauth[name]
	if !ok {
		return nil, weberr.NotFound(fmt.Errorf("oauth provider %q not configured", name))
	}
	return p, nil
}

func (s *Service) HandleOauthLogin() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := s.provider(r)
		if err != nil {
			return err
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}
		s.sm.Put(ctx, oauthStateKey, state)

		return web.Redirect(w, r, p.AuthCodeURL(state))
	}
}

func (s *Service) HandleOauthCallback() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := s.provider(r)
		if err != nil {
			return err
		}

		q := r.URL.Query()
		want := s.sm.PopString(ctx, oauthStateKey)
		if want == "" || q.Get("state") != want {
			return weberr.BadRequest(ErrOauthState)
		}

		id, err := p.Exchange(ctx, q.Get("code"))
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("oauth callback from %s: %w", p.Name, err))
		}
		if id.Email == "" || !id.Verified {
			return weberr.Forbidden(fmt.Errorf("%s did not vouch for the email address", p.Name))
		}

		sess, err := s.backend.SignInExternal(ctx, p.Name, id.Email, id.Metadata)
		if err != nil {
			return fmt.Errorf("signing in with %s: %w", p.Name, err)
		}

		if err := s.establish(ctx, sess.Token); err != nil {
			return err
		}
		return web.Redirect(w, r, s.loginRedirectURL)
	}
}
