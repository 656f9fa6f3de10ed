package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrNoRefresh          = errors.New("provider cannot refresh sessions")
)

// Metadata is what the user typed at sign-up. It travels with the principal
// and backs the display names when no profile can be read.
type Metadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Principal is the raw identity returned by the auth backend, before any
// role or profile enrichment.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	Metadata  Metadata  `json:"user_metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated session handed out by a Provider.
type Session struct {
	Token     string    `json:"-"`
	Principal Principal `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

type Listener func(ev Event, s *Session)

// Provider is the backend auth interface.
type Provider interface {
	SignUp(ctx context.Context, email, password string, meta Metadata) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, email string) error
	CurrentPrincipal(ctx context.Context, token string) (Principal, error)
	Subscribe(fn Listener) (cancel func())
}

// =============================================================================

// Broadcaster fans auth events out to subscribers. Listeners run on the
// emitting goroutine, outside the lock, so they may unsubscribe themselves.
type Broadcaster struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

func (b *Broadcaster) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.next
	b.next++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Emit(ev Event, s *Session) {
	b.mu.Lock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.Unlock()

	for _, l := range ls {
		l(ev, s)
	}
}
