package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	SignedOut State = iota
	Resolving
	SignedIn
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case SignedIn:
		return "signed_in"
	}
	return "signed_out"
}

type Snapshot struct {
	State State
	User  *User
}

var ErrClosed = errors.New("auth session closed")

// Tracker follows the authentication state of one browsing context:
//
//	SignedOut -> [sign in | sign up] -> Resolving -> SignedIn(role)
//	SignedIn  -> [session ended]                  -> SignedOut
//	SignedIn  -> [session refreshed]              -> Resolving -> SignedIn(role')
//
// Every transition into Resolving bumps a generation. A resolution that
// finishes after a newer one started is dropped, so the latest event wins.
type Tracker struct {
	log      logrus.FieldLogger
	provider Provider
	resolver *Resolver
	obs      Observer
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	mu        sync.Mutex
	state     State
	user      *User
	token     string
	gen       uint64
	changed   chan struct{}
	nextID    int
	listeners map[int]func(Snapshot)
}

func NewTracker(log logrus.FieldLogger, p Provider, r *Resolver) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		log:       log,
		provider:  p,
		resolver:  r,
		obs:       r.obs,
		timeout:   10 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
		changed:   make(chan struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
	t.unsub = p.Subscribe(t.onEvent)
	return t
}

// Close stops listening to the provider and abandons in-flight resolutions.
func (t *Tracker) Close() {
	t.unsub()
	t.cancel()
}

// Subscribe registers fn for every state change. The returned function
// cancels the subscription.
func (t *Tracker) Subscribe(fn func(Snapshot)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() Snapshot {
	s := Snapshot{State: t.state}
	if t.user != nil {
		u := *t.user
		s.User = &u
	}
	return s
}

func (t *Tracker) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// =============================================================================

func (t *Tracker) SignIn(ctx context.Context, email, password string) (User, error) {
	s, err := t.provider.SignIn(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	return t.adopt(ctx, s)
}

func (t *Tracker) SignUp(ctx context.Context, email, password string, meta Metadata) (User, error) {
	s, err := t.provider.SignUp(ctx, email, password, meta)
	if err != nil {
		return User{}, err
	}
	return t.adopt(ctx, s)
}

// Resume rebuilds the state from an existing session token.
func (t *Tracker) Resume(ctx context.Context, token string) (User, error) {
	p, err := t.provider.CurrentPrincipal(ctx, token)
	if err != nil {
		t.signedOut(token)
		return User{}, err
	}
	return t.adopt(ctx, &Session{Token: token, Principal: p})
}

// SignOut waits for the provider to confirm before clearing local state. On
// failure the tracker stays signed in and the error is returned.
func (t *Tracker) SignOut(ctx context.Context) error {
	token := t.Token()
	if token == "" {
		t.signedOut("")
		return nil
	}

	if err := t.provider.SignOut(ctx, token); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}

	// Providers confirm with a SIGNED_OUT event; this covers those that don't.
	t.signedOut(token)
	return nil
}

type refresher interface {
	Refresh(ctx context.Context, token string) (*Session, error)
}

// Refresh extends the tracked session and waits for the role resolution the
// refresh starts.
func (t *Tracker) Refresh(ctx context.Context) (User, error) {
	r, ok := t.provider.(refresher)
	if !ok {
		return User{}, ErrNoRefresh
	}

	t.mu.Lock()
	token, before := t.token, t.gen
	t.mu.Unlock()
	if token == "" {
		return User{}, ErrSessionNotFound
	}

	s, err := r.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			t.signedOut(token)
		}
		return User{}, err
	}

	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()

	// Providers announce with TOKEN_REFRESHED; this covers those that don't.
	if gen == before {
		gen = t.begin(s.Principal)
	}
	return t.wait(ctx, gen)
}

func (t *Tracker) adopt(ctx context.Context, s *Session) (User, error) {
	t.mu.Lock()
	t.token = s.Token
	t.mu.Unlock()

	gen := t.begin(s.Principal)
	return t.wait(ctx, gen)
}

// =============================================================================

func (t *Tracker) onEvent(ev Event, s *Session) {
	if s == nil {
		return
	}

	t.mu.Lock()
	mine := t.token != "" && s.Token == t.token
	t.mu.Unlock()
	if !mine {
		return
	}

	switch ev {
	case EventSignedOut:
		t.signedOut(s.Token)
	case EventTokenRefreshed, EventUserUpdated, EventSignedIn:
		t.begin(s.Principal)
	}
}

// begin moves to Resolving and starts a resolution tagged with a fresh
// generation.
func (t *Tracker) begin(p Principal) uint64 {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.state = Resolving
	snap, ls := t.transition()
	t.mu.Unlock()

	notify(ls, snap)

	go t.resolve(gen, p)
	return gen
}

func (t *Tracker) resolve(gen uint64, p Principal) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	u := t.resolver.Resolve(ctx, p)

	t.mu.Lock()
	if gen != t.gen || t.state != Resolving {
		t.mu.Unlock()
		t.obs.Resolution("stale")
		t.log.WithField("user_id", p.ID).Debug("discarding superseded role resolution")
		return
	}
	t.state = SignedIn
	t.user = &u
	snap, ls := t.transition()
	t.mu.Unlock()

	notify(ls, snap)
}

func (t *Tracker) signedOut(token string) {
	t.mu.Lock()
	if token != "" && t.token != "" && token != t.token {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.state = SignedOut
	t.user = nil
	t.token = ""
	snap, ls := t.transition()
	t.mu.Unlock()

	notify(ls, snap)
}

// transition wakes waiters and returns what listeners must be told. Callers
// hold t.mu.
func (t *Tracker) transition() (Snapshot, []func(Snapshot)) {
	close(t.changed)
	t.changed = make(chan struct{})

	ls := make([]func(Snapshot), 0, len(t.listeners))
	for _, l := range t.listeners {
		ls = append(ls, l)
	}
	return t.snapshot(), ls
}

func notify(ls []func(Snapshot), s Snapshot) {
	for _, l := range ls {
		l(s)
	}
}

// wait blocks until the resolution started at gen, or a later transition,
// settles.
func (t *Tracker) wait(ctx context.Context, gen uint64) (User, error) {
	for {
		t.mu.Lock()
		switch {
		case t.state == SignedIn && t.gen >= gen:
			u := *t.user
			t.mu.Unlock()
			return u, nil
		case t.state == SignedOut && t.gen > gen:
			t.mu.Unlock()
			return User{}, ErrSessionNotFound
		}
		ch := t.changed
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return User{}, ctx.Err()
		case <-t.ctx.Done():
			return User{}, ErrClosed
		}
	}
}
