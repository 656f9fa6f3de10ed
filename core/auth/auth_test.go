package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/raiseup/core/claims"
	"github.com/irsalhamdi/raiseup/core/profile"
	"github.com/sirupsen/logrus"
)

func discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func strp(s string) *string { return &s }

type profiles struct {
	prof profile.Profile
	err  error
}

func (p profiles) FetchProfile(ctx context.Context, id string) (profile.Profile, error) {
	return p.prof, p.err
}

// grants answers from fn so tests can delay or vary individual calls.
type grants struct {
	fn func(call int) ([]claims.Role, error)

	mu    sync.Mutex
	calls int
}

func (g *grants) FetchGrants(ctx context.Context, userID string) ([]claims.Role, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	return g.fn(n)
}

func fixed(roles ...claims.Role) *grants {
	return &grants{fn: func(int) ([]claims.Role, error) { return roles, nil }}
}

type recorder struct {
	ch chan string
}

func (r recorder) Resolution(outcome string) { r.ch <- outcome }

func newRecorder() recorder { return recorder{ch: make(chan string, 16)} }

func (r recorder) await(t *testing.T, outcome string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.ch:
			if got == outcome {
				return
			}
		case <-timeout:
			t.Fatalf("no %q resolution observed", outcome)
		}
	}
}

var principal = Principal{
	ID:       "8e5f7b3a-1b9c-4a1e-9d7e-2f9f3c1d0a11",
	Email:    "ada@example.com",
	Provider: "email",
	Metadata: Metadata{FirstName: "Ada", LastName: "Lovelace"},
}

// =============================================================================

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		grants []claims.Role
		want   claims.Role
	}{
		{"instructor and admin", []claims.Role{claims.RoleInstructor, claims.RoleAdmin}, claims.RoleAdmin},
		{"instructor only", []claims.Role{claims.RoleInstructor}, claims.RoleInstructor},
		{"no grants", nil, claims.RoleStudent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(discard(), profiles{err: profile.ErrNotFound}, fixed(tt.grants...), nil)
			u := r.Resolve(context.Background(), principal)
			if u.Role != tt.want {
				t.Fatalf("expected role %s, got %s", tt.want, u.Role)
			}
		})
	}
}

func TestResolveNamesPreferProfile(t *testing.T) {
	prof := profile.Profile{ID: principal.ID, FirstName: strp("Augusta"), LastName: strp("")}
	r := NewResolver(discard(), profiles{prof: prof}, fixed(), nil)

	u := r.Resolve(context.Background(), principal)

	if diff := cmp.Diff(strp("Augusta"), u.FirstName); diff != "" {
		t.Fatalf("first name mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(strp("Lovelace"), u.LastName); diff != "" {
		t.Fatalf("last name mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveProfileFailureDegradesToStudent(t *testing.T) {
	g := fixed(claims.RoleAdmin)
	rec := newRecorder()
	r := NewResolver(discard(), profiles{err: errors.New("connection reset")}, g, rec)

	u := r.Resolve(context.Background(), principal)

	want := User{
		Principal: principal,
		Role:      claims.RoleStudent,
		FirstName: strp("Ada"),
		LastName:  strp("Lovelace"),
	}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}
	if g.calls != 0 {
		t.Fatalf("grants must not be read when the profile is unavailable, got %d calls", g.calls)
	}
	rec.await(t, "degraded")
}

func TestResolveGrantsFailureUsesProfileRole(t *testing.T) {
	failing := &grants{fn: func(int) ([]claims.Role, error) { return nil, errors.New("timeout") }}

	prof := profile.Profile{ID: principal.ID, Role: strp("instructor")}
	r := NewResolver(discard(), profiles{prof: prof}, failing, nil)
	if u := r.Resolve(context.Background(), principal); u.Role != claims.RoleInstructor {
		t.Fatalf("expected the embedded role instructor, got %s", u.Role)
	}

	r = NewResolver(discard(), profiles{prof: profile.Profile{ID: principal.ID}}, failing, nil)
	if u := r.Resolve(context.Background(), principal); u.Role != claims.RoleStudent {
		t.Fatalf("expected student without an embedded role, got %s", u.Role)
	}
}

// =============================================================================

type provider struct {
	Broadcaster

	mu        sync.Mutex
	token     string
	principal Principal
	signOut   error
}

func (p *provider) current() (string, Principal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, p.principal
}

// expire invalidates the live session, as if it timed out on the backend.
func (p *provider) expire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = "tok-expired"
}

func (p *provider) SignUp(ctx context.Context, email, password string, meta Metadata) (*Session, error) {
	return p.SignIn(ctx, email, password)
}

func (p *provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if password != "secret" {
		return nil, ErrInvalidCredentials
	}
	token, pr := p.current()
	s := &Session{Token: token, Principal: pr}
	p.Emit(EventSignedIn, s)
	return s, nil
}

func (p *provider) Refresh(ctx context.Context, token string) (*Session, error) {
	pr, err := p.CurrentPrincipal(ctx, token)
	if err != nil {
		return nil, err
	}
	s := &Session{Token: token, Principal: pr, ExpiresAt: time.Now().Add(time.Hour)}
	p.Emit(EventTokenRefreshed, s)
	return s, nil
}

func (p *provider) UpdatePassword(ctx context.Context, resetToken, password string) error {
	return ErrInvalidResetToken
}

func (p *provider) SignInExternal(ctx context.Context, name, email string, meta Metadata) (*Session, error) {
	return p.SignIn(ctx, email, "secret")
}

func (p *provider) SignOut(ctx context.Context, token string) error {
	if p.signOut != nil {
		return p.signOut
	}
	p.Emit(EventSignedOut, &Session{Token: token})
	return nil
}

func (p *provider) ResetPassword(ctx context.Context, email string) error { return nil }

func (p *provider) CurrentPrincipal(ctx context.Context, token string) (Principal, error) {
	live, pr := p.current()
	if token != live {
		return Principal{}, ErrSessionNotFound
	}
	return pr, nil
}

func newProvider() *provider {
	return &provider{token: "tok-1", principal: principal}
}

func TestTrackerSignIn(t *testing.T) {
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{err: profile.ErrNotFound}, fixed(claims.RoleInstructor), nil))
	defer tr.Close()

	seen := make(chan State, 4)
	cancel := tr.Subscribe(func(s Snapshot) { seen <- s.State })
	defer cancel()

	if got := tr.Snapshot().State; got != SignedOut {
		t.Fatalf("expected a new tracker to be signed out, got %s", got)
	}

	u, err := tr.SignIn(context.Background(), principal.Email, "secret")
	if err != nil {
		t.Fatalf("signing in: %s", err)
	}
	if u.Role != claims.RoleInstructor {
		t.Fatalf("expected instructor, got %s", u.Role)
	}
	if tr.Token() != "tok-1" {
		t.Fatalf("expected the session token to be kept, got %q", tr.Token())
	}

	var states []State
	for len(states) < 2 {
		select {
		case s := <-seen:
			states = append(states, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing transitions, got %v", states)
		}
	}
	if diff := cmp.Diff([]State{Resolving, SignedIn}, states); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackerBadCredentialsStaySignedOut(t *testing.T) {
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{}, fixed(), nil))
	defer tr.Close()

	if _, err := tr.SignIn(context.Background(), principal.Email, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if got := tr.Snapshot().State; got != SignedOut {
		t.Fatalf("expected signed out, got %s", got)
	}
}

func TestTrackerProfileFailureStillSignsIn(t *testing.T) {
	p := newProvider()
	r := NewResolver(discard(), profiles{err: errors.New("backend down")}, fixed(claims.RoleAdmin), nil)
	tr := NewTracker(discard(), p, r)
	defer tr.Close()

	u, err := tr.SignIn(context.Background(), principal.Email, "secret")
	if err != nil {
		t.Fatalf("a profile failure must not fail the sign in: %s", err)
	}
	if u.Role != claims.RoleStudent {
		t.Fatalf("expected student, got %s", u.Role)
	}
	if u.FirstName == nil || *u.FirstName != "Ada" || u.LastName == nil || *u.LastName != "Lovelace" {
		t.Fatalf("expected sign-up names, got %v %v", u.FirstName, u.LastName)
	}
}

func TestTrackerDiscardsStaleResolution(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	g := &grants{fn: func(call int) ([]claims.Role, error) {
		if call == 1 {
			close(started)
			<-release
			return []claims.Role{claims.RoleStudent}, nil
		}
		return []claims.Role{claims.RoleAdmin}, nil
	}}

	rec := newRecorder()
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{err: profile.ErrNotFound}, g, rec))
	defer tr.Close()

	type result struct {
		u   User
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := tr.SignIn(context.Background(), principal.Email, "secret")
		done <- result{u, err}
	}()

	<-started
	p.Emit(EventTokenRefreshed, &Session{Token: "tok-1", Principal: principal})

	res := <-done
	if res.err != nil {
		t.Fatalf("signing in: %s", res.err)
	}
	if res.u.Role != claims.RoleAdmin {
		t.Fatalf("expected the latest resolution to win, got %s", res.u.Role)
	}

	close(release)
	rec.await(t, "stale")

	snap := tr.Snapshot()
	if snap.State != SignedIn || snap.User.Role != claims.RoleAdmin {
		t.Fatalf("stale resolution overwrote the state: %s %+v", snap.State, snap.User)
	}
}

func TestTrackerSessionEndedEvent(t *testing.T) {
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{}, fixed(), nil))
	defer tr.Close()

	if _, err := tr.SignIn(context.Background(), principal.Email, "secret"); err != nil {
		t.Fatal(err)
	}

	p.Emit(EventSignedOut, &Session{Token: "other"})
	if got := tr.Snapshot().State; got != SignedIn {
		t.Fatalf("an event for another session must be ignored, got %s", got)
	}

	p.Emit(EventSignedOut, &Session{Token: "tok-1"})
	snap := tr.Snapshot()
	if snap.State != SignedOut || snap.User != nil || tr.Token() != "" {
		t.Fatalf("expected a cleared signed out state, got %+v token %q", snap, tr.Token())
	}
}

func TestTrackerSignOutWaitsForConfirmation(t *testing.T) {
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{}, fixed(), nil))
	defer tr.Close()

	if _, err := tr.SignIn(context.Background(), principal.Email, "secret"); err != nil {
		t.Fatal(err)
	}

	p.signOut = errors.New("network unreachable")
	if err := tr.SignOut(context.Background()); err == nil {
		t.Fatal("expected the provider failure to be returned")
	}
	if got := tr.Snapshot().State; got != SignedIn {
		t.Fatalf("a failed sign out must keep the user signed in, got %s", got)
	}

	p.signOut = nil
	if err := tr.SignOut(context.Background()); err != nil {
		t.Fatalf("signing out: %s", err)
	}
	if got := tr.Snapshot().State; got != SignedOut {
		t.Fatalf("expected signed out, got %s", got)
	}
}

func TestTrackerResumeUnknownToken(t *testing.T) {
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{}, fixed(), nil))
	defer tr.Close()

	if _, err := tr.Resume(context.Background(), "expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if got := tr.Snapshot().State; got != SignedOut {
		t.Fatalf("expected signed out, got %s", got)
	}
}

func TestTrackerRefreshResolvesAgain(t *testing.T) {
	g := &grants{fn: func(call int) ([]claims.Role, error) {
		if call == 1 {
			return []claims.Role{claims.RoleStudent}, nil
		}
		return []claims.Role{claims.RoleInstructor}, nil
	}}

	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{err: profile.ErrNotFound}, g, nil))
	defer tr.Close()

	if _, err := tr.SignIn(context.Background(), principal.Email, "secret"); err != nil {
		t.Fatal(err)
	}

	u, err := tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refreshing: %s", err)
	}
	if u.Role != claims.RoleInstructor {
		t.Fatalf("expected the refreshed role instructor, got %s", u.Role)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls != 2 {
		t.Fatalf("expected one resolution per transition, got %d", g.calls)
	}
}

func TestTrackerRefreshExpiredSession(t *testing.T) {
	p := newProvider()
	tr := NewTracker(discard(), p, NewResolver(discard(), profiles{}, fixed(), nil))
	defer tr.Close()

	if _, err := tr.SignIn(context.Background(), principal.Email, "secret"); err != nil {
		t.Fatal(err)
	}

	p.expire()
	if _, err := tr.Refresh(context.Background()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if got := tr.Snapshot().State; got != SignedOut {
		t.Fatalf("expected signed out, got %s", got)
	}
}

func TestBroadcasterCancel(t *testing.T) {
	var b Broadcaster
	var got []Event

	cancel := b.Subscribe(func(ev Event, s *Session) { got = append(got, ev) })
	b.Emit(EventSignedIn, nil)
	cancel()
	cancel()
	b.Emit(EventSignedOut, nil)

	if diff := cmp.Diff([]Event{EventSignedIn}, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}
