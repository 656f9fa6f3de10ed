package kv

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func exercise(t *testing.T, s Storage) {
	t.Helper()

	if _, err := s.Get("cart"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty storage, got %v", err)
	}

	if err := s.Set("cart", []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("cart", []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Get("cart")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("expected [1,2], got %s", got)
	}

	if err := s.Remove("cart"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove("cart"); err != nil {
		t.Fatalf("removing a missing key must not fail: %v", err)
	}
	if _, err := s.Get("cart"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, f)

	if err := f.Set("../escape", []byte("x")); err == nil {
		t.Fatal("expected an error for a key with a path separator")
	}
}

func TestFileOnMemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := NewFileFs(fs)
	exercise(t, f)

	if err := f.Set("locale", []byte("fr")); err != nil {
		t.Fatal(err)
	}
	infos, err := afero.ReadDir(fs, "/")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	if diff := cmp.Diff([]string{"locale"}, names); diff != "" {
		t.Fatalf("files mismatch, temporary files must not linger (-want +got):\n%s", diff)
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	f, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Set("locale", []byte("fr")); err != nil {
		t.Fatal(err)
	}

	g, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := g.Get("locale")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fr" {
		t.Fatalf("expected fr, got %s", got)
	}
}

func TestSession(t *testing.T) {
	sm := scs.New()

	var ran bool
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		exercise(t, NewSession(r.Context(), sm))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !ran {
		t.Fatal("handler did not run")
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(NewMemory())
	s.now = func() time.Time { return now }

	if err := s.Commit("tok", []byte("state"), now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	b, found, err := s.Find("tok")
	if err != nil || !found || string(b) != "state" {
		t.Fatalf("expected the live session, got %q %v %v", b, found, err)
	}

	now = now.Add(time.Minute)
	if _, found, err := s.Find("tok"); err != nil || found {
		t.Fatalf("expected the session to be expired, got %v %v", found, err)
	}
	if _, err := s.storage.Get("tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the expired session to be removed, got %v", err)
	}
}

func TestSessionStoreOnFile(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}

	sm := scs.New()
	sm.Store = NewSessionStore(f)

	var cookie *http.Cookie
	put := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Put(r.Context(), "locale", "fr")
	}))
	w := httptest.NewRecorder()
	put.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, c := range w.Result().Cookies() {
		if c.Name == sm.Cookie.Name {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}

	// A new manager over the same directory sees the session.
	g, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	sm2 := scs.New()
	sm2.Store = NewSessionStore(g)

	var got string
	get := sm2.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = sm2.GetString(r.Context(), "locale")
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	get.ServeHTTP(httptest.NewRecorder(), r)

	if got != "fr" {
		t.Fatalf("expected fr, got %q", got)
	}
}
