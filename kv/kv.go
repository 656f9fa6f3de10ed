// Package kv provides the synchronous key-value storage scoped to one
// browsing context. The cart and the locale store persist through it.
package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("key not found")

type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// =============================================================================

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// File stores every key as its own file at the root of an afero filesystem.
// Writes go through a temporary file and a rename so a crash never leaves a
// torn value.
type File struct {
	fs afero.Fs
	mu sync.Mutex
}

// NewFile stores the keys below dir on the local disk.
func NewFile(dir string) (*File, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir %s: %w", dir, err)
	}
	return NewFileFs(afero.NewBasePathFs(osfs, dir)), nil
}

func NewFileFs(fs afero.Fs) *File {
	return &File{fs: fs}
}

func (f *File) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return "/" + key, nil
}

func (f *File) Get(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	b, err := afero.ReadFile(f.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (f *File) Set(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := afero.TempFile(f.fs, "/", key+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		f.fs.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmp.Name())
		return err
	}
	return f.fs.Rename(tmp.Name(), p)
}

func (f *File) Remove(key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// =============================================================================

// Session scopes storage to the browser session loaded into ctx by the scs
// LoadAndSave middleware.
type Session struct {
	ctx context.Context
	sm  *scs.SessionManager
}

func NewSession(ctx context.Context, sm *scs.SessionManager) *Session {
	return &Session{ctx: ctx, sm: sm}
}

func (s *Session) Get(key string) ([]byte, error) {
	if !s.sm.Exists(s.ctx, key) {
		return nil, ErrNotFound
	}
	return s.sm.GetBytes(s.ctx, key), nil
}

func (s *Session) Set(key string, value []byte) error {
	s.sm.Put(s.ctx, key, value)
	return nil
}

func (s *Session) Remove(key string) error {
	s.sm.Remove(s.ctx, key)
	return nil
}

// =============================================================================

// SessionStore keeps scs sessions in a Storage, so sessions on a File
// storage survive restarts. Values are prefixed with their expiry.
type SessionStore struct {
	storage Storage
	now     func() time.Time
}

func NewSessionStore(s Storage) *SessionStore {
	return &SessionStore{storage: s, now: time.Now}
}

func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	b, err := s.storage.Get(token)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case len(b) < 8:
		return nil, false, s.storage.Remove(token)
	}

	exp := time.Unix(0, int64(binary.BigEndian.Uint64(b[:8])))
	if !s.now().Before(exp) {
		return nil, false, s.storage.Remove(token)
	}
	return b[8:], true, nil
}

func (s *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	v := make([]byte, 8, 8+len(b))
	binary.BigEndian.PutUint64(v, uint64(expiry.UnixNano()))
	return s.storage.Set(token, append(v, b...))
}

func (s *SessionStore) Delete(token string) error {
	return s.storage.Remove(token)
}
