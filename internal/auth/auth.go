// Package auth resolves the bearer token sent with backend requests.
// A token saved by `kx login` wins; otherwise an external identity source
// is asked, and any failure there just means "no token".
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/config"
	"github.com/rs/zerolog"
)

const fileName = "token"

// Store persists the token in the config directory.
type Store struct {
	path string
}

// NewStore returns a Store backed by ~/.kx/token.
func NewStore() *Store {
	return &Store{path: filepath.Join(config.Dir(), fileName)}
}

// NewStoreAt returns a Store backed by path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Load returns the saved token, or "" if none is saved.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token with owner-only permissions.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token+"\n"), 0o600)
}

// Clear removes the saved token. Clearing an absent token is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Resolver implements api.TokenSource.
type Resolver struct {
	Store    *Store
	Fallback api.TokenSource
	Logger   zerolog.Logger
}

// Token never returns an error: an unreadable store and a failing fallback
// both resolve to "", which sends the request unauthenticated.
func (r *Resolver) Token(ctx context.Context) (string, error) {
	if r.Store != nil {
		tok, err := r.Store.Load()
		if err != nil {
			r.Logger.Debug().Err(err).Str("path", r.Store.Path()).Msg("could not read saved token")
		} else if tok != "" {
			return tok, nil
		}
	}
	if r.Fallback == nil {
		return "", nil
	}
	tok, err := r.Fallback.Token(ctx)
	if err != nil {
		r.Logger.Debug().Err(err).Msg("failed to get auth token from fallback source")
		return "", nil
	}
	return tok, nil
}

// ErrNoEnvToken is returned by EnvSource when the variable is unset.
var ErrNoEnvToken = errors.New("auth: token environment variable not set")

// EnvSource reads a token from the named environment variable.
func EnvSource(name string) api.TokenSource {
	return api.TokenFunc(func(context.Context) (string, error) {
		if name == "" {
			return "", ErrNoEnvToken
		}
		tok := strings.TrimSpace(os.Getenv(name))
		if tok == "" {
			return "", fmt.Errorf("%w: %s", ErrNoEnvToken, name)
		}
		return tok, nil
	})
}

// StaticSource always returns token.
func StaticSource(token string) api.TokenSource {
	return api.TokenFunc(func(context.Context) (string, error) { return token, nil })
}

// Session tracks whether the user is logged in and tells subscribers when
// that changes.
type Session struct {
	mu        sync.Mutex
	store     *Store
	authed    bool
	listeners []func(bool)
}

// NewSession restores the logged-in state from the store.
func NewSession(store *Store) *Session {
	s := &Session{store: store}
	if tok, err := store.Load(); err == nil && tok != "" {
		s.authed = true
	}
	return s
}

// Authenticated reports the current state.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// OnChange registers fn and calls it once with the current state.
func (s *Session) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	authed := s.authed
	s.mu.Unlock()
	fn(authed)
}

// Login saves token and marks the session authenticated.
func (s *Session) Login(token string) error {
	if err := s.store.Save(token); err != nil {
		return err
	}
	s.set(true)
	return nil
}

// Logout clears the saved token.
func (s *Session) Logout() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.set(false)
	return nil
}

func (s *Session) set(authed bool) {
	s.mu.Lock()
	changed := s.authed != authed
	s.authed = authed
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(authed)
	}
}
