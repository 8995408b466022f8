// Package auth provides the bearer-token accessor used by the remote
// calendar and task-list collaborators.
//
// A Manager reads a cached token and, when none is valid, asks its
// Authenticator for a new one. The serving path wires the Deferred
// authenticator, which always fails with ErrUnauthenticated, so the
// application keeps running on local data until `daycard login` has run the
// interactive OAuth flow and populated the cache.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "daycard/internal/log"
)

// ErrUnauthenticated means no usable token is available. Callers treat it as
// "cannot reach remote collaborator".
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// expirySkew treats tokens about to expire as already expired.
const expirySkew = 30 * time.Second

// Token is the cached credential. ExpiresAt is stored alongside the token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(expirySkew).Before(t.ExpiresAt)
}

// TokenSource returns a bearer token or ErrUnauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenCache persists a single token.
type TokenCache interface {
	Load() (Token, bool)
	Store(Token) error
	Clear() error
}

// Authenticator obtains a fresh token.
type Authenticator interface {
	Authenticate(ctx context.Context) (Token, error)
}

// Deferred is the placeholder authenticator for non-interactive paths.
type Deferred struct{}

func (Deferred) Authenticate(context.Context) (Token, error) {
	appLog.Debug("authentication flow not available here; run `daycard login`")
	return Token{}, ErrUnauthenticated
}

// Manager implements TokenSource on top of a cache and an authenticator.
type Manager struct {
	cache TokenCache
	authn Authenticator
	now   func() time.Time

	mu sync.Mutex
}

// NewManager wires a cache and authenticator. A nil authenticator behaves
// like Deferred.
func NewManager(cache TokenCache, authn Authenticator) *Manager {
	if authn == nil {
		authn = Deferred{}
	}
	return &Manager{
		cache: cache,
		authn: authn,
		now:   time.Now,
	}
}

// Token returns the cached access token while it is valid, otherwise runs
// the authenticator and caches its result.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache != nil {
		if tok, ok := m.cache.Load(); ok && tok.Valid(m.now()) {
			return tok.AccessToken, nil
		}
	}

	tok, err := m.authn.Authenticate(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !tok.Valid(m.now()) {
		return "", ErrUnauthenticated
	}

	if m.cache != nil {
		if err := m.cache.Store(tok); err != nil {
			appLog.Error("token cache write failed", err)
		}
	}
	return tok.AccessToken, nil
}

// IsAuthenticated reports whether a valid token is cached. It never runs the
// authenticator.
func (m *Manager) IsAuthenticated() bool {
	if m.cache == nil {
		return false
	}
	tok, ok := m.cache.Load()
	return ok && tok.Valid(m.now())
}

// SignOut forgets the cached token.
func (m *Manager) SignOut() error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Clear()
}
