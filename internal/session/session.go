package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Session is the process-wide auth state. It is safe for concurrent use and
// a token set here is seen by the very next request.
type Session struct {
	mu    sync.RWMutex
	store Store
	rec   Record
}

// Open loads the persisted token, if any.
func Open(store Store) (*Session, error) {
	rec, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Session{store: store, rec: rec}, nil
}

// Token implements apiclient.TokenSource.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.AccessToken, s.rec.AccessToken != ""
}

// IsAuthenticated reports whether a non-empty token is held. Expiry is not
// checked; the server decides.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// SetToken stores tok in memory and in the backing store.
func (s *Session) SetToken(tok string) error {
	rec := Record{AccessToken: tok}
	if exp, ok := expiresAt(tok); ok {
		rec.ExpiresAt = exp
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	return s.store.Save(rec)
}

// Clear drops the token. Calling it without a token is a no-op.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = Record{}
	return s.store.Clear()
}

// Identity returns the token subject as a user id. The signature is NOT
// verified, so the result is only a display hint.
func (s *Session) Identity() (uuid.UUID, bool) {
	tok, ok := s.Token()
	if !ok {
		return uuid.Nil, false
	}
	claims, ok := parseClaims(tok)
	if !ok || claims.Subject == "" {
		return uuid.Nil, false
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ExpiresAt returns the exp claim of the held token.
func (s *Session) ExpiresAt() (time.Time, bool) {
	tok, ok := s.Token()
	if !ok {
		return time.Time{}, false
	}
	return expiresAt(tok)
}

func expiresAt(tok string) (time.Time, bool) {
	claims, ok := parseClaims(tok)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func parseClaims(tok string) (*jwt.RegisteredClaims, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return nil, false
	}
	return &claims, true
}
