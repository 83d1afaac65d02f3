// Package auth holds the viewer's backend session token. Login, refresh and
// the rest of authentication live in the backend service; this package only
// keeps the token and decodes its expiry so callers can log dead sessions
// instead of firing doomed requests.
package auth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is a process-wide holder for the current access token. Update may
// be called from any goroutine when the UI layer refreshes the session.
type Session struct {
	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

func NewSession(accessToken string) *Session {
	s := &Session{}
	s.Update(accessToken)
	return s
}

// Update replaces the token and re-decodes its expiry claim.
func (s *Session) Update(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = accessToken
	s.expiresAt = time.Time{}
	if accessToken == "" {
		return
	}

	// The token is verified by the backend; here we only need the claims,
	// so signature verification is deliberately skipped.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		slog.Warn("access token could not be decoded, expiry unknown", "error", err)
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	s.expiresAt = exp.Time
}

// Token returns the current access token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Expired reports whether the token's expiry claim has passed. A token with
// no decodable expiry reads as not expired; the backend has the final say.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}
