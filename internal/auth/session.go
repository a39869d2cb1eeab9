package auth

import (
	"log"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the fields the storefront backend puts in its tokens
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// User is the signed-in account as returned by the auth API
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TokenStore persists the bearer token between runs
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// InspectToken reads the claims of a JWT without verifying its signature;
// only the backend can verify it. Tokens that are not JWTs yield
// ErrInvalidToken.
func InspectToken(token string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrExpiredToken
	}
	return claims, nil
}

// Session holds the bearer token. An absent or expired token means cart
// operations take the local path.
type Session struct {
	mu     sync.RWMutex
	token  string
	claims *Claims
	user   *User
	store  TokenStore
	now    func() time.Time
}

func NewSession(store TokenStore) *Session {
	return &Session{store: store, now: time.Now}
}

// Restore loads a previously saved token. An expired token is discarded.
func (s *Session) Restore() error {
	if s.store == nil {
		return nil
	}
	token, err := s.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	if err := s.set(token, nil); err != nil {
		if errors.Is(err, ErrExpiredToken) {
			log.Printf("[Auth] Saved token has expired, discarding")
			s.Clear()
			return nil
		}
		return err
	}
	return nil
}

// SignIn stores token and user. Opaque tokens are accepted as-is.
func (s *Session) SignIn(token string, user *User) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := s.set(token, user); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Save(token); err != nil {
			log.Printf("[Auth] Failed to persist token: %v", err)
		}
	}
	return nil
}

func (s *Session) set(token string, user *User) error {
	claims, err := InspectToken(token, s.now())
	switch {
	case errors.Is(err, ErrExpiredToken):
		return err
	case err != nil:
		claims = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = claims
	s.user = user
	return nil
}

// Token returns the bearer token, or "" when signed out. A token that
// expired since sign-in clears the session.
func (s *Session) Token() string {
	s.mu.RLock()
	token, claims := s.token, s.claims
	s.mu.RUnlock()

	if claims != nil && claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		log.Printf("[Auth] Token expired, signing out")
		s.Clear()
		return ""
	}
	return token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// UserID prefers the profile id and falls back to the token claims
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.user != nil && s.user.ID != "":
		return s.user.ID
	case s.claims != nil && s.claims.UserID != "":
		return s.claims.UserID
	case s.claims != nil:
		return s.claims.Subject
	}
	return ""
}

func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) SetUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// ExpiresAt returns the token expiry, zero for opaque tokens
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil || s.claims.ExpiresAt == nil {
		return time.Time{}
	}
	return s.claims.ExpiresAt.Time
}

// Clear signs out and removes the persisted token
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.user = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			log.Printf("[Auth] Failed to remove persisted token: %v", err)
		}
	}
}
