package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User is the authenticated principal. Always derived from a session; it
// never outlives one.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// UUID parses the user identifier. The auth service issues UUIDs.
func (u *User) UUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// Session is the token bundle representing an authenticated browser context.
// The validity window is managed by the auth service; ExpiresAt is advisory.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// TokenClaims is the subset of access token claims the client cares about.
// The token is minted and verified by the service; we only read it.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Expired reports whether the session's access token is past its expiry at
// the given instant. Sessions without expiry information never expire here.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Unix() >= s.ExpiresAt
}

// Claims decodes the access token without verifying its signature. The
// remote service is the verifier; locally we only need the embedded
// identity and expiry.
func (s *Session) Claims() (*TokenClaims, error) {
	if s == nil || s.AccessToken == "" {
		return nil, ErrSessionMissing
	}

	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.AccessToken, claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// EmbeddedUser returns the user carried inside the session, falling back to
// the identity encoded in the access token. Used when GetUser is being rate
// limited and we would rather show slightly stale identity than none.
func (s *Session) EmbeddedUser() *User {
	if s == nil {
		return nil
	}

	if s.User != nil {
		return s.User
	}

	claims, err := s.Claims()
	if err != nil {
		return nil
	}

	if claims.Subject == "" && claims.Email == "" {
		return nil
	}

	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}
}
