package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/zeusync/objectsync/internal/core/object"
)

// StaticSession always returns the same token. An empty token means
// anonymous access.
type StaticSession string

// SessionToken implements object.SessionProvider.
func (s StaticSession) SessionToken(context.Context) (string, error) {
	return string(s), nil
}

// JWTSession serves a JWT session token and refuses it once its exp claim
// has passed. The signature is checked by the server, not here.
type JWTSession struct {
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewJWTSession reads the exp claim of token without verifying it.
func NewJWTSession(token string) (*JWTSession, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	s := &JWTSession{token: token, now: time.Now}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if exp != nil {
		s.expiresAt = exp.Time
	}
	return s, nil
}

// ExpiresAt is zero when the token has no exp claim.
func (s *JWTSession) ExpiresAt() time.Time { return s.expiresAt }

// SessionToken returns the token, or ErrSessionExpired after exp.
func (s *JWTSession) SessionToken(context.Context) (string, error) {
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", ErrSessionExpired
	}
	return s.token, nil
}

// looksLikeJWT reports whether token has the three dot separated segments of
// a compact JWT.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// sessionFor picks the provider for a configured token.
func sessionFor(token string) (object.SessionProvider, error) {
	if looksLikeJWT(token) {
		s, err := NewJWTSession(token)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return StaticSession(token), nil
}
