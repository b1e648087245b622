// Package session stores the bearer credential and resolves the current
// user id from it. Tokens are never validated locally, since the backend
// owns the signing secret, but the embedded claims identify the user and let
// the client notice expiry without a round-trip.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/habi/habi-go/internal/localstore"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrMalformedToken = errors.New("malformed session token")
)

// Claims are the token claims the Habi backend issues.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// Session resolves the current credential and user from the local store.
type Session struct {
	store *localstore.Store
	now   func() time.Time
}

// New creates a session manager backed by the given local store.
func New(store *localstore.Store) *Session {
	return &Session{store: store, now: time.Now}
}

// SetToken stores a freshly issued bearer token.
func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.store.Set(ctx, localstore.TokenKey, token)
}

// Token returns the stored bearer token, or ErrNoSession when absent.
func (s *Session) Token(ctx context.Context) (string, error) {
	token, ok, err := s.store.Get(ctx, localstore.TokenKey)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

// UserID resolves the current user id from the stored token's claims.
func (s *Session) UserID(ctx context.Context) (int64, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return 0, err
	}
	claims, err := parseClaims(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Expired reports whether the stored token's exp claim has passed. The
// server remains the authority; this only pre-empts a guaranteed 401.
func (s *Session) Expired(ctx context.Context) (bool, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return false, err
	}
	claims, err := parseClaims(token)
	if err != nil {
		return false, err
	}
	if claims.ExpiresAt == nil {
		return false, nil
	}
	return claims.ExpiresAt.Before(s.now()), nil
}

// Clear removes the stored credential, including the legacy unscoped key.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, localstore.TokenKey, "token")
}

// parseClaims decodes the token without verifying its signature.
func parseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrMalformedToken
	}
	if claims.UserID == 0 {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
