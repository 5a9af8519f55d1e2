// Package session owns the device's identity session: it logs in once with
// the bootstrap credentials and keeps the access token fresh for each
// capture cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listcart/pkg/domain"
)

// ErrInvalidGrant is returned by an identity provider that rejected the
// presented credentials or refresh token.
var ErrInvalidGrant = errors.New("invalid_grant")

// Session is the in-memory identity of the device. It is never persisted.
type Session struct {
	Subject      domain.SubjectID
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the access token is usable at now with at least skew
// remaining.
func (s Session) Valid(now time.Time, skew time.Duration) bool {
	return s.AccessToken != "" && now.Add(skew).Before(s.ExpiresAt)
}

// IdentityProvider issues and refreshes sessions.
type IdentityProvider interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
}

// Refresh exchanges old's refresh token for a new session. old is not
// modified. The subject may not change across a refresh.
func Refresh(ctx context.Context, idp IdentityProvider, old Session) (Session, error) {
	if old.RefreshToken == "" {
		return Session{}, fmt.Errorf("refresh: no refresh token: %w", ErrInvalidGrant)
	}
	next, err := idp.Refresh(ctx, old.RefreshToken)
	if err != nil {
		return Session{}, err
	}
	if next.Subject == "" {
		next.Subject = old.Subject
	}
	if old.Subject != "" && next.Subject != old.Subject {
		return Session{}, fmt.Errorf("refresh: subject changed from %q to %q", old.Subject, next.Subject)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = old.RefreshToken
	}
	return next, nil
}
