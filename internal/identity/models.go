package identity

import (
	"time"

	"listcart/pkg/domain"
)

// User is a credential record loaded from the users file.
type User struct {
	Username     string `yaml:"username"`
	Subject      string `yaml:"subject"`
	PasswordHash string `yaml:"password_hash"`
}

// RefreshTokenRecord is a single-use refresh token bound to a subject.
type RefreshTokenRecord struct {
	Token     string
	Subject   domain.SubjectID
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// TokenPair is the result of a successful password or refresh grant.
type TokenPair struct {
	Subject          domain.SubjectID
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
