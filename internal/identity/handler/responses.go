package handler

import (
	"math"
	"time"

	"listcart/internal/identity"
)

// TokenResponse is the body returned for a successful grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Subject      string `json:"subject"`
}

func FromTokenPair(pair *identity.TokenPair, now time.Time) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(math.Max(0, pair.AccessExpiresAt.Sub(now).Seconds())),
		Subject:      pair.Subject.String(),
	}
}

// UserInfoResponse identifies the bearer of an access token.
type UserInfoResponse struct {
	Subject string `json:"sub"`
}
