package handler

import (
	"strings"

	dErrors "listcart/pkg/domain-errors"
)

const (
	GrantPassword     = "password"
	GrantRefreshToken = "refresh_token"
)

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (r *TokenRequest) Validate() error {
	r.GrantType = strings.TrimSpace(r.GrantType)
	r.Username = strings.TrimSpace(r.Username)
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
	switch r.GrantType {
	case GrantPassword:
		if r.Username == "" || r.Password == "" {
			return dErrors.New(dErrors.CodeValidation, "username and password are required")
		}
	case GrantRefreshToken:
		if r.RefreshToken == "" {
			return dErrors.New(dErrors.CodeValidation, "refresh_token is required")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "unsupported grant_type")
	}
	return nil
}
