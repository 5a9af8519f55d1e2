package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listcart/pkg/domain"
	"listcart/pkg/platform/sentinel"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Subject      string `json:"subject"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPIdentityProvider talks to the identity provider's token endpoint.
type HTTPIdentityProvider struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

func NewHTTPIdentityProvider(baseURL string, timeout time.Duration) *HTTPIdentityProvider {
	return &HTTPIdentityProvider{
		endpoint: strings.TrimRight(baseURL, "/") + "/auth/token",
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

func (p *HTTPIdentityProvider) Login(ctx context.Context, creds Credentials) (Session, error) {
	return p.grant(ctx, tokenRequest{GrantType: "password", Username: creds.Username, Password: creds.Password})
}

func (p *HTTPIdentityProvider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	return p.grant(ctx, tokenRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
}

// grant posts a token request. Network failures, 429 and 5xx wrap
// sentinel.ErrUnavailable; a 400 invalid_grant wraps ErrInvalidGrant.
func (p *HTTPIdentityProvider) grant(ctx context.Context, body tokenRequest) (Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Session{}, fmt.Errorf("encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Session{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	sent := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Session{}, ctx.Err()
		}
		return Session{}, fmt.Errorf("token request: %v: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Session{}, fmt.Errorf("read token response: %v: %w", err, sentinel.ErrUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Session{}, fmt.Errorf("token endpoint status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		if e.Error == "invalid_grant" {
			return Session{}, fmt.Errorf("%s grant rejected: %w", body.GrantType, ErrInvalidGrant)
		}
		return Session{}, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, e.Error)
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return Session{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" || tok.ExpiresIn <= 0 {
		return Session{}, fmt.Errorf("token response missing access_token or expires_in")
	}
	var subject domain.SubjectID
	if tok.Subject != "" {
		if subject, err = domain.ParseSubjectID(tok.Subject); err != nil {
			return Session{}, fmt.Errorf("token response subject: %w", err)
		}
	}
	return Session{
		Subject:      subject,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    sent.Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}
