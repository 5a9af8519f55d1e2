package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listcart/internal/identity"
	dErrors "listcart/pkg/domain-errors"
	authmw "listcart/pkg/platform/middleware/auth"
)

type stubService struct {
	pair *identity.TokenPair
	err  error
	got  string
}

func (s *stubService) Authenticate(_ context.Context, username, _ string) (*identity.TokenPair, error) {
	s.got = "password:" + username
	return s.pair, s.err
}

func (s *stubService) Refresh(_ context.Context, token string) (*identity.TokenPair, error) {
	s.got = "refresh:" + token
	return s.pair, s.err
}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*authmw.Claims, error) {
	if token != "good" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &authmw.Claims{SubjectID: "alice", JTI: "j1"}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, stubValidator{}, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleToken_PasswordGrant(t *testing.T) {
	svc := &stubService{pair: &identity.TokenPair{
		Subject:         "alice",
		AccessToken:     "at",
		AccessExpiresAt: time.Now().Add(15 * time.Minute),
		RefreshToken:    "rt",
	}}
	rec := post(t, newRouter(svc), `{"grant_type":"password","username":"alice","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "password:alice", svc.got)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "at", resp.AccessToken)
	assert.Equal(t, "rt", resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "alice", resp.Subject)
	assert.InDelta(t, 900, resp.ExpiresIn, 5)
}

func TestHandleToken_RefreshGrant(t *testing.T) {
	svc := &stubService{pair: &identity.TokenPair{Subject: "alice", AccessToken: "at2", RefreshToken: "rt2"}}
	rec := post(t, newRouter(svc), `{"grant_type":"refresh_token","refresh_token":"rt1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "refresh:rt1", svc.got)
}

func TestHandleToken_InvalidGrant(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodeUnauthorized, "invalid grant")}
	rec := post(t, newRouter(svc), `{"grant_type":"refresh_token","refresh_token":"used"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_grant"}`, rec.Body.String())
}

func TestHandleToken_ValidationErrors(t *testing.T) {
	h := newRouter(&stubService{})
	for _, body := range []string{
		`{"grant_type":"client_credentials"}`,
		`{"grant_type":"password","username":"alice"}`,
		`{"grant_type":"refresh_token"}`,
		`not json`,
	} {
		rec := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHandleUserInfo(t *testing.T) {
	h := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sub":"alice"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/auth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
