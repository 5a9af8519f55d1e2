package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"listcart/pkg/domain"
	dErrors "listcart/pkg/domain-errors"
)

const (
	paramExpires   = "expires"
	paramNonce     = "nonce"
	paramSignature = "signature"
)

// Grant is a verified signed-URL authorization.
type Grant struct {
	Method    string
	Ref       domain.ObjectRef
	Nonce     string
	ExpiresAt time.Time
}

// Signer mints and verifies signed object URLs. A signature covers the HTTP
// method, bucket, key, expiry and a random nonce, so a URL authorizes exactly
// one operation on exactly one object until it expires.
type Signer struct {
	secret  []byte
	baseURL string
}

func NewSigner(secret, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// Sign returns a URL for method on ref valid until expiresAt.
func (s *Signer) Sign(method string, ref domain.ObjectRef, expiresAt time.Time) (string, error) {
	if err := domain.ValidateBucket(ref.Bucket); err != nil {
		return "", err
	}
	nonce := uuid.NewString()
	exp := strconv.FormatInt(expiresAt.UnixMilli(), 10)

	q := url.Values{}
	q.Set(paramExpires, exp)
	q.Set(paramNonce, nonce)
	q.Set(paramSignature, s.mac(method, ref, exp, nonce))
	return s.baseURL + ObjectPath(ref) + "?" + q.Encode(), nil
}

// Verify checks the signature and expiry carried in query for method on ref.
func (s *Signer) Verify(method string, ref domain.ObjectRef, query url.Values, now time.Time) (*Grant, error) {
	exp := query.Get(paramExpires)
	nonce := query.Get(paramNonce)
	sig := query.Get(paramSignature)
	if exp == "" || nonce == "" || sig == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "missing signature parameters")
	}

	expected := s.mac(method, ref, exp, nonce)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "signature does not match")
	}

	millis, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeForbidden, "malformed expiry")
	}
	expiresAt := time.UnixMilli(millis)
	if !now.Before(expiresAt) {
		return nil, dErrors.New(dErrors.CodeExpired, "signed URL has expired")
	}

	return &Grant{Method: method, Ref: ref, Nonce: nonce, ExpiresAt: expiresAt}, nil
}

func (s *Signer) mac(method string, ref domain.ObjectRef, exp, nonce string) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(strings.Join([]string{
		strings.ToUpper(method),
		ref.Bucket,
		ref.Key.String(),
		exp,
		nonce,
	}, "\n")))
	return hex.EncodeToString(m.Sum(nil))
}

// ObjectPath is the URL path serving ref.
func ObjectPath(ref domain.ObjectRef) string {
	return "/objects/" + url.PathEscape(ref.Bucket) + "/" +
		url.PathEscape(ref.Key.Subject.String()) + "/" +
		strconv.FormatInt(ref.Key.Millis, 10) + domain.ImageExt
}

// PresignGet returns a signed download URL for ref valid for ttl.
func (s *Signer) PresignGet(ref domain.ObjectRef, ttl time.Duration) (string, error) {
	return s.Sign(http.MethodGet, ref, time.Now().Add(ttl))
}
