package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"listcart/pkg/domain"
	dErrors "listcart/pkg/domain-errors"
	"listcart/pkg/platform/sentinel"
	"listcart/pkg/requestcontext"
)

// TokenIssuer mints signed access tokens.
type TokenIssuer interface {
	GenerateAccessToken(subject string, expiresIn time.Duration) (string, time.Time, error)
}

// RefreshTokenStore persists single-use refresh tokens.
type RefreshTokenStore interface {
	Create(ctx context.Context, record *RefreshTokenRecord) error
	Consume(ctx context.Context, token string, now time.Time) (*RefreshTokenRecord, error)
}

// Config controls token lifetimes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service is the development identity provider: it exchanges a username and
// password, or a refresh token, for a fresh token pair.
type Service struct {
	users   *UserDirectory
	tokens  TokenIssuer
	refresh RefreshTokenStore
	cfg     Config
	logger  *slog.Logger
}

func NewService(users *UserDirectory, tokens TokenIssuer, refresh RefreshTokenStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Service{users: users, tokens: tokens, refresh: refresh, cfg: cfg, logger: logger}
}

var errInvalidGrant = dErrors.New(dErrors.CodeUnauthorized, "invalid grant")

// Authenticate verifies a username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*TokenPair, error) {
	subject, ok := s.users.Verify(username, password)
	if !ok {
		s.logger.WarnContext(ctx, "password grant rejected",
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, errInvalidGrant
	}
	return s.issue(ctx, subject)
}

// Refresh consumes a refresh token and rotates it. A token can be exchanged
// exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	now := requestcontext.Now(ctx)
	record, err := s.refresh.Consume(ctx, refreshToken, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound),
			errors.Is(err, sentinel.ErrExpired),
			errors.Is(err, sentinel.ErrAlreadyUsed):
			s.logger.WarnContext(ctx, "refresh grant rejected",
				"reason", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, errInvalidGrant
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume refresh token")
		}
	}
	return s.issue(ctx, record.Subject)
}

func (s *Service) issue(ctx context.Context, subject domain.SubjectID) (*TokenPair, error) {
	now := requestcontext.Now(ctx)
	access, accessExp, err := s.tokens.GenerateAccessToken(subject.String(), s.cfg.AccessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}

	record := &RefreshTokenRecord{
		Token:     newRefreshToken(),
		Subject:   subject,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}
	if err := s.refresh.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}

	s.logger.InfoContext(ctx, "token pair issued",
		"subject", subject,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &TokenPair{
		Subject:          subject,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     record.Token,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func newRefreshToken() string {
	return "rt_" + strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}
