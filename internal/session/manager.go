package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"listcart/pkg/domain"
	"listcart/pkg/failure"
	"listcart/pkg/platform/sentinel"
)

// Config tunes the manager.
type Config struct {
	// RefreshSkew renews tokens this long before they expire.
	RefreshSkew    time.Duration
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.RefreshSkew <= 0 {
		c.RefreshSkew = time.Minute
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

// Manager owns one device session. It is passed explicitly to the capture
// client; there is no package-level session.
type Manager struct {
	mu      sync.Mutex
	idp     IdentityProvider
	creds   Credentials
	cfg     Config
	session Session
	fatal   error
	now     func() time.Time
	logger  *slog.Logger
}

func NewManager(idp IdentityProvider, creds Credentials, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		idp:    idp,
		creds:  creds,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logger,
	}
}

// Subject returns the subject of the current session, or "" before login.
func (m *Manager) Subject() domain.SubjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Subject
}

// Login authenticates with the bootstrap credentials. Rejected credentials
// are an authentication failure that latches: every later call returns it
// without contacting the identity provider.
func (m *Manager) Login(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx)
}

// CurrentToken returns a usable access token, refreshing or logging in as
// needed. A rejected refresh token triggers exactly one fresh login.
func (m *Manager) CurrentToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fatal != nil {
		return "", m.fatal
	}
	if m.session.AccessToken == "" {
		if err := m.login(ctx); err != nil {
			return "", err
		}
		return m.session.AccessToken, nil
	}
	if m.session.Valid(m.now(), m.cfg.RefreshSkew) {
		return m.session.AccessToken, nil
	}

	var next Session
	err := m.retry(ctx, "refresh", func() error {
		var err error
		next, err = Refresh(ctx, m.idp, m.session)
		return err
	})
	switch {
	case err == nil:
		m.session = next
		m.logger.DebugContext(ctx, "session refreshed",
			"subject_id", next.Subject.String(),
			"expires_at", next.ExpiresAt,
		)
		return next.AccessToken, nil
	case errors.Is(err, ErrInvalidGrant):
		m.logger.InfoContext(ctx, "refresh token rejected, logging in again", "subject_id", m.session.Subject.String())
		m.session = Session{}
		if err := m.login(ctx); err != nil {
			return "", err
		}
		return m.session.AccessToken, nil
	default:
		return "", failure.Transient(failure.KindSessionRefresh, "refresh session", err)
	}
}

func (m *Manager) login(ctx context.Context) error {
	if m.fatal != nil {
		return m.fatal
	}
	var next Session
	err := m.retry(ctx, "login", func() error {
		var err error
		next, err = m.idp.Login(ctx, m.creds)
		return err
	})
	if errors.Is(err, ErrInvalidGrant) {
		m.fatal = failure.New(failure.KindAuthentication, "login", err)
		m.logger.ErrorContext(ctx, "bootstrap credentials rejected", "credentials", m.creds)
		return m.fatal
	}
	if err != nil {
		return failure.Transient(failure.KindSessionRefresh, "login", err)
	}
	if next.Subject == "" {
		return failure.New(failure.KindAuthentication, "login", fmt.Errorf("identity provider returned no subject"))
	}
	m.session = next
	m.logger.InfoContext(ctx, "session established",
		"subject_id", next.Subject.String(),
		"expires_at", next.ExpiresAt,
	)
	return nil
}

// retry runs op with bounded exponential backoff. Only unavailable errors
// are retried.
func (m *Manager) retry(ctx context.Context, name string, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.cfg.InitialBackoff
	exp.MaxInterval = m.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(m.cfg.Attempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil || errors.Is(err, sentinel.ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		m.logger.WarnContext(ctx, "identity provider call failed",
			"op", name,
			"attempt", attempt,
			"retry_in_ms", wait.Milliseconds(),
			"error", err,
		)
	})
}
