package ticket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"listcart/internal/platform/metrics"
	"listcart/pkg/domain"
	dErrors "listcart/pkg/domain-errors"
	"listcart/pkg/requestcontext"
)

// MaxTTL bounds every ticket's lifetime.
const MaxTTL = 10 * time.Second

// Ticket is a short-lived write-only authorization for one object key.
type Ticket struct {
	Key       domain.ObjectKey
	URL       string
	ExpiresAt time.Time
}

// TokenValidator extracts the subject claim from a verified caller token.
type TokenValidator interface {
	SubjectFromToken(token string) (string, error)
}

// URLSigner signs an upload URL for one object.
type URLSigner interface {
	Sign(method string, ref domain.ObjectRef, expiresAt time.Time) (string, error)
}

// Service issues upload tickets.
type Service struct {
	validator TokenValidator
	signer    URLSigner
	keys      *KeyBuilder
	bucket    string
	ttl       time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(validator TokenValidator, signer URLSigner, bucket string, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	return &Service{
		validator: validator,
		signer:    signer,
		keys:      NewKeyBuilder(),
		bucket:    bucket,
		ttl:       ttl,
		logger:    logger,
		metrics:   m,
	}
}

// IssueTicket validates callerToken and returns a ticket scoped to a fresh key
// in the caller's own namespace.
func (s *Service) IssueTicket(ctx context.Context, callerToken string) (*Ticket, error) {
	rawSubject, err := s.validator.SubjectFromToken(callerToken)
	if err != nil {
		s.metrics.IncTicketRejected(string(dErrors.CodeUnauthorized))
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token")
	}
	subject, err := domain.ParseSubjectID(rawSubject)
	if err != nil {
		s.metrics.IncTicketRejected(string(dErrors.CodeUnauthorized))
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not usable as a key namespace")
	}

	now := requestcontext.Now(ctx)
	key := s.keys.Next(subject, now)
	expiresAt := now.Add(s.ttl)
	url, err := s.signer.Sign(http.MethodPut, domain.ObjectRef{Bucket: s.bucket, Key: key}, expiresAt)
	if err != nil {
		s.metrics.IncTicketRejected(string(dErrors.CodeInternal))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign upload URL")
	}

	s.metrics.IncTicketIssued()
	s.logger.InfoContext(ctx, "upload ticket issued",
		"subject_id", subject,
		"object_key", key.String(),
		"expires_at", expiresAt,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Ticket{Key: key, URL: url, ExpiresAt: expiresAt}, nil
}

// Sweep releases key-builder state for subjects idle since before cutoff.
func (s *Service) Sweep(cutoff time.Time) {
	s.keys.Forget(cutoff)
}
