// Package pipeline runs the per-object stages behind an object-created event:
// text extraction against a recognition backend, line filtering, and cart
// dispatch. Each object is handled by one independent, stateless chain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"listcart/internal/platform/metrics"
	"listcart/internal/recognition"
	"listcart/pkg/domain"
	"listcart/pkg/failure"
	"listcart/pkg/platform/circuit"
	"listcart/pkg/platform/sentinel"
)

const tracerName = "listcart/internal/pipeline"

// ErrBreakerOpen is returned without calling the backend while the
// recognition breaker is open.
var ErrBreakerOpen = errors.New("recognition circuit open")

// ExtractionResult is the transient output of one extraction. It is never
// persisted.
type ExtractionResult struct {
	Ref    domain.ObjectRef
	Blocks []recognition.Block
}

// ExtractorConfig bounds the recognition call.
type ExtractorConfig struct {
	Attempts       int
	CallTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c ExtractorConfig) withDefaults() ExtractorConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

// Extractor calls the recognition backend synchronously with bounded retries.
type Extractor struct {
	recognizer recognition.Recognizer
	breaker    *circuit.Breaker
	cfg        ExtractorConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewExtractor builds an extractor. breaker may be nil.
func NewExtractor(recognizer recognition.Recognizer, breaker *circuit.Breaker, cfg ExtractorConfig, logger *slog.Logger, m *metrics.Metrics) *Extractor {
	return &Extractor{
		recognizer: recognizer,
		breaker:    breaker,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
	}
}

// Extract returns the recognized blocks for ref. Unavailable backends and
// per-call timeouts are retried up to the configured attempts; anything else
// fails immediately. Every returned error is a recognition failure.
func (e *Extractor) Extract(ctx context.Context, ref domain.ObjectRef) (*ExtractionResult, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.extract", trace.WithAttributes(
		attribute.String("object.bucket", ref.Bucket),
		attribute.String("object.key", ref.Key.String()),
	))
	defer span.End()

	if e.breaker != nil && !e.breaker.Allow() {
		e.metrics.ObserveRecognition("breaker_open", 0)
		span.SetStatus(codes.Error, ErrBreakerOpen.Error())
		return nil, failure.Transient(failure.KindRecognition, "extract", ErrBreakerOpen)
	}

	var (
		result  *recognition.Result
		attempt int
	)
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		res, err := e.recognizer.Recognize(callCtx, ref)
		elapsed := time.Since(start).Seconds()
		switch {
		case err == nil:
			e.metrics.ObserveRecognition("success", elapsed)
			result = res
			return nil
		case ctx.Err() != nil:
			e.metrics.ObserveRecognition("canceled", elapsed)
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, sentinel.ErrUnavailable), errors.Is(callCtx.Err(), context.DeadlineExceeded):
			e.metrics.ObserveRecognition("unavailable", elapsed)
			return err
		default:
			e.metrics.ObserveRecognition("error", elapsed)
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		e.logger.WarnContext(ctx, "recognition attempt failed",
			"object_key", ref.Key.String(),
			"attempt", attempt,
			"retry_in_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, e.policy(ctx), notify)
	if err != nil {
		e.recordFailure(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "recognition failed")
		return nil, failure.New(failure.KindRecognition, "extract", fmt.Errorf("%s after %d attempt(s): %w", ref, attempt, err))
	}
	e.recordSuccess(ctx)

	out := &ExtractionResult{Ref: ref}
	if result != nil {
		out.Blocks = result.Blocks
	}
	span.SetAttributes(attribute.Int("blocks", len(out.Blocks)), attribute.Int("attempts", attempt))
	return out, nil
}

func (e *Extractor) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.cfg.InitialBackoff
	exp.MaxInterval = e.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(e.cfg.Attempts-1)), ctx)
}

func (e *Extractor) recordFailure(ctx context.Context) {
	if e.breaker == nil {
		return
	}
	if _, change := e.breaker.RecordFailure(); change.Opened {
		e.logger.ErrorContext(ctx, "recognition circuit opened", "breaker", e.breaker.Name())
	}
}

func (e *Extractor) recordSuccess(ctx context.Context) {
	if e.breaker == nil {
		return
	}
	if _, change := e.breaker.RecordSuccess(); change.Closed {
		e.logger.InfoContext(ctx, "recognition circuit closed", "breaker", e.breaker.Name())
	}
}
