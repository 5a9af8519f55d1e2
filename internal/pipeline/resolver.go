package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"listcart/internal/cart"
	"listcart/internal/platform/metrics"
	"listcart/pkg/domain"
	"listcart/pkg/failure"
)

// Dispatcher hands one intent to the cart collaborator.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent cart.Intent) error
}

// DispatchResult is the outcome of one line. Err is a dispatch failure or nil.
type DispatchResult struct {
	Intent cart.Intent
	Err    error
}

// ResolverConfig tunes line resolution. Threshold is used as given, zero
// included; callers normally pass DefaultConfidenceThreshold.
type ResolverConfig struct {
	Threshold       float64
	Concurrency     int
	DispatchTimeout time.Duration
}

// Resolver turns accepted lines into cart dispatches.
type Resolver struct {
	dispatcher Dispatcher
	cfg        ResolverConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func NewResolver(dispatcher Dispatcher, cfg ResolverConfig, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Resolver{
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
	}
}

// Intents builds the payloads for result without dispatching them. The same
// input always yields the same intents in the same order.
func (r *Resolver) Intents(subjectID domain.SubjectID, objectKey domain.ObjectKey, result *ExtractionResult) ([]cart.Intent, []Discard) {
	accepted, discards := AcceptedLines(result, r.cfg.Threshold)
	intents := make([]cart.Intent, 0, len(accepted))
	for _, b := range accepted {
		intents = append(intents, cart.Intent{SubjectID: subjectID, ObjectKey: objectKey, LineText: b.Text})
	}
	return intents, discards
}

// Resolve dispatches one intent per accepted line. Dispatches run
// concurrently and a failed line never cancels its siblings. Results are
// returned in line order.
func (r *Resolver) Resolve(ctx context.Context, subjectID domain.SubjectID, objectKey domain.ObjectKey, result *ExtractionResult) []DispatchResult {
	ctx, span := r.tracer.Start(ctx, "pipeline.resolve", trace.WithAttributes(
		attribute.String("subject.id", subjectID.String()),
		attribute.String("object.key", objectKey.String()),
	))
	defer span.End()

	intents, discards := r.Intents(subjectID, objectKey, result)
	for _, d := range discards {
		r.logger.DebugContext(ctx, "block discarded",
			"object_key", objectKey.String(),
			"reason", string(d.Reason),
			"kind", string(d.Block.Kind),
			"confidence", d.Block.Confidence,
		)
		r.metrics.IncBlockDiscarded(string(d.Reason))
	}
	span.SetAttributes(attribute.Int("lines.accepted", len(intents)), attribute.Int("blocks.discarded", len(discards)))

	results := make([]DispatchResult, len(intents))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, intent := range intents {
		g.Go(func() error {
			results[i] = DispatchResult{Intent: intent, Err: r.dispatch(ctx, intent)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Resolver) dispatch(ctx context.Context, intent cart.Intent) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.dispatch")
	defer span.End()

	if r.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.DispatchTimeout)
		defer cancel()
	}

	if err := r.dispatcher.Dispatch(ctx, intent); err != nil {
		r.metrics.IncIntentDispatched("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		r.logger.ErrorContext(ctx, "cart dispatch failed",
			"subject_id", intent.SubjectID.String(),
			"object_key", intent.ObjectKey.String(),
			"idempotency_key", intent.IdempotencyKey(),
			"error", err,
		)
		return failure.New(failure.KindDispatch, "dispatch", err)
	}
	r.metrics.IncIntentDispatched("ok")
	return nil
}
