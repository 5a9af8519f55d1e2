package pipeline

import (
	"context"
	"log/slog"
	"time"

	"listcart/internal/platform/metrics"
	"listcart/pkg/domain"
)

// Outcome labels for processed objects.
const (
	OutcomeDispatched = "dispatched"
	OutcomePartial    = "partial"
	OutcomeEmpty      = "empty"
	OutcomeFailed     = "failed"
)

// Outcome summarizes one processed object.
type Outcome struct {
	Ref        domain.ObjectRef
	Blocks     int
	Dispatches []DispatchResult
}

// Failed counts lines whose dispatch failed.
func (o *Outcome) Failed() int {
	n := 0
	for _, d := range o.Dispatches {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Label classifies the outcome for metrics.
func (o *Outcome) Label() string {
	switch {
	case len(o.Dispatches) == 0:
		return OutcomeEmpty
	case o.Failed() == len(o.Dispatches):
		return OutcomeFailed
	case o.Failed() > 0:
		return OutcomePartial
	default:
		return OutcomeDispatched
	}
}

// Processor chains extraction and resolution for one stored object.
type Processor struct {
	extractor *Extractor
	resolver  *Resolver
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewProcessor(extractor *Extractor, resolver *Resolver, logger *slog.Logger, m *metrics.Metrics) *Processor {
	return &Processor{extractor: extractor, resolver: resolver, logger: logger, metrics: m}
}

// Process extracts ref and dispatches its accepted lines. The subject comes
// from the key prefix only. A recognition failure returns an error and
// dispatches nothing; per-line dispatch failures are reported in the outcome.
func (p *Processor) Process(ctx context.Context, ref domain.ObjectRef) (*Outcome, error) {
	start := time.Now()
	result, err := p.extractor.Extract(ctx, ref)
	if err != nil {
		p.metrics.IncObjectProcessed(OutcomeFailed)
		p.logger.ErrorContext(ctx, "cycle abandoned",
			"object_key", ref.Key.String(),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	out := &Outcome{
		Ref:        ref,
		Blocks:     len(result.Blocks),
		Dispatches: p.resolver.Resolve(ctx, ref.Key.Subject, ref.Key, result),
	}
	p.metrics.IncObjectProcessed(out.Label())
	p.metrics.ObserveCycle(time.Since(start).Seconds())
	p.logger.InfoContext(ctx, "object processed",
		"object_key", ref.Key.String(),
		"subject_id", ref.Key.Subject.String(),
		"blocks", out.Blocks,
		"dispatched", len(out.Dispatches)-out.Failed(),
		"failed", out.Failed(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
