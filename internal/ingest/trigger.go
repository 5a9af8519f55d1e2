// Package ingest is the ingestion trigger: it receives object-created events
// from Kafka or from the in-process worker and runs the pipeline once per
// stored object.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"listcart/internal/dedupe"
	"listcart/internal/objectstore"
	"listcart/internal/pipeline"
	"listcart/internal/platform/metrics"
	"listcart/pkg/domain"
)

// Processor runs extraction and resolution for one object.
type Processor interface {
	Process(ctx context.Context, ref domain.ObjectRef) (*pipeline.Outcome, error)
}

// Trigger handles one object-created event. It is safe to call repeatedly
// for the same object; with a dedupe ledger configured, repeats after a
// success are skipped.
type Trigger struct {
	processor Processor
	ledger    dedupe.Ledger
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewTrigger builds a trigger. A nil ledger disables dedupe.
func NewTrigger(processor Processor, ledger dedupe.Ledger, logger *slog.Logger, m *metrics.Metrics) *Trigger {
	if ledger == nil {
		ledger = dedupe.Noop{}
	}
	return &Trigger{processor: processor, ledger: ledger, logger: logger, metrics: m}
}

// Handle validates the event and processes the object. A malformed event is
// returned as a permanent error so the transport does not redeliver it.
// Processing failures release the dedupe claim and are returned for
// redelivery.
func (t *Trigger) Handle(ctx context.Context, event objectstore.ObjectCreated) error {
	ref, err := event.Ref()
	if err != nil {
		t.metrics.IncObjectProcessed("rejected")
		t.logger.WarnContext(ctx, "rejecting object-created event",
			"event_id", event.ID,
			"bucket", event.Bucket,
			"object_key", event.Key,
			"error", err,
		)
		return backoff.Permanent(fmt.Errorf("object-created %s: %w", event.ID, err))
	}

	claimKey := ref.String()
	claimed, err := t.ledger.Claim(ctx, claimKey)
	if err != nil {
		return fmt.Errorf("dedupe claim: %w", err)
	}
	if !claimed {
		t.metrics.IncDedupeSkip()
		t.logger.InfoContext(ctx, "object already processed, skipping",
			"event_id", event.ID,
			"object_key", ref.Key.String(),
		)
		return nil
	}

	if _, err := t.processor.Process(ctx, ref); err != nil {
		if relErr := t.ledger.Release(context.WithoutCancel(ctx), claimKey); relErr != nil {
			t.logger.ErrorContext(ctx, "failed to release dedupe claim",
				"object_key", ref.Key.String(),
				"error", relErr,
			)
		}
		return fmt.Errorf("process %s: %w", ref, err)
	}
	return nil
}
