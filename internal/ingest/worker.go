package ingest

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"listcart/internal/objectstore"
)

// ErrWorkerStopped is returned by Notify after Run has returned.
var ErrWorkerStopped = errors.New("ingest worker stopped")

// Worker feeds object-created events from an in-process channel to a
// Trigger. It implements objectstore.Notifier for single-host deployments.
type Worker struct {
	trigger     *Trigger
	inbox       chan objectstore.ObjectCreated
	done        chan struct{}
	concurrency int
	logger      *slog.Logger
}

func NewWorker(trigger *Trigger, buffer, concurrency int, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		trigger:     trigger,
		inbox:       make(chan objectstore.ObjectCreated, buffer),
		done:        make(chan struct{}),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Notify enqueues event, blocking while the buffer is full.
func (w *Worker) Notify(ctx context.Context, event objectstore.ObjectCreated) error {
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.inbox <- event:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. Failed events are logged and
// dropped; there is no redelivery in inline mode.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	g, ctx := errgroup.WithContext(ctx)
	for range w.concurrency {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case event := <-w.inbox:
					if err := w.trigger.Handle(ctx, event); err != nil {
						w.logger.ErrorContext(ctx, "inline ingestion failed",
							"event_id", event.ID,
							"object_key", event.Key,
							"error", err,
						)
					}
				}
			}
		})
	}
	return g.Wait()
}
