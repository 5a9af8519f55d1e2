package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"listcart/internal/cart"
	"listcart/internal/dedupe"
	"listcart/internal/objectstore"
	"listcart/internal/pipeline"
	"listcart/internal/platform/config"
	"listcart/internal/platform/metrics"
	"listcart/internal/platform/redis"
	"listcart/internal/recognition"
	"listcart/internal/recognition/tesseract"
	"listcart/pkg/platform/circuit"
)

// BuildDeps are the shared resources a Trigger is assembled from.
type BuildDeps struct {
	Recognition config.RecognitionConfig
	Resolution  config.ResolutionConfig
	Dedupe      config.DedupeConfig
	Store       *objectstore.FilesystemStore
	Signer      *objectstore.Signer
	// Redis may be nil unless Dedupe.Backend is "redis".
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Build assembles the recognizer, pipeline stages and dedupe ledger into a
// Trigger. The returned cleanup closes anything Build opened.
func Build(ctx context.Context, deps BuildDeps) (*Trigger, func(), error) {
	recognizer, err := newRecognizer(deps)
	if err != nil {
		return nil, nil, err
	}
	ledger, cleanup, err := newLedger(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	breaker := circuit.New("recognition",
		circuit.WithFailureThreshold(deps.Recognition.BreakerThreshold),
		circuit.WithCooldown(deps.Recognition.BreakerCooldown),
	)
	extractor := pipeline.NewExtractor(recognizer, breaker, pipeline.ExtractorConfig{
		Attempts:       deps.Recognition.Attempts,
		CallTimeout:    deps.Recognition.CallTimeout,
		InitialBackoff: deps.Recognition.InitialBackoff,
		MaxBackoff:     deps.Recognition.MaxBackoff,
	}, deps.Logger, deps.Metrics)

	dispatcher := cart.NewHTTPDispatcher(deps.Resolution.CartURL, deps.Resolution.CartAPIKey, deps.Resolution.DispatchTimeout, deps.Logger)
	resolver := pipeline.NewResolver(dispatcher, pipeline.ResolverConfig{
		Threshold:       deps.Resolution.ConfidenceThreshold,
		Concurrency:     deps.Resolution.Concurrency,
		DispatchTimeout: deps.Resolution.DispatchTimeout,
	}, deps.Logger, deps.Metrics)

	processor := pipeline.NewProcessor(extractor, resolver, deps.Logger, deps.Metrics)
	return NewTrigger(processor, ledger, deps.Logger, deps.Metrics), cleanup, nil
}

func newRecognizer(deps BuildDeps) (recognition.Recognizer, error) {
	switch deps.Recognition.Backend {
	case "http":
		return recognition.NewHTTPClient(deps.Recognition.URL, deps.Recognition.APIKey, deps.Signer, deps.Logger), nil
	case "tesseract":
		return tesseract.NewEngine(deps.Store, deps.Recognition.Languages), nil
	default:
		return nil, fmt.Errorf("unknown recognition backend %q", deps.Recognition.Backend)
	}
}

func newLedger(ctx context.Context, deps BuildDeps) (dedupe.Ledger, func(), error) {
	noop := func() {}
	switch deps.Dedupe.Backend {
	case "", "none":
		return dedupe.Noop{}, noop, nil
	case "memory":
		return dedupe.NewMemoryLedger(deps.Dedupe.TTL), noop, nil
	case "redis":
		if deps.Redis == nil {
			return nil, nil, fmt.Errorf("dedupe backend redis requires REDIS_URL")
		}
		return dedupe.NewRedisLedger(deps.Redis.Client, deps.Dedupe.TTL), noop, nil
	case "postgres":
		db, err := dedupe.OpenPostgres(ctx, deps.Dedupe.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		ledger := dedupe.NewPostgresLedger(db, deps.Dedupe.TTL)
		if err := ledger.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return ledger, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown dedupe backend %q", deps.Dedupe.Backend)
	}
}
