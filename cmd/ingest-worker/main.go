package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"listcart/internal/ingest"
	"listcart/internal/objectstore"
	"listcart/internal/platform/config"
	"listcart/internal/platform/httpserver"
	"listcart/internal/platform/kafka"
	"listcart/internal/platform/kafka/consumer"
	"listcart/internal/platform/logger"
	"listcart/internal/platform/metrics"
	"listcart/internal/platform/redis"
	"listcart/pkg/platform/httputil"
)

// main runs the ingestion trigger: it consumes object-created events and
// drives extraction and line resolution for each stored object.
func main() {
	_ = godotenv.Load()
	cfg := config.WorkerFromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("ingest worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Worker, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}

	m := metrics.New(nil)
	store, err := objectstore.NewFilesystemStore(cfg.Store.Root)
	if err != nil {
		return err
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	trigger, cleanup, err := ingest.Build(ctx, ingest.BuildDeps{
		Recognition: cfg.Recognition,
		Resolution:  cfg.Resolution,
		Dedupe:      cfg.Dedupe,
		Store:       store,
		Signer:      objectstore.NewSigner(cfg.Store.SigningSecret, cfg.Store.PublicBaseURL),
		Redis:       redisClient,
		Logger:      log,
		Metrics:     m,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
		return err
	}

	router := consumer.NewRouter(log, nil)
	router.Register(cfg.Kafka.Topic, ingest.NewTopicHandler(trigger, log))
	c, err := consumer.New(consumer.Config{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        router.Topics(),
		Group:         cfg.Kafka.ConsumerGroup,
		MaxDeliveries: cfg.Kafka.MaxDeliveries,
	}, router, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return httpserver.Run(ctx, httpserver.New(cfg.MetricsAddr, r), log) })

	log.Info("ingest worker started",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.ConsumerGroup,
		"recognition_backend", cfg.Recognition.Backend,
		"dedupe_backend", cfg.Dedupe.Backend,
	)
	return g.Wait()
}
