package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"listcart/internal/identity"
	identityhandler "listcart/internal/identity/handler"
	"listcart/internal/ingest"
	"listcart/internal/jwttoken"
	"listcart/internal/objectstore"
	"listcart/internal/platform/config"
	"listcart/internal/platform/httpserver"
	"listcart/internal/platform/kafka"
	"listcart/internal/platform/kafka/producer"
	"listcart/internal/platform/logger"
	"listcart/internal/platform/metrics"
	"listcart/internal/platform/redis"
	"listcart/internal/ticket"
	tickethandler "listcart/internal/ticket/handler"
	"listcart/pkg/platform/httputil"
	"listcart/pkg/platform/middleware/request"
	"listcart/pkg/platform/middleware/requesttime"
)

// sweepInterval is how often idle key-builder state and expired refresh
// tokens are dropped.
const sweepInterval = time.Minute

// main wires the upload ticket issuer, the signed-URL object store and the
// development identity provider behind one router.
func main() {
	_ = godotenv.Load()
	cfg := config.IssuerFromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("ticket issuer stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Issuer, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)

	store, err := objectstore.NewFilesystemStore(cfg.Store.Root)
	if err != nil {
		return err
	}
	signer := objectstore.NewSigner(cfg.Store.SigningSecret, cfg.Store.PublicBaseURL)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var nonces objectstore.NonceLedger = objectstore.NewInMemoryNonceLedger()
	if redisClient != nil {
		defer redisClient.Close()
		nonces = objectstore.NewRedisNonceLedger(redisClient.Client)
		log.Info("using redis for upload nonces")
	}

	g, ctx := errgroup.WithContext(ctx)

	var notifier objectstore.Notifier
	switch cfg.EventsMode {
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("EVENTS_MODE=kafka requires KAFKA_BROKERS")
		}
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return err
		}
		p, err := producer.New(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		defer p.Close()
		notifier = objectstore.NewKafkaNotifier(p, cfg.Kafka.Topic)
	case "inline":
		trigger, cleanup, err := ingest.Build(ctx, ingest.BuildDeps{
			Recognition: cfg.Recognition,
			Resolution:  cfg.Resolution,
			Dedupe:      cfg.Dedupe,
			Store:       store,
			Signer:      signer,
			Redis:       redisClient,
			Logger:      log,
			Metrics:     m,
		})
		if err != nil {
			return err
		}
		defer cleanup()
		worker := ingest.NewWorker(trigger, 64, cfg.Resolution.Concurrency, log)
		g.Go(func() error { return ignoreCanceled(worker.Run(ctx)) })
		notifier = worker
	default:
		return fmt.Errorf("unknown EVENTS_MODE %q", cfg.EventsMode)
	}

	ticketService := ticket.NewService(jwtService, signer, cfg.Store.Bucket, cfg.TicketTTL, log, m)
	refreshTokens := identity.NewInMemoryRefreshTokenStore()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.AccessLog(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	tickethandler.New(ticketService, log).Register(r)
	objectstore.NewHandler(store, signer, nonces, notifier, cfg.Store.MaxBytes, log, m).Register(r)

	if cfg.UsersFile != "" {
		users, err := identity.LoadUserDirectory(cfg.UsersFile)
		if err != nil {
			return err
		}
		idp := identity.NewService(users, jwtService, refreshTokens, identity.Config{
			AccessTTL:  cfg.JWT.AccessTTL,
			RefreshTTL: cfg.JWT.RefreshTTL,
		}, log)
		identityhandler.New(idp, jwttoken.NewJWTServiceAdapter(jwtService), log).Register(r)
	} else {
		log.Warn("IDP_USERS_FILE not set, development identity provider disabled")
	}

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				ticketService.Sweep(now.Add(-sweepInterval))
				if n, err := refreshTokens.DeleteExpired(ctx, now); err == nil && n > 0 {
					log.Debug("expired refresh tokens removed", "count", n)
				}
			}
		}
	})

	srv := httpserver.New(cfg.Addr, r)
	g.Go(func() error { return httpserver.Run(ctx, srv, log) })

	log.Info("ticket issuer started",
		"addr", cfg.Addr,
		"events_mode", cfg.EventsMode,
		"bucket", cfg.Store.Bucket,
		"ticket_ttl", cfg.TicketTTL.String(),
	)
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
