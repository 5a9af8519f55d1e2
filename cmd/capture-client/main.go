package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"listcart/internal/capture"
	"listcart/internal/platform/config"
	"listcart/internal/platform/logger"
	"listcart/internal/session"
)

// main runs the device loop: one login at start, then one capture cycle per
// accepted trigger.
func main() {
	configPath := flag.String("config", os.Getenv("LISTCART_CONFIG"), "path to the client YAML config")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(2)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("capture client stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Client, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := session.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return err
	}
	sessions := session.NewManager(
		session.NewHTTPIdentityProvider(cfg.IdPURL, cfg.RequestTimeout),
		creds,
		session.Config{RefreshSkew: cfg.RefreshSkew, Attempts: cfg.RefreshAttempts},
		log,
	)
	if err := sessions.Login(ctx); err != nil {
		return err
	}

	camera, err := capture.NewCamera(cfg.Camera)
	if err != nil {
		return err
	}
	client := capture.NewClient(capture.Deps{
		Tokens:   sessions,
		Camera:   camera,
		Tickets:  capture.NewTicketClient(cfg.IssuerURL, cfg.RequestTimeout),
		Uploader: capture.NewUploader(cfg.RequestTimeout),
		Gate:     capture.NewGate(cfg.Debounce),
		Image:    cfg.Image,
		Logger:   log,
	})

	triggers := make(chan capture.Trigger, 1)
	switch cfg.Trigger.Kind {
	case "stdin":
		go func() {
			if err := capture.LineSource(ctx, os.Stdin, triggers); err != nil {
				log.Error("trigger input failed", "error", err)
			}
		}()
	default:
		go capture.SignalSource(ctx, triggers, syscall.SIGUSR1)
	}

	log.Info("capture client ready",
		"subject_id", sessions.Subject().String(),
		"trigger", cfg.Trigger.Kind,
		"camera", cfg.Camera.Kind,
		"debounce", cfg.Debounce.String(),
	)
	return client.Run(ctx, triggers)
}
