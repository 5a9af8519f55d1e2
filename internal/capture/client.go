// Package capture is the device-side capture and upload client. Each accepted
// trigger runs one cycle: take a photo, request a ticket, upload.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"listcart/internal/platform/config"
	"listcart/internal/platform/metrics"
	"listcart/pkg/domain"
	"listcart/pkg/failure"
)

// TokenSource yields a current access token.
type TokenSource interface {
	CurrentToken(ctx context.Context) (string, error)
}

// Deps are the collaborators of one Client.
type Deps struct {
	Tokens   TokenSource
	Camera   Camera
	Tickets  *TicketClient
	Uploader *Uploader
	Gate     *Gate
	Image    config.ImageConfig
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// CycleResult describes one trigger. Ignored triggers have only Ignored set.
type CycleResult struct {
	Ignored  bool
	Key      domain.ObjectKey
	Size     int
	Duration time.Duration
}

// Client runs capture cycles. It never runs two at once.
type Client struct {
	Deps
	now func() time.Time
}

func NewClient(deps Deps) *Client {
	return &Client{Deps: deps, now: time.Now}
}

// OnCaptureTrigger runs a cycle for a trigger received now.
func (c *Client) OnCaptureTrigger(ctx context.Context) (*CycleResult, error) {
	return c.cycle(ctx, Trigger{Source: "direct", At: c.now()})
}

// Run handles triggers until ctx ends or the session fails authentication.
// Other cycle failures are logged and the loop waits for the next trigger.
func (c *Client) Run(ctx context.Context, triggers <-chan Trigger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-triggers:
			if !ok {
				return nil
			}
			if _, err := c.cycle(ctx, t); err != nil {
				if failure.Is(err, failure.KindAuthentication) {
					return err
				}
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

func (c *Client) cycle(ctx context.Context, t Trigger) (*CycleResult, error) {
	if !c.Gate.TryAcquire(t.At) {
		c.Metrics.IncCaptureTrigger("ignored")
		c.Logger.InfoContext(ctx, "capture trigger ignored", "source", t.Source)
		return &CycleResult{Ignored: true}, nil
	}
	defer func() { c.Gate.Release(c.now()) }()
	c.Metrics.IncCaptureTrigger("accepted")

	start := c.now()
	res, err := c.run(ctx)
	if err != nil {
		c.Metrics.IncCaptureTrigger("failed")
		c.Logger.ErrorContext(ctx, "capture cycle failed",
			"source", t.Source,
			"failure", failure.KindOf(err).String(),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	res.Duration = time.Since(start)
	c.Logger.InfoContext(ctx, "capture uploaded",
		"object_key", res.Key.String(),
		"bytes", res.Size,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// run captures before requesting a ticket so the camera's latency does not
// eat into the ticket lifetime.
func (c *Client) run(ctx context.Context) (*CycleResult, error) {
	token, err := c.Tokens.CurrentToken(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := c.Camera.Capture(ctx)
	if err != nil {
		return nil, failure.New(failure.KindUpload, "capture", err)
	}
	img, err := Normalize(raw, c.Image)
	if err != nil {
		return nil, failure.New(failure.KindUpload, "normalize", err)
	}
	ticket, err := c.Tickets.Request(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := c.Uploader.Upload(ctx, ticket, img); err != nil {
		return nil, err
	}
	return &CycleResult{Key: ticket.Key, Size: len(img)}, nil
}
