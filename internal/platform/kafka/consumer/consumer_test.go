package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fastConsumer(h Handler, maxDeliveries int) *Consumer {
	return newConsumer(nil, Config{
		MaxDeliveries:  maxDeliveries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, h, discard())
}

func TestDeliver_SucceedsFirstTime(t *testing.T) {
	calls := 0
	c := fastConsumer(HandlerFunc(func(context.Context, *Message) error {
		calls++
		return nil
	}), 3)

	msg := &Message{Topic: "t"}
	assert.True(t, c.deliver(context.Background(), msg))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, msg.Delivery)
}

func TestDeliver_RedeliversUpToMax(t *testing.T) {
	calls := 0
	c := fastConsumer(HandlerFunc(func(context.Context, *Message) error {
		calls++
		return errors.New("recognition unavailable")
	}), 3)

	msg := &Message{Topic: "t"}
	assert.False(t, c.deliver(context.Background(), msg))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, msg.Delivery)
}

func TestDeliver_RecoversOnRedelivery(t *testing.T) {
	calls := 0
	c := fastConsumer(HandlerFunc(func(context.Context, *Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}), 3)

	assert.True(t, c.deliver(context.Background(), &Message{}))
	assert.Equal(t, 2, calls)
}

func TestDeliver_PermanentErrorIsNotRedelivered(t *testing.T) {
	calls := 0
	c := fastConsumer(HandlerFunc(func(context.Context, *Message) error {
		calls++
		return backoff.Permanent(errors.New("malformed event"))
	}), 3)

	assert.False(t, c.deliver(context.Background(), &Message{}))
	assert.Equal(t, 1, calls)
}

func TestDeliver_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := fastConsumer(HandlerFunc(func(context.Context, *Message) error {
		calls++
		cancel()
		return errors.New("fail")
	}), 5)

	assert.False(t, c.deliver(ctx, &Message{}))
	assert.Equal(t, 1, calls)
}

func TestRouter(t *testing.T) {
	var got []string
	h := func(name string) Handler {
		return HandlerFunc(func(_ context.Context, m *Message) error {
			got = append(got, name+":"+m.Topic)
			return nil
		})
	}

	r := NewRouter(discard(), nil)
	r.Register("objects", h("objects"))
	assert.NoError(t, r.Handle(context.Background(), &Message{Topic: "objects"}))
	assert.NoError(t, r.Handle(context.Background(), &Message{Topic: "unknown"}))
	assert.Equal(t, []string{"objects:objects"}, got)
	assert.Equal(t, []string{"objects"}, r.Topics())

	withFallback := NewRouter(discard(), h("fallback"))
	assert.NoError(t, withFallback.Handle(context.Background(), &Message{Topic: "other"}))
	assert.Equal(t, "fallback:other", got[len(got)-1])
}
