package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed record handed to a Handler.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	// Delivery counts attempts for this record, starting at 1.
	Delivery int
}

// Handler processes one message. Returning an error asks for redelivery;
// wrap it with backoff.Permanent to skip redelivery.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config configures a group consumer.
type Config struct {
	Brokers        []string
	Topics         []string
	Group          string
	MaxDeliveries  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Consumer reads from a consumer group and commits each record after it was
// handled or gave up on. Partitions are processed concurrently; records in a
// partition are processed in order.
type Consumer struct {
	client        *kgo.Client
	handler       Handler
	maxDeliveries int
	initial       time.Duration
	maxBackoff    time.Duration
	logger        *slog.Logger
}

// New creates a group consumer with manual commits.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return newConsumer(client, cfg, handler, logger), nil
}

func newConsumer(client *kgo.Client, cfg Config, handler Handler, logger *slog.Logger) *Consumer {
	c := &Consumer{
		client:        client,
		handler:       handler,
		maxDeliveries: cfg.MaxDeliveries,
		initial:       cfg.InitialBackoff,
		maxBackoff:    cfg.MaxBackoff,
		logger:        logger,
	}
	if c.maxDeliveries < 1 {
		c.maxDeliveries = 1
	}
	if c.initial <= 0 {
		c.initial = 500 * time.Millisecond
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = 10 * time.Second
	}
	return c
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var wg sync.WaitGroup
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			wg.Add(1)
			go func(records []*kgo.Record) {
				defer wg.Done()
				c.processPartition(ctx, records)
			}(p.Records)
		})
		wg.Wait()
	}
}

func (c *Consumer) processPartition(ctx context.Context, records []*kgo.Record) {
	for _, record := range records {
		if ctx.Err() != nil {
			// Uncommitted records are redelivered after restart.
			return
		}
		c.deliver(ctx, &Message{
			Topic:     record.Topic,
			Key:       record.Key,
			Value:     record.Value,
			Partition: record.Partition,
			Offset:    record.Offset,
		})
		if ctx.Err() != nil {
			return
		}
		if err := c.client.CommitRecords(ctx, record); err != nil {
			c.logger.ErrorContext(ctx, "kafka commit failed",
				"topic", record.Topic,
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err,
			)
		}
	}
}

// deliver hands msg to the handler up to maxDeliveries times. It reports
// whether the handler eventually succeeded.
func (c *Consumer) deliver(ctx context.Context, msg *Message) bool {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initial
	eb.MaxInterval = c.maxBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxDeliveries-1)), ctx)

	err := backoff.RetryNotify(func() error {
		msg.Delivery++
		return c.handler.Handle(ctx, msg)
	}, policy, func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "message handling failed, redelivering",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"delivery", msg.Delivery,
			"retry_in_ms", wait.Milliseconds(),
			"error", err,
		)
	})
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return false
	}
	c.logger.ErrorContext(ctx, "message handling abandoned",
		"topic", msg.Topic,
		"key", string(msg.Key),
		"partition", msg.Partition,
		"offset", msg.Offset,
		"deliveries", msg.Delivery,
		"error", err,
	)
	return false
}
