package ingest

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"listcart/internal/objectstore"
	"listcart/internal/platform/kafka/consumer"
)

// TopicHandler adapts a Trigger to the Kafka consumer.
type TopicHandler struct {
	trigger *Trigger
	logger  *slog.Logger
}

var _ consumer.Handler = (*TopicHandler)(nil)

func NewTopicHandler(trigger *Trigger, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{trigger: trigger, logger: logger}
}

// Handle decodes the record and runs the trigger. Undecodable records are
// committed without redelivery.
func (h *TopicHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	event, err := objectstore.DecodeObjectCreated(msg.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "dropping undecodable record",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return backoff.Permanent(err)
	}
	if msg.Delivery > 1 {
		h.logger.InfoContext(ctx, "redelivering object-created event",
			"event_id", event.ID,
			"object_key", event.Key,
			"delivery", msg.Delivery,
		)
	}
	return h.trigger.Handle(ctx, event)
}
