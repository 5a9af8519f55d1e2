package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listcart/pkg/domain"
)

// ObjectCreated is emitted once per successfully stored object.
type ObjectCreated struct {
	ID        string    `json:"id"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref validates the event's bucket and key.
func (e ObjectCreated) Ref() (domain.ObjectRef, error) {
	return domain.ParseObjectRef(e.Bucket, e.Key)
}

// Encode serializes the event for transport.
func (e ObjectCreated) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeObjectCreated parses a transported event.
func DecodeObjectCreated(data []byte) (ObjectCreated, error) {
	var e ObjectCreated
	if err := json.Unmarshal(data, &e); err != nil {
		return ObjectCreated{}, fmt.Errorf("decode object-created event: %w", err)
	}
	if e.Bucket == "" || e.Key == "" {
		return ObjectCreated{}, fmt.Errorf("decode object-created event: bucket and key are required")
	}
	return e, nil
}

// Notifier delivers object-created events to the ingestion side.
type Notifier interface {
	Notify(ctx context.Context, event ObjectCreated) error
}

// Publisher is the subset of the Kafka producer used for notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaNotifier publishes events keyed by object key so redeliveries of one
// object land on one partition.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
}

func NewKafkaNotifier(publisher Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event ObjectCreated) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, n.topic, []byte(event.Key), payload)
}
