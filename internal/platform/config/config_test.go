package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssuerFromEnv_Defaults(t *testing.T) {
	cfg := IssuerFromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, MaxTicketTTL, cfg.TicketTTL)
	assert.Equal(t, "kafka", cfg.EventsMode)
	assert.Equal(t, 80.0, cfg.Resolution.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.Recognition.Attempts)
	assert.Equal(t, 15*time.Second, cfg.Recognition.CallTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestIssuerFromEnv_TicketTTLIsCapped(t *testing.T) {
	t.Setenv("TICKET_TTL", "1m")
	assert.Equal(t, MaxTicketTTL, IssuerFromEnv().TicketTTL)

	t.Setenv("TICKET_TTL", "4s")
	assert.Equal(t, 4*time.Second, IssuerFromEnv().TicketTTL)

	t.Setenv("TICKET_TTL", "-1s")
	assert.Equal(t, MaxTicketTTL, IssuerFromEnv().TicketTTL)
}

func TestWorkerFromEnv_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("CONFIDENCE_THRESHOLD", "90.5")
	t.Setenv("DEDUPE_BACKEND", "postgres")
	t.Setenv("RECOGNITION_ATTEMPTS", "not-a-number")
	t.Setenv("STORE_PUBLIC_BASE_URL", "https://cdn.example.com/")

	cfg := WorkerFromEnv()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90.5, cfg.Resolution.ConfidenceThreshold)
	assert.Equal(t, "postgres", cfg.Dedupe.Backend)
	assert.Equal(t, 3, cfg.Recognition.Attempts)
	assert.Equal(t, "https://cdn.example.com", cfg.Store.PublicBaseURL)
}

func TestWorkerFromEnv_ZeroConfidenceThreshold(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "0")
	assert.Equal(t, 0.0, WorkerFromEnv().Resolution.ConfidenceThreshold)
}
