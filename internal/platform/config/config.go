package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	liststr "listcart/pkg/platform/strings"
)

// MaxTicketTTL is the longest lifetime an upload ticket may have.
const MaxTicketTTL = 10 * time.Second

// JWTConfig describes how access tokens are signed and checked.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures object-created event transport. No brokers means the
// transport is disabled.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Partitions    int32
	Replication   int16
	MaxDeliveries int
}

// StoreConfig configures the signed-URL object store.
type StoreConfig struct {
	Root          string
	Bucket        string
	PublicBaseURL string
	SigningSecret string
	MaxBytes      int64
}

// RecognitionConfig configures the text extraction stage.
type RecognitionConfig struct {
	Backend          string // "http" or "tesseract"
	URL              string
	APIKey           string
	Languages        []string
	CallTimeout      time.Duration
	Attempts         int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// ResolutionConfig configures the line resolution stage and cart dispatch.
type ResolutionConfig struct {
	ConfidenceThreshold float64
	Concurrency         int
	CartURL             string
	CartAPIKey          string
	DispatchTimeout     time.Duration
}

// DedupeConfig selects the processed-object ledger: "none", "memory",
// "redis" or "postgres".
type DedupeConfig struct {
	Backend     string
	PostgresDSN string
	TTL         time.Duration
}

// Issuer is the configuration of cmd/ticket-issuer.
type Issuer struct {
	Addr       string
	LogLevel   string
	LogFormat  string
	TicketTTL  time.Duration
	EventsMode string // "kafka" or "inline"
	UsersFile  string
	JWT        JWTConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Store      StoreConfig
	// Pipeline settings are only used when EventsMode is "inline".
	Recognition RecognitionConfig
	Resolution  ResolutionConfig
	Dedupe      DedupeConfig
}

// Worker is the configuration of cmd/ingest-worker.
type Worker struct {
	MetricsAddr string
	LogLevel    string
	LogFormat   string
	Store       StoreConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Recognition RecognitionConfig
	Resolution  ResolutionConfig
	Dedupe      DedupeConfig
}

// IssuerFromEnv builds the issuer configuration from environment variables.
func IssuerFromEnv() Issuer {
	ttl := getEnvAsDuration("TICKET_TTL", MaxTicketTTL)
	if ttl <= 0 || ttl > MaxTicketTTL {
		ttl = MaxTicketTTL
	}
	return Issuer{
		Addr:        getEnv("ISSUER_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		TicketTTL:   ttl,
		EventsMode:  getEnv("EVENTS_MODE", "kafka"),
		UsersFile:   getEnv("IDP_USERS_FILE", ""),
		JWT:         jwtFromEnv(),
		Redis:       redisFromEnv(),
		Kafka:       kafkaFromEnv(),
		Store:       storeFromEnv(),
		Recognition: recognitionFromEnv(),
		Resolution:  resolutionFromEnv(),
		Dedupe:      dedupeFromEnv(),
	}
}

// WorkerFromEnv builds the ingest worker configuration from environment variables.
func WorkerFromEnv() Worker {
	return Worker{
		MetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Store:       storeFromEnv(),
		Redis:       redisFromEnv(),
		Kafka:       kafkaFromEnv(),
		Recognition: recognitionFromEnv(),
		Resolution:  resolutionFromEnv(),
		Dedupe:      dedupeFromEnv(),
	}
}

func jwtFromEnv() JWTConfig {
	return JWTConfig{
		// Use a default for development - must be overridden in production
		SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Issuer:     getEnv("JWT_ISSUER", "listcart-idp"),
		Audience:   getEnv("JWT_AUDIENCE", "listcart"),
		AccessTTL:  getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          getEnv("REDIS_URL", ""),
		PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func kafkaFromEnv() KafkaConfig {
	return KafkaConfig{
		Brokers:       getEnvAsList("KAFKA_BROKERS"),
		Topic:         getEnv("KAFKA_TOPIC", "listcart.object-created"),
		ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "listcart-ingest"),
		Partitions:    int32(getEnvAsInt("KAFKA_PARTITIONS", 3)),
		Replication:   int16(getEnvAsInt("KAFKA_REPLICATION", 1)),
		MaxDeliveries: getEnvAsInt("KAFKA_MAX_DELIVERIES", 3),
	}
}

func storeFromEnv() StoreConfig {
	return StoreConfig{
		Root:          getEnv("STORE_ROOT", "./data/objects"),
		Bucket:        getEnv("STORE_BUCKET", "captures"),
		PublicBaseURL: strings.TrimRight(getEnv("STORE_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SigningSecret: getEnv("STORE_SIGNING_SECRET", "dev-url-signing-secret"),
		MaxBytes:      int64(getEnvAsInt("UPLOAD_MAX_BYTES", 10<<20)),
	}
}

func recognitionFromEnv() RecognitionConfig {
	return RecognitionConfig{
		Backend:          getEnv("RECOGNITION_BACKEND", "http"),
		URL:              getEnv("RECOGNITION_URL", "http://localhost:8090"),
		APIKey:           getEnv("RECOGNITION_API_KEY", ""),
		Languages:        getEnvAsListDefault("RECOGNITION_LANGUAGES", []string{"swe", "eng"}),
		CallTimeout:      getEnvAsDuration("RECOGNITION_TIMEOUT", 15*time.Second),
		Attempts:         getEnvAsInt("RECOGNITION_ATTEMPTS", 3),
		InitialBackoff:   getEnvAsDuration("RECOGNITION_INITIAL_BACKOFF", 500*time.Millisecond),
		MaxBackoff:       getEnvAsDuration("RECOGNITION_MAX_BACKOFF", 5*time.Second),
		BreakerThreshold: getEnvAsInt("RECOGNITION_BREAKER_THRESHOLD", 5),
		BreakerCooldown:  getEnvAsDuration("RECOGNITION_BREAKER_COOLDOWN", 30*time.Second),
	}
}

func resolutionFromEnv() ResolutionConfig {
	return ResolutionConfig{
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 80),
		Concurrency:         getEnvAsInt("DISPATCH_CONCURRENCY", 4),
		CartURL:             getEnv("CART_API_URL", "http://localhost:8070"),
		CartAPIKey:          getEnv("CART_API_KEY", ""),
		DispatchTimeout:     getEnvAsDuration("DISPATCH_TIMEOUT", 5*time.Second),
	}
}

func dedupeFromEnv() DedupeConfig {
	return DedupeConfig{
		Backend:     getEnv("DEDUPE_BACKEND", "none"),
		PostgresDSN: getEnv("DEDUPE_POSTGRES_DSN", ""),
		TTL:         getEnvAsDuration("DEDUPE_TTL", 7*24*time.Hour),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvAsList(key string) []string {
	return getEnvAsListDefault(key, nil)
}

func getEnvAsListDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return liststr.SplitList(v, ",")
}
