package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Outbox      OutboxConfig
}

// RedisConfig tunes the milestone view cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig points the event publisher at a broker. Empty brokers fall back
// to the log sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// OutboxConfig tunes the event drain loop.
type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PAYLOG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("PAYLOG_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("PAYLOG_KAFKA_TOPIC")
	if topic == "" {
		topic = "paylog.ledger.events"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     envOr("PAYLOG_JWT_ISSUER", "paylog"),
		JWTAudience:   envOr("PAYLOG_JWT_AUDIENCE", "paylog-api"),
		PostgresURL:   os.Getenv("PAYLOG_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("PAYLOG_REDIS_URL"),
			PoolSize:     envInt("PAYLOG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PAYLOG_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("PAYLOG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PAYLOG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PAYLOG_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("PAYLOG_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("PAYLOG_KAFKA_BROKERS")),
			Topic:   topic,
		},
		Outbox: OutboxConfig{
			Interval:  envDuration("PAYLOG_OUTBOX_INTERVAL", time.Second),
			BatchSize: envInt("PAYLOG_OUTBOX_BATCH_SIZE", 100),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
