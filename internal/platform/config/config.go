// Package config loads server configuration from TRUSTREG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"trustreg/pkg/platform/strings"
)

// Journal backends.
const (
	JournalMemory   = "memory"
	JournalPostgres = "postgres"
	JournalRedis    = "redis"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	Authority       string
	AdminToken      string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	Auth      AuthConfig
	Journal   JournalConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
}

// AuthConfig configures bearer token signing and validation.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// JournalConfig selects where accepted registry mutations are persisted.
type JournalConfig struct {
	Backend   string
	StreamKey string
}

// PostgresConfig configures the journal database pool.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig tunes the audit trail. Audit events go to Postgres whenever a
// DSN is configured, otherwise they stay in memory.
type AuditConfig struct {
	BufferSize    int
	OpsSampleRate float64
}

// RateLimitConfig sets per-IP budgets per minute. Buckets live in Redis when
// a Redis URL is configured.
type RateLimitConfig struct {
	Disabled       bool
	ReadPerMinute  int
	WritePerMinute int
}

// KafkaConfig configures registry event fan-out. An empty broker list
// disables Kafka and events stay in process.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

// Enabled reports whether any brokers are configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// IsProduction reports whether the server runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:            getEnv("TRUSTREG_ADDR", ":8080"),
		Environment:     getEnv("TRUSTREG_ENV", "development"),
		Authority:       os.Getenv("TRUSTREG_AUTHORITY"),
		AdminToken:      os.Getenv("TRUSTREG_ADMIN_TOKEN"),
		ShutdownTimeout: getDuration("TRUSTREG_SHUTDOWN_TIMEOUT", 15*time.Second),
		RequestTimeout:  getDuration("TRUSTREG_REQUEST_TIMEOUT", 10*time.Second),
		Auth: AuthConfig{
			SigningKey: getEnv("TRUSTREG_JWT_SIGNING_KEY", devSigningKey),
			Issuer:     getEnv("TRUSTREG_JWT_ISSUER", "trustreg"),
			Audience:   getEnv("TRUSTREG_JWT_AUDIENCE", "trustreg-api"),
		},
		Journal: JournalConfig{
			Backend:   getEnv("TRUSTREG_JOURNAL", JournalMemory),
			StreamKey: getEnv("TRUSTREG_JOURNAL_STREAM", "trustreg:journal"),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("TRUSTREG_POSTGRES_DSN"),
			MaxOpenConns:    getInt("TRUSTREG_POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("TRUSTREG_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("TRUSTREG_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("TRUSTREG_REDIS_URL"),
			PoolSize:     getInt("TRUSTREG_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("TRUSTREG_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("TRUSTREG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("TRUSTREG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("TRUSTREG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           strings.SplitList(os.Getenv("TRUSTREG_KAFKA_BROKERS")),
			Topic:             getEnv("TRUSTREG_KAFKA_TOPIC", "trustreg.registry.events"),
			ClientID:          getEnv("TRUSTREG_KAFKA_CLIENT_ID", "trustreg"),
			Partitions:        int32(getInt("TRUSTREG_KAFKA_PARTITIONS", 1)),
			ReplicationFactor: int16(getInt("TRUSTREG_KAFKA_REPLICATION_FACTOR", 1)),
		},
		Audit: AuditConfig{
			BufferSize:    getInt("TRUSTREG_AUDIT_BUFFER", 1024),
			OpsSampleRate: getFloat("TRUSTREG_AUDIT_OPS_SAMPLE_RATE", 0.1),
		},
		RateLimit: RateLimitConfig{
			Disabled:       os.Getenv("TRUSTREG_RATELIMIT_DISABLED") == "true",
			ReadPerMinute:  getInt("TRUSTREG_RATELIMIT_READ_PER_MINUTE", 300),
			WritePerMinute: getInt("TRUSTREG_RATELIMIT_WRITE_PER_MINUTE", 30),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with.
func (s Server) Validate() error {
	var errs []error
	if s.Authority == "" {
		errs = append(errs, errors.New("TRUSTREG_AUTHORITY is required"))
	}
	if s.IsProduction() && s.Auth.SigningKey == devSigningKey {
		errs = append(errs, errors.New("TRUSTREG_JWT_SIGNING_KEY must be set in production"))
	}
	switch s.Journal.Backend {
	case JournalMemory:
	case JournalPostgres:
		if s.Postgres.DSN == "" {
			errs = append(errs, errors.New("TRUSTREG_POSTGRES_DSN is required for the postgres journal"))
		}
	case JournalRedis:
		if s.Redis.URL == "" {
			errs = append(errs, errors.New("TRUSTREG_REDIS_URL is required for the redis journal"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal backend %q", s.Journal.Backend))
	}
	if s.Audit.OpsSampleRate < 0 || s.Audit.OpsSampleRate > 1 {
		errs = append(errs, errors.New("TRUSTREG_AUDIT_OPS_SAMPLE_RATE must be within [0,1]"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
