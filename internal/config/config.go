package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Archive ArchiveConfig
	Auth    AuthConfig
	Gigs    GigConfig
	Timers  TimerConfig
	LogDir  string
}

type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	IdleTimeout   time.Duration
	PublicBaseURL string
}

// RedisConfig also selects the document store: "redis" or "memory".
type RedisConfig struct {
	Addr         string
	DB           int
	StoreBackend string
	Prefix       string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	Lifecycle string
	Requests  string
	Queue     string
}

type ArchiveConfig struct {
	Enabled    bool
	Driver     string
	DSN        string
	Migrations bool
}

// AuthConfig uses OIDC when an issuer is set and HS256 tokens otherwise.
type AuthConfig struct {
	OIDCIssuer    string
	JWTSecret     string
	TokenCacheTTL time.Duration
}

type GigConfig struct {
	Timezone         string
	VoteRadiusMeters float64
	DefaultQueueSize int
}

type TimerConfig struct {
	AutoEndInterval  time.Duration
	LivenessInterval time.Duration
	CleanupInterval  time.Duration
	CleanupEnabled   bool
}

// Load reads .env when present and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", ":8080"),
			ReadTimeout:   getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:   getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			DB:           getEnvInt("REDIS_DB", 0),
			StoreBackend: getEnv("STORE_BACKEND", "redis"),
			Prefix:       getEnv("STORE_PREFIX", "gigs"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			GroupID: getEnv("KAFKA_GROUP_ID", "gig-archive"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				Lifecycle: getEnv("KAFKA_TOPIC_LIFECYCLE", "gigs.lifecycle"),
				Requests:  getEnv("KAFKA_TOPIC_REQUESTS", "gigs.requests"),
				Queue:     getEnv("KAFKA_TOPIC_QUEUE", "gigs.queue"),
			},
		},
		Archive: ArchiveConfig{
			Enabled:    getEnvBool("ARCHIVE_ENABLED", true),
			Driver:     getEnv("ARCHIVE_DRIVER", "sqlite"),
			DSN:        getEnv("ARCHIVE_DSN", "file:gigs-archive.db?cache=shared"),
			Migrations: getEnvBool("ARCHIVE_MIGRATIONS", true),
		},
		Auth: AuthConfig{
			OIDCIssuer:    os.Getenv("OIDC_ISSUER"),
			JWTSecret:     os.Getenv("JWT_SECRET"),
			TokenCacheTTL: getEnvDuration("TOKEN_CACHE_TTL", 10*time.Minute),
		},
		Gigs: GigConfig{
			Timezone:         getEnv("GIG_TIMEZONE", "America/New_York"),
			VoteRadiusMeters: getEnvFloat("VOTE_RADIUS_METERS", 1000),
			DefaultQueueSize: getEnvInt("DEFAULT_QUEUE_SIZE", 20),
		},
		Timers: TimerConfig{
			AutoEndInterval:  getEnvDuration("AUTO_END_INTERVAL", time.Minute),
			LivenessInterval: getEnvDuration("LIVENESS_INTERVAL", 5*time.Second),
			CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			CleanupEnabled:   getEnvBool("CLEANUP_ENABLED", true),
		},
		LogDir: getEnv("LOG_DIR", "logs"),
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Redis.StoreBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be redis or memory, got %q", c.Redis.StoreBackend)
	}
	switch c.Archive.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("ARCHIVE_DRIVER must be postgres or sqlite, got %q", c.Archive.Driver)
	}
	if c.Auth.OIDCIssuer == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("one of OIDC_ISSUER or JWT_SECRET must be set")
	}
	if c.Gigs.DefaultQueueSize < 20 || c.Gigs.DefaultQueueSize > 50 {
		return fmt.Errorf("DEFAULT_QUEUE_SIZE must be between 20 and 50, got %d", c.Gigs.DefaultQueueSize)
	}
	if c.Gigs.VoteRadiusMeters < 0 {
		return fmt.Errorf("VOTE_RADIUS_METERS must not be negative")
	}
	if _, err := time.LoadLocation(c.Gigs.Timezone); err != nil {
		return fmt.Errorf("GIG_TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves GIG_TIMEZONE, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Gigs.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
