package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	JWTSigningKey  string
	PostgresDSN    string
	RedisURL       string
	KafkaSeeds     []string
	KafkaTopic     string
	SeedDemo       bool
	ShutdownGrace  time.Duration
	ReservationTTL time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("KINLINK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "kinlink.audit"
	}

	var seeds []string
	if raw := os.Getenv("KAFKA_SEEDS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
	}

	return Server{
		Addr:           addr,
		JWTSigningKey:  jwtSigningKey,
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaSeeds:     seeds,
		KafkaTopic:     topic,
		SeedDemo:       os.Getenv("SEED_DEMO") == "true",
		ShutdownGrace:  10 * time.Second,
		ReservationTTL: 30 * time.Second,
	}
}

// RedisConfig tunes the shared redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns conservative pool settings for request-path use.
func DefaultRedisConfig(url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}
