package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration for the reporting platform.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// PostgresDSN enables the durable audit ledger when set. The in-memory
	// ledger remains authoritative for query ordering; postgres is a sink.
	PostgresDSN string

	// RedisURL enables the shared break-glass activation lockout store.
	RedisURL string

	// KafkaBrokers enables the compliance audit mirror when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// ShutdownTimeout bounds graceful HTTP shutdown.
var ShutdownTimeout = 10 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("VERDANT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	signingKey := os.Getenv("VERDANT_JWT_SIGNING_KEY")
	if signingKey == "" {
		// Development default; must be overridden in production.
		signingKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("VERDANT_KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "verdant.audit"
	}

	var brokers []string
	if raw := os.Getenv("VERDANT_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: signingKey,
		JWTIssuer:     "verdant",
		JWTAudience:   "verdant-api",
		PostgresDSN:   os.Getenv("VERDANT_POSTGRES_DSN"),
		RedisURL:      os.Getenv("VERDANT_REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
	}
}
