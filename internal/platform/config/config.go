package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// FeePercent is the platform's cut of each sale, an integer percentage
	// in [0,100] applied to the listing price before the seller split. It is
	// read once at startup and exposed by the listing service as a queryable
	// value; call sites never hard-code it.
	FeePercent int

	// FeeRecipient is the only principal allowed to withdraw platform fees.
	FeeRecipient string

	// DevLogin enables the unauthenticated token-minting endpoint. Never set
	// this in production.
	DevLogin bool

	PostgresDSN  string
	Redis        RedisConfig
	KafkaBrokers []string
}

// RedisConfig holds connection settings for the credential revocation list.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultFeePercent applies when KEYMARKET_FEE_PERCENT is unset.
const DefaultFeePercent = 5

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("KEYMARKET_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	feePercent := DefaultFeePercent
	if raw := os.Getenv("KEYMARKET_FEE_PERCENT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 && parsed <= 100 {
			feePercent = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		FeePercent:    feePercent,
		FeeRecipient:  os.Getenv("KEYMARKET_FEE_RECIPIENT"),
		DevLogin:      os.Getenv("KEYMARKET_DEV_LOGIN") == "true",
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers: brokers,
	}
}
