package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	AMQPURL       string
	AMQPExchange  string
	OTLPEndpoint  string
	JWTSigningKey string

	// FeeAmount is the standard mobilization fee in minor units (kobo).
	FeeAmount   int64
	FeeCurrency string

	// Credit pass defaults applied when an issue request leaves them unset.
	PassCredits  int
	PassValidity time.Duration

	// SweepInterval paces the pending→locked fee sweeper.
	SweepInterval time.Duration

	Redis RedisConfig
}

// RedisConfig tunes the shared redis client. An empty URL disables redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envStr("INSPEKTA_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("INSPEKTA_POSTGRES_DSN"),
		AMQPURL:       os.Getenv("INSPEKTA_AMQP_URL"),
		AMQPExchange:  envStr("INSPEKTA_AMQP_EXCHANGE", "inspekta.bookings"),
		OTLPEndpoint:  os.Getenv("INSPEKTA_OTLP_ENDPOINT"),
		JWTSigningKey: envStr("INSPEKTA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		FeeAmount:     envInt64("INSPEKTA_FEE_AMOUNT", 250000),
		FeeCurrency:   envStr("INSPEKTA_FEE_CURRENCY", "ngn"),
		PassCredits:   envInt("INSPEKTA_PASS_CREDITS", 5),
		PassValidity:  envDur("INSPEKTA_PASS_VALIDITY", 30*24*time.Hour),
		SweepInterval: envDur("INSPEKTA_SWEEP_INTERVAL", time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("INSPEKTA_REDIS_URL"),
			PoolSize:     envInt("INSPEKTA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("INSPEKTA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDur("INSPEKTA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("INSPEKTA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("INSPEKTA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
