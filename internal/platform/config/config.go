package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Server captures process level configuration. Secrets are injected here once
// and handed to constructors; nothing else reads the environment.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	Auth         AuthConfig
	Cookie       CookieConfig
	Payment      PaymentConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	Kafka        KafkaConfig
	Notification NotificationConfig
}

// AuthConfig holds token secrets and lifetimes.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	// SessionTTL is the cache lifetime of a session snapshot. It outlives the
	// refresh token so a live refresh token always finds its session.
	SessionTTL          time.Duration
	SessionCacheTimeout time.Duration
	Issuer              string
	// ActivationSecret signs activation tokens. RequireActivation needs it.
	ActivationSecret  string
	RequireActivation bool
	// SocialAuthEnabled mounts /social-auth, which trusts the identity the
	// client reports.
	SocialAuthEnabled bool
}

// CookieConfig controls how token cookies are written.
type CookieConfig struct {
	SameSite http.SameSite
	Secure   bool
	Domain   string
}

// PaymentConfig holds the gateway signature secret.
type PaymentConfig struct {
	SignatureSecret string
	// StrictSignatureVerification rejects confirmations whose signature does
	// not match. When false a mismatch is logged and the enrollment proceeds.
	StrictSignatureVerification bool
}

// RedisConfig configures the session cache client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the persistent store.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// KafkaConfig configures the notification topic producer.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	Partitions        int32
	ReplicationFactor int16
}

// NotificationConfig selects the notification sink and bounds the queue.
type NotificationConfig struct {
	Sink         string // kafka, postgres or log
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// IsProduction reports whether the process runs with production settings.
func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

// FromEnv builds a Server config from environment variables, loading a .env
// file first when one is present.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	env := getString("APP_ENV", EnvDevelopment)
	cfg := Server{
		Addr:        getString("LEARNHUB_ADDR", ":8080"),
		Environment: env,
		LogLevel:    getString("LOG_LEVEL", "info"),
		Auth: AuthConfig{
			AccessTokenSecret:   os.Getenv("ACCESS_TOKEN_SECRET"),
			RefreshTokenSecret:  os.Getenv("REFRESH_TOKEN_SECRET"),
			AccessTokenTTL:      getDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
			RefreshTokenTTL:     getDuration("REFRESH_TOKEN_TTL", 3*24*time.Hour),
			SessionTTL:          getDuration("SESSION_TTL", 7*24*time.Hour),
			SessionCacheTimeout: getDuration("SESSION_CACHE_TIMEOUT", 500*time.Millisecond),
			Issuer:              getString("TOKEN_ISSUER", "learnhub"),
			ActivationSecret:    os.Getenv("ACTIVATION_SECRET"),
			RequireActivation:   getBool("AUTH_REQUIRE_ACTIVATION", false),
			SocialAuthEnabled:   getBool("AUTH_SOCIAL_ENABLED", false),
		},
		Cookie: CookieConfig{
			SameSite: parseSameSite(getString("COOKIE_SAMESITE", "lax")),
			Secure:   getBool("COOKIE_SECURE", env == EnvProduction),
			Domain:   os.Getenv("COOKIE_DOMAIN"),
		},
		Payment: PaymentConfig{
			SignatureSecret:             os.Getenv("PAYMENT_SIGNATURE_SECRET"),
			StrictSignatureVerification: getBool("PAYMENT_STRICT_SIGNATURE", true),
		},
		Redis: RedisConfig{
			URL:          getString("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       getDuration("DB_TX_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
			NotificationTopic: getString("KAFKA_NOTIFICATION_TOPIC", "learnhub.notifications"),
			Partitions:        int32(getInt("KAFKA_NOTIFICATION_PARTITIONS", 3)),
			ReplicationFactor: int16(getInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		Notification: NotificationConfig{
			Sink:         getString("NOTIFICATION_SINK", "log"),
			QueueSize:    getInt("NOTIFICATION_QUEUE_SIZE", 1024),
			Workers:      getInt("NOTIFICATION_WORKERS", 2),
			WriteTimeout: getDuration("NOTIFICATION_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	var errs []error
	if s.Auth.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if s.Auth.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if s.Auth.AccessTokenSecret != "" && s.Auth.AccessTokenSecret == s.Auth.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if s.Auth.RequireActivation && s.Auth.ActivationSecret == "" {
		errs = append(errs, errors.New("ACTIVATION_SECRET is required when AUTH_REQUIRE_ACTIVATION is set"))
	}
	if s.Payment.SignatureSecret == "" {
		errs = append(errs, errors.New("PAYMENT_SIGNATURE_SECRET is required"))
	}
	if s.IsProduction() && !s.Payment.StrictSignatureVerification {
		errs = append(errs, errors.New("PAYMENT_STRICT_SIGNATURE cannot be disabled in production"))
	}
	if s.Auth.SessionTTL < s.Auth.RefreshTokenTTL {
		errs = append(errs, errors.New("SESSION_TTL must be at least REFRESH_TOKEN_TTL"))
	}
	switch s.Notification.Sink {
	case "kafka":
		if len(s.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka notification sink"))
		}
	case "postgres", "log":
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFICATION_SINK %q", s.Notification.Sink))
	}
	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
