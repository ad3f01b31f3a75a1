package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Admin      AdminConfig
	Mail       MailConfig
	Contact    ContactConfig
	Monitoring MonitoringConfig
}

// DefaultTrustedProxies trusts forwarding headers from any peer, so the
// client IP is the first X-Forwarded-For hop. Set TRUSTED_PROXIES=none to
// use the socket address instead.
var DefaultTrustedProxies = []string{"0.0.0.0/0", "::/0"}

type ServerConfig struct {
	Port            int
	Env             string
	Name            string
	TrustedProxies  []string // nil = DefaultTrustedProxies, empty = none
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string // json or console
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	// AcquireTimeout bounds connection acquisition plus execution of a single query
	AcquireTimeout time.Duration
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

type RedisConfig struct {
	URL             string
	ReviewsCacheTTL time.Duration
}

type AdminConfig struct {
	Password      string
	PasswordHash  string // argon2id encoded, takes precedence over Password
	SessionSecret string
	SessionTTL    time.Duration // 0 = sessions never expire
}

// Enabled reports whether an admin secret has been configured
func (a AdminConfig) Enabled() bool {
	return a.Password != "" || a.PasswordHash != ""
}

// Mail providers
const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
	ProviderLog      = "log"
)

type MailConfig struct {
	Provider       string
	ResendAPIKey   string
	ResendAPIURL   string
	SendGridAPIKey string
	From           string
	To             string
	Timeout        time.Duration
}

type ContactConfig struct {
	RateWindow time.Duration
	LedgerSize int
}

type MonitoringConfig struct {
	PrometheusEnabled bool
	PrometheusPort    int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", getEnvInt("API_PORT", 3000)),
			Env:             getEnv("APP_ENV", "development"),
			Name:            getEnv("APP_NAME", "sitefreelance"),
			TrustedProxies:  getEnvList("TRUSTED_PROXIES", DefaultTrustedProxies),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 5)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 1)),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			AcquireTimeout:  getEnvDuration("DB_ACQUIRE_TIMEOUT", 5*time.Second),
			ConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),
			ConnectBackoff:  getEnvDuration("DB_CONNECT_BACKOFF", time.Second),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			ReviewsCacheTTL: getEnvDuration("REVIEWS_CACHE_TTL", time.Minute),
		},
		Admin: AdminConfig{
			Password:      getEnv("ADMIN_PASSWORD", ""),
			PasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
			SessionSecret: getEnv("ADMIN_SESSION_SECRET", ""),
			SessionTTL:    getEnvDuration("ADMIN_SESSION_TTL", 12*time.Hour),
		},
		Mail: MailConfig{
			ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
			ResendAPIURL:   getEnv("RESEND_API_URL", "https://api.resend.com"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			From:           getEnv("EMAIL_FROM", "Site Freelance <onboarding@resend.dev>"),
			To:             getEnv("EMAIL_TO", ""),
			Timeout:        getEnvDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		Contact: ContactConfig{
			RateWindow: getEnvDuration("CONTACT_RATE_WINDOW", 30*time.Second),
			LedgerSize: getEnvInt("CONTACT_LEDGER_SIZE", 10000),
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: getEnvBool("PROMETHEUS_ENABLED", true),
			PrometheusPort:    getEnvInt("PROMETHEUS_PORT", 9090),
		},
	}
	cfg.Mail.Provider = resolveProvider(getEnv("EMAIL_PROVIDER", ""), &cfg.Mail)

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the process runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Contact.RateWindow <= 0 {
		return fmt.Errorf("CONTACT_RATE_WINDOW must be positive")
	}
	if c.Contact.LedgerSize <= 0 {
		return fmt.Errorf("CONTACT_LEDGER_SIZE must be positive")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.Database.AcquireTimeout <= 0 {
		return fmt.Errorf("DB_ACQUIRE_TIMEOUT must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}

	switch c.Mail.Provider {
	case ProviderResend:
		if c.Mail.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required for the resend provider")
		}
	case ProviderSendGrid:
		if c.Mail.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
	case ProviderLog:
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Mail.Provider)
	}

	if c.IsProduction() {
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.Mail.To == "" {
			return fmt.Errorf("EMAIL_TO is required in production")
		}
		if !c.Admin.Enabled() {
			return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required in production")
		}
		if c.Mail.Provider == ProviderLog {
			return fmt.Errorf("the log mail provider is not allowed in production")
		}
	}
	return nil
}

// resolveProvider picks the explicit provider or infers one from the configured keys
func resolveProvider(explicit string, m *MailConfig) string {
	if explicit != "" {
		return strings.ToLower(strings.TrimSpace(explicit))
	}
	switch {
	case m.ResendAPIKey != "":
		return ProviderResend
	case m.SendGridAPIKey != "":
		return ProviderSendGrid
	default:
		return ProviderLog
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("30s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if strings.EqualFold(strings.TrimSpace(value), "none") {
		return []string{}
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
