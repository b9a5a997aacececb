package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Profile string

	HTTPAddr          string
	ReadHeaderTimeout time.Duration

	DBDriver string
	DBDSN    string

	TokenPepper         string
	BcryptCost          int
	ResetPasswordLength int

	RedisAddr        string
	RedisPassword    string
	NegativeCacheTTL time.Duration

	MailerBackend string
	SMTPAddr      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	EnableOTelHTTP            bool

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Profile:                      getEnv("APP_PROFILE", "dev"),
		HTTPAddr:                     getEnv("HTTP_ADDR", ":8080"),
		ReadHeaderTimeout:            getDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		DBDriver:                     getEnv("DB_DRIVER", "sqlite"),
		DBDSN:                        getEnv("DB_DSN", "file:tokenauth.db?cache=shared"),
		TokenPepper:                  getEnv("TOKEN_PEPPER", ""),
		BcryptCost:                   getInt("BCRYPT_COST", 12),
		ResetPasswordLength:          getInt("RESET_PASSWORD_LENGTH", 16),
		RedisAddr:                    getEnv("REDIS_ADDR", ""),
		RedisPassword:                getEnv("REDIS_PASSWORD", ""),
		NegativeCacheTTL:             getDuration("NEGATIVE_CACHE_TTL", 30*time.Second),
		MailerBackend:                getEnv("MAILER_BACKEND", "log"),
		SMTPAddr:                     getEnv("SMTP_ADDR", "localhost:587"),
		SMTPFrom:                     getEnv("SMTP_FROM", "no-reply@localhost"),
		SMTPUsername:                 getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                 getEnv("SMTP_PASSWORD", ""),
		OTELServiceName:              getEnv("OTEL_SERVICE_NAME", "token-auth-service"),
		OTELEnvironment:              getEnv("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:           getBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:            getBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:              getBool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval:    getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
		EnableOTelHTTP:               getBool("OTEL_HTTP_ENABLED", false),
		ShutdownTimeout:              getDuration("SHUTDOWN_TIMEOUT", 20*time.Second),
		ShutdownHTTPDrainTimeout:     getDuration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second),
		ShutdownObservabilityTimeout: getDuration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("validate config: %w", err)
		recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg.Profile, "success", "none")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Profile {
	case "dev", "prod":
	default:
		return fmt.Errorf("unknown profile %q", c.Profile)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown db driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN must be set")
	}
	switch c.MailerBackend {
	case "log", "smtp":
	default:
		return fmt.Errorf("unknown mailer backend %q", c.MailerBackend)
	}
	if c.Profile == "prod" {
		if len(c.TokenPepper) < 16 {
			return fmt.Errorf("TOKEN_PEPPER must be at least 16 characters in prod")
		}
		if c.MailerBackend == "smtp" && c.SMTPAddr == "" {
			return fmt.Errorf("SMTP_ADDR must be set for the smtp mailer")
		}
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d out of range", c.BcryptCost)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}
