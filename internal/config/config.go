package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	TransportSMTP    = "smtp"
	TransportWebhook = "webhook"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	APIKey      string `env:"API_KEY,required=true"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFormat   string `env:"LOG_FORMAT,default=json"`

	Timezone   string `env:"TIMEZONE,default=Africa/Cairo"`
	WeeklyCron string `env:"WEEKLY_CRON,default=0 12 * * SUN"`
	DailyCron  string `env:"DAILY_CRON,default=0 0 * * *"`
	// CycleTimeoutSec bounds one scheduled cycle end to end.
	CycleTimeoutSec int `env:"CYCLE_TIMEOUT_SEC,default=1800"`

	Transport       string `env:"TRANSPORT,default=smtp"`
	SMTPHost        string `env:"SMTP_HOST"`
	SMTPPort        int    `env:"SMTP_PORT,default=587"`
	SMTPUsername    string `env:"SMTP_USERNAME"`
	SMTPPassword    string `env:"SMTP_PASSWORD"`
	SMTPFrom        string `env:"SMTP_FROM"`
	SMTPImplicitTLS bool   `env:"SMTP_IMPLICIT_TLS,default=false"`
	WebhookURL      string `env:"WEBHOOK_URL"`

	DeliveryTimeoutSec  int `env:"DELIVERY_TIMEOUT_SEC,default=15"`
	DispatchConcurrency int `env:"DISPATCH_CONCURRENCY,default=8"`
	RateLimitPerSec     int `env:"RATE_LIMIT_PER_SEC,default=10"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY,required=true"`
	GeminiModel   string `env:"GEMINI_MODEL,default=gemini-1.5-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL,default=https://generativelanguage.googleapis.com"`

	UnsubscribeSecret   string `env:"UNSUBSCRIBE_SECRET,required=true"`
	UnsubscribeTTLHours int    `env:"UNSUBSCRIBE_TTL_HOURS,default=168"`
	BaseURL             string `env:"BASE_URL,required=true"`
}

// LoadDotEnv populates the environment from the given files (".env" when
// none are given). Missing files are ignored and real env vars win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Transport)) {
	case TransportSMTP:
		if strings.TrimSpace(c.SMTPHost) == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when TRANSPORT=smtp"))
		}
		if strings.TrimSpace(c.SMTPFrom) == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when TRANSPORT=smtp"))
		}
	case TransportWebhook:
		if strings.TrimSpace(c.WebhookURL) == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required when TRANSPORT=webhook"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportSMTP, TransportWebhook, c.Transport))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid BASE_URL: %w", err))
	}
	if c.DispatchConcurrency <= 0 {
		errs = append(errs, errors.New("DISPATCH_CONCURRENCY must be positive"))
	}
	if c.DeliveryTimeoutSec <= 0 {
		errs = append(errs, errors.New("DELIVERY_TIMEOUT_SEC must be positive"))
	}
	if c.RateLimitPerSec <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_SEC must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location is the timezone both cadences are evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSec) * time.Second
}

func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutSec) * time.Second
}

func (c *Config) UnsubscribeTTL() time.Duration {
	return time.Duration(c.UnsubscribeTTLHours) * time.Hour
}
