// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xavierca1/zag-leads/internal/usecase"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Env      string
	HTTPAddr string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	RabbitMQURL string

	MailEnabled  bool
	MailHost     string
	MailPort     int
	MailUser     string
	MailPass     string
	MailFrom     string
	MailFromName string

	OperatorEmail string
	ReportEmail   string
	ReportHour    int
	PublicBaseURL string

	AttioAPIKey  string
	AttioBaseURL string

	WebhookSecret  string
	AdminToken     string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	TrustProxy     bool

	// APIURL is where cmd/scheduler reaches the API.
	APIURL string

	// APIRunsScheduler runs the advance ticker inside the API process.
	APIRunsScheduler    bool
	AdvanceInterval     time.Duration
	MinStepGap          time.Duration
	ClaimLease          time.Duration
	DispatchConcurrency int

	ScoringRulesPath string
	CatalogPath      string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Malformed numbers and durations are
// reported instead of silently zeroed.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	p := parser{lookup: lookup}

	cfg := &Config{
		Env:      p.str("APP_ENV", "development"),
		HTTPAddr: ":" + strings.TrimPrefix(p.str("HTTP_PORT", "8080"), ":"),

		StoreDriver: strings.ToLower(p.str("STORE_DRIVER", DriverSQLite)),
		DatabaseURL: p.str("DATABASE_URL", ""),
		SQLitePath:  p.str("SQLITE_PATH", "zag-leads.db"),

		RabbitMQURL: p.str("RABBITMQ_URL", ""),

		MailEnabled:  p.boolean("MAIL_ENABLED", false),
		MailHost:     p.str("MAIL_HOST", ""),
		MailPort:     p.integer("MAIL_PORT", 587),
		MailUser:     p.str("MAIL_USER", ""),
		MailPass:     p.str("MAIL_PASS", ""),
		MailFrom:     p.str("MAIL_FROM", "hello@zag.local"),
		MailFromName: p.str("MAIL_FROM_NAME", "Zag"),

		OperatorEmail: p.str("OPERATOR_EMAIL", ""),
		ReportEmail:   p.str("REPORT_EMAIL", ""),
		ReportHour:    p.integer("REPORT_HOUR", 8),
		PublicBaseURL: p.str("PUBLIC_BASE_URL", ""),

		AttioAPIKey:  p.str("ATTIO_API_KEY", ""),
		AttioBaseURL: p.str("ATTIO_BASE_URL", ""),

		WebhookSecret:  p.str("WEBHOOK_SECRET", ""),
		AdminToken:     p.str("ADMIN_TOKEN", ""),
		CORSOrigins:    splitCSV(p.str("CORS_ORIGINS", "*")),
		RateLimitRPS:   p.float("WEBHOOK_RATE_LIMIT_RPS", 2),
		RateLimitBurst: p.integer("WEBHOOK_RATE_LIMIT_BURST", 10),
		TrustProxy:     p.boolean("TRUST_PROXY", false),

		APIRunsScheduler:    p.boolean("API_RUN_SCHEDULER", true),
		AdvanceInterval:     p.duration("ADVANCE_INTERVAL", 15*time.Minute),
		MinStepGap:          p.duration("MIN_STEP_GAP", 24*time.Hour),
		ClaimLease:          p.duration("CLAIM_LEASE", 10*time.Minute),
		DispatchConcurrency: p.integer("DISPATCH_CONCURRENCY", 8),

		ScoringRulesPath: p.str("SCORING_RULES_PATH", ""),
		CatalogPath:      p.str("CATALOG_PATH", ""),
	}
	cfg.APIURL = strings.TrimRight(p.str("API_URL", "http://localhost"+cfg.HTTPAddr), "/")
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres, sqlite or memory, got %q", c.StoreDriver)
	}
	if c.MailEnabled && c.MailHost == "" {
		return fmt.Errorf("MAIL_HOST is required when MAIL_ENABLED is true")
	}
	if c.ReportHour < 0 || c.ReportHour > 23 {
		return fmt.Errorf("REPORT_HOUR must be between 0 and 23")
	}
	if c.AdvanceInterval <= 0 {
		return fmt.Errorf("ADVANCE_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) Lifecycle() usecase.LifecycleConfig {
	return usecase.LifecycleConfig{
		MinStepGap:  c.MinStepGap,
		ClaimLease:  c.ClaimLease,
		Concurrency: c.DispatchConcurrency,
	}
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) str(key, fallback string) string {
	if v, ok := p.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q: %w", key, raw, err)
	}
}

func (p *parser) integer(key string, fallback int) int {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) boolean(key string, fallback bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
