// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Email     EmailConfig
	Telemetry TelemetryConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	Policy    PolicyConfig

	policyErr error
}

type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	SummaryTTL time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	Timeout      time.Duration
}

type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type SchedulerConfig struct {
	Enabled            bool
	LoanStatusInterval time.Duration
	RecurringInterval  time.Duration
}

type LogConfig struct {
	Level string
}

// PolicyConfig is the environment fallback for the sacco_settings row.
type PolicyConfig struct {
	MinimumMembershipMonths    int             `env:"SACCO_MINIMUM_MEMBERSHIP_MONTHS" envDefault:"3"`
	ShareCapitalAmount         decimal.Decimal `env:"SACCO_SHARE_CAPITAL_AMOUNT" envDefault:"5000.00"`
	LoanMultiplier             decimal.Decimal `env:"SACCO_LOAN_MULTIPLIER" envDefault:"3.00"`
	DefaultLoanInterestRate    decimal.Decimal `env:"SACCO_DEFAULT_LOAN_INTEREST_RATE" envDefault:"12.00"`
	MaximumLoanPeriodMonths    int             `env:"SACCO_MAXIMUM_LOAN_PERIOD_MONTHS" envDefault:"12"`
	RequireGuarantors          bool            `env:"SACCO_REQUIRE_GUARANTORS" envDefault:"true"`
	MinimumGuarantorPercentage decimal.Decimal `env:"SACCO_MINIMUM_GUARANTOR_PERCENTAGE" envDefault:"25.00"`
	MinimumMonthlyInvestment   decimal.Decimal `env:"SACCO_MINIMUM_MONTHLY_INVESTMENT" envDefault:"100.00"`
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:        normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getIntEnv("REDIS_DB", 0),
			SummaryTTL: getDurationEnv("REDIS_SUMMARY_TTL", 10*time.Minute),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-secret"),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Email: EmailConfig{
			Enabled:      getBoolEnv("EMAIL_ENABLED", false),
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", ""),
			Timeout:      getDurationEnv("NOTIFICATION_TIMEOUT", 15*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getBoolEnv("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "sacco"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            getBoolEnv("SCHEDULER_ENABLED", true),
			LoanStatusInterval: getDurationEnv("LOAN_STATUS_INTERVAL", time.Hour),
			RecurringInterval:  getDurationEnv("RECURRING_INTERVAL", time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	cfg.Policy, cfg.policyErr = LoadPolicy()
	return cfg
}

// LoadPolicy parses the SACCO_* variables.
func LoadPolicy() (PolicyConfig, error) {
	var p PolicyConfig
	if err := env.Parse(&p); err != nil {
		return p, fmt.Errorf("parse env: %w", err)
	}
	return p, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func normalizeRedisURL(url string) string {
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
