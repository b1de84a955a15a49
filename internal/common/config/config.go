// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mail      MailConfig      `mapstructure:"mail"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Mail Transport Config ---

// MailConfig selects and configures the outbound mail transport.
// Provider is "smtp" or "ses".
type MailConfig struct {
	Provider string     `mapstructure:"provider"`
	From     string     `mapstructure:"from"`
	SMTP     SMTPConfig `mapstructure:"smtp"`
	SES      SESConfig  `mapstructure:"ses"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type SESConfig struct {
	Region string `mapstructure:"region"`
}

// --- Engine Config ---

// OTPConfig governs one-time password issuance.
type OTPConfig struct {
	TTL    time.Duration `mapstructure:"ttl"`
	Digits int           `mapstructure:"digits"`
}

// LifecycleConfig holds the two expiry windows. AcceptanceWindow is how long
// an unsigned document stays actionable after creation; ValidityWindow is the
// offer validity stamped onto ExpiresAt at signature time.
type LifecycleConfig struct {
	AcceptanceWindow time.Duration `mapstructure:"acceptance_window"`
	ValidityWindow   time.Duration `mapstructure:"validity_window"`
}

// SchedulerConfig holds the sweep cadence and the expiry-warning lead time.
type SchedulerConfig struct {
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	ExpiryInterval time.Duration `mapstructure:"expiry_interval"`
	WarningLead    time.Duration `mapstructure:"warning_lead"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
