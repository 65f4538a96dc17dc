// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the facilitator service.
type Config struct {
	// Environment is "production" or "development".
	Environment string `mapstructure:"environment"`

	Vault        VaultConfig        `mapstructure:"vault"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	ExpiryReport ExpiryReportConfig `mapstructure:"expiry_report"`
}

// VaultConfig configures the key encryption vault.
type VaultConfig struct {
	// MasterSecret is the custodial master secret. Required.
	MasterSecret string `mapstructure:"master_secret"`

	// Iterations is the PBKDF2 iteration count. Zero selects the default.
	Iterations int `mapstructure:"iterations"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`

	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`

	SkipMigrations bool   `mapstructure:"skip_migrations"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// SubscriptionConfig configures entitlement durations.
type SubscriptionConfig struct {
	// DurationDays is the number of days one payment purchases.
	DurationDays int `mapstructure:"duration_days"`
}

// ExpiryReportConfig configures the expiry report background job.
type ExpiryReportConfig struct {
	// Schedule is how often the report runs.
	Schedule time.Duration `mapstructure:"schedule"`

	// Window is the lookahead for soon-to-expire subscriptions.
	Window time.Duration `mapstructure:"window"`
}

// DefaultConfig returns a Config with default values. The vault master
// secret has no default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "facilitator",
			Database: "facilitator",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Subscription: SubscriptionConfig{
			DurationDays: 30,
		},
		ExpiryReport: ExpiryReportConfig{
			Schedule: 24 * time.Hour,
			Window:   72 * time.Hour,
		},
	}
}

// Load loads configuration from file and environment variables.
// Priority (highest to lowest): Environment variables > Config file > Defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	if configPath != "" {
		// An explicitly supplied path must exist; silently falling back
		// to defaults would hide an operator mistake.
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FACILITATOR")
	v.AutomaticEnv()

	v.BindEnv("environment")
	v.BindEnv("vault.master_secret", "FACILITATOR_VAULT_MASTER_SECRET")
	v.BindEnv("vault.iterations", "FACILITATOR_VAULT_ITERATIONS")
	v.BindEnv("database.host", "FACILITATOR_DATABASE_HOST")
	v.BindEnv("database.port", "FACILITATOR_DATABASE_PORT")
	v.BindEnv("database.user", "FACILITATOR_DATABASE_USER")
	v.BindEnv("database.password", "FACILITATOR_DATABASE_PASSWORD")
	v.BindEnv("database.database", "FACILITATOR_DATABASE_NAME")
	v.BindEnv("database.ssl_mode", "FACILITATOR_DATABASE_SSL_MODE")
	v.BindEnv("subscription.duration_days", "FACILITATOR_SUBSCRIPTION_DURATION_DAYS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Vault.MasterSecret == "" {
		return fmt.Errorf("vault master secret is required (set FACILITATOR_VAULT_MASTER_SECRET)")
	}

	if c.Subscription.DurationDays <= 0 {
		return fmt.Errorf("subscription duration must be positive, got %d", c.Subscription.DurationDays)
	}

	return nil
}
