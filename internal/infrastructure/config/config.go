// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. A .env file (loaded into the environment first)
//  2. YAML file (config.yaml), with ${VAR} expansion
//  3. Environment variables (fallback)
//
// Example usage:
//
//	cfg, err := config.LoadOrEnv("config.yaml")
//	driver := cfg.Storage.Driver
//	tolerance, _ := cfg.Reconciliation.ToleranceDecimal()
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config represents the entire application configuration
type Config struct {
	Storage        StorageConfig        `yaml:"storage"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	API            APIConfig            `yaml:"api"`
	Events         EventsConfig         `yaml:"events"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ReconciliationConfig holds the knobs of the two reconciliation runs
type ReconciliationConfig struct {
	PaidStatus       string   `yaml:"paid_status"`
	BalanceTolerance string   `yaml:"balance_tolerance"`
	AccountAllowlist []string `yaml:"account_allowlist"`
}

// ToleranceDecimal parses BalanceTolerance.
func (r ReconciliationConfig) ToleranceDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(r.BalanceTolerance))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("balance_tolerance %q: %w", r.BalanceTolerance, err)
	}
	return d, nil
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EventsConfig holds run event publishing settings
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds Kafka settings. No brokers means events are not published.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stderr or stdout
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
			DSN:    "recon.db",
		},
		Reconciliation: ReconciliationConfig{
			PaidStatus:       "Paid",
			BalanceTolerance: "0.01",
			AccountAllowlist: []string{"Stripe Revenue", "Stripe*", "Stripe Fees", "Stripe Payroll Balance"},
		},
		API: APIConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{Topic: "reconciliation.runs"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		},
	}
}

// Load reads and parses the config file. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_DSN})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	d := Default()
	return &Config{
		Storage: StorageConfig{
			Driver: getEnv("RECON_DB_DRIVER", d.Storage.Driver),
			DSN:    getEnv("RECON_DB_DSN", d.Storage.DSN),
		},
		Reconciliation: ReconciliationConfig{
			PaidStatus:       getEnv("RECON_PAID_STATUS", d.Reconciliation.PaidStatus),
			BalanceTolerance: getEnv("RECON_BALANCE_TOLERANCE", d.Reconciliation.BalanceTolerance),
			AccountAllowlist: getEnvList("RECON_ACCOUNT_ALLOWLIST", d.Reconciliation.AccountAllowlist),
		},
		API: APIConfig{
			Port:           getEnvInt("RECON_API_PORT", d.API.Port),
			AllowedOrigins: getEnvList("RECON_ALLOWED_ORIGINS", d.API.AllowedOrigins),
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Brokers: getEnvList("RECON_KAFKA_BROKERS", nil),
				Topic:   getEnv("RECON_KAFKA_TOPIC", d.Events.Kafka.Topic),
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", d.Observability.Logging.Format),
				Output: getEnv("LOG_OUTPUT", d.Observability.Logging.Output),
			},
		},
	}
}

// LoadDotEnv loads a .env file into the environment. An explicit path must
// exist; with an empty path a missing ./.env is not an error.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// LoadOrEnv tries to load from the YAML file at path, falls back to
// environment variables when the file does not exist. A file that exists but
// fails to parse or validate is an error.
func LoadOrEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = LoadFromEnv()
	} else if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("storage.driver %q: want %s or %s", c.Storage.Driver, DriverSQLite, DriverPostgres)
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("storage.dsn is required")
	}
	tol, err := c.Reconciliation.ToleranceDecimal()
	if err != nil {
		return err
	}
	if !tol.IsPositive() {
		return fmt.Errorf("balance_tolerance must be positive, got %s", tol)
	}
	if strings.TrimSpace(c.Reconciliation.PaidStatus) == "" {
		return errors.New("reconciliation.paid_status is required")
	}
	if len(c.Reconciliation.AccountAllowlist) == 0 {
		return errors.New("reconciliation.account_allowlist must name at least one account")
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma-separated environment variable
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
