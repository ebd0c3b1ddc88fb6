// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/budget-csv/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key looked up in the environment.
const EnvPrefix = "BUDGET"

// Config represents the complete application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	CSV      CSVConfig      `mapstructure:"csv" yaml:"csv"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Worker   WorkerConfig   `mapstructure:"worker" yaml:"worker"`
	Delivery DeliveryConfig `mapstructure:"delivery" yaml:"delivery"`
	Profile  ProfileConfig  `mapstructure:"profile" yaml:"profile"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CSVConfig describes the card export layout.
type CSVConfig struct {
	Delimiter      string        `mapstructure:"delimiter" yaml:"delimiter"`
	Encoding       string        `mapstructure:"encoding" yaml:"encoding"`
	IncludeCredits bool          `mapstructure:"include_credits" yaml:"include_credits"`
	Columns        ColumnsConfig `mapstructure:"columns" yaml:"columns"`
}

// ColumnsConfig names the header of each column the cleaner reads. Either
// Amount (signed) or Debit must be set.
type ColumnsConfig struct {
	Date        string `mapstructure:"date" yaml:"date"`
	Description string `mapstructure:"description" yaml:"description"`
	Debit       string `mapstructure:"debit" yaml:"debit"`
	Credit      string `mapstructure:"credit" yaml:"credit"`
	Amount      string `mapstructure:"amount" yaml:"amount"`
}

type AIConfig struct {
	Provider       string `mapstructure:"provider" yaml:"provider"`
	Model          string `mapstructure:"model" yaml:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	Project        string `mapstructure:"project" yaml:"project"`
	Location       string `mapstructure:"location" yaml:"location"`
}

// Timeout returns the per-call fallback timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"-"`
	MaxConns    int    `mapstructure:"max_conns" yaml:"max_conns"`
}

type WorkerConfig struct {
	Concurrency int        `mapstructure:"concurrency" yaml:"concurrency"`
	QueueSize   int        `mapstructure:"queue_size" yaml:"queue_size"`
	AMQP        AMQPConfig `mapstructure:"amqp" yaml:"amqp"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url" yaml:"-"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
	Queue    string `mapstructure:"queue" yaml:"queue"`
}

type DeliveryConfig struct {
	Kind              string     `mapstructure:"kind" yaml:"kind"`
	OutputDir         string     `mapstructure:"output_dir" yaml:"output_dir"`
	RetryAttempts     int        `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelaySeconds int        `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	SMTP              SMTPConfig `mapstructure:"smtp" yaml:"smtp"`
	GCS               GCSConfig  `mapstructure:"gcs" yaml:"gcs"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
	From     string `mapstructure:"from" yaml:"from"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

type ProfileConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
}

// Store backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// AI providers
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
)

// Delivery kinds
const (
	DeliveryNone = "none"
	DeliveryDir  = "dir"
	DeliverySMTP = "smtp"
	DeliveryGCS  = "gcs"
)

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then config.yaml, then environment variables.
func InitializeConfig() (*Config, error) {
	return InitializeConfigFromFile("")
}

// InitializeConfigFromFile behaves like InitializeConfig but reads the
// given file instead of searching the standard locations when path is set.
func InitializeConfigFromFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.budget-csv")
		v.AddConfigPath(".budget-csv")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	if err := bindWellKnownEnv(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindWellKnownEnv binds unprefixed variables commonly set by deployment
// environments in addition to the BUDGET_ prefixed form.
func bindWellKnownEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"ai.api_key":             {"GEMINI_API_KEY"},
		"ai.project":             {"GOOGLE_CLOUD_PROJECT"},
		"ai.location":            {"GOOGLE_CLOUD_LOCATION"},
		"store.postgres_dsn":     {"DATABASE_URL"},
		"worker.amqp.url":        {"AMQP_URL"},
		"delivery.smtp.host":     {"SMTP_SERVER"},
		"delivery.smtp.port":     {"SMTP_PORT"},
		"delivery.smtp.username": {"EMAIL_ADDRESS"},
		"delivery.smtp.password": {"EMAIL_PASSWORD"},
		"delivery.smtp.from":     {"EMAIL_ADDRESS"},
	}
	for key, envs := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("csv.encoding", "utf-8")
	v.SetDefault("csv.include_credits", false)
	v.SetDefault("csv.columns.date", "Date")
	v.SetDefault("csv.columns.description", "Description")
	v.SetDefault("csv.columns.debit", "Debit")
	v.SetDefault("csv.columns.credit", "Credit")
	v.SetDefault("csv.columns.amount", "")

	v.SetDefault("ai.provider", ProviderNone)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout_seconds", 15)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.project", "")
	v.SetDefault("ai.location", "us-central1")

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.sqlite_path", "data/budget.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.max_conns", 5)

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue_size", 16)
	v.SetDefault("worker.amqp.url", "")
	v.SetDefault("worker.amqp.exchange", "budget-csv")
	v.SetDefault("worker.amqp.queue", "budget-csv.uploads")

	v.SetDefault("delivery.kind", DeliveryDir)
	v.SetDefault("delivery.output_dir", "output")
	v.SetDefault("delivery.retry_attempts", 3)
	v.SetDefault("delivery.retry_delay_seconds", 2)
	v.SetDefault("delivery.smtp.host", "")
	v.SetDefault("delivery.smtp.port", 587)
	v.SetDefault("delivery.smtp.username", "")
	v.SetDefault("delivery.smtp.password", "")
	v.SetDefault("delivery.smtp.from", "")
	v.SetDefault("delivery.gcs.bucket", "")
	v.SetDefault("delivery.gcs.prefix", "categorized/")

	v.SetDefault("profile.default", "default")
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if len([]rune(config.CSV.Delimiter)) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}
	cols := config.CSV.Columns
	if cols.Date == "" || cols.Description == "" {
		return fmt.Errorf("csv.columns.date and csv.columns.description are required")
	}
	if cols.Amount == "" && cols.Debit == "" {
		return fmt.Errorf("csv.columns.amount or csv.columns.debit is required")
	}

	switch config.AI.Provider {
	case ProviderNone:
	case ProviderGemini:
		if config.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when ai.provider is gemini")
		}
	case ProviderVertex:
		if config.AI.Project == "" {
			return fmt.Errorf("ai.project required when ai.provider is vertex")
		}
	default:
		return fmt.Errorf("invalid ai.provider: %s", config.AI.Provider)
	}
	if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
		return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
	}

	if !oneOf(config.Store.Backend, BackendMemory, BackendFile, BackendSQLite, BackendPostgres) {
		return fmt.Errorf("invalid store.backend: %s", config.Store.Backend)
	}
	if config.Store.Backend == BackendPostgres && config.Store.PostgresDSN == "" {
		return fmt.Errorf("store.postgres_dsn required when store.backend is postgres")
	}

	if config.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1, got: %d", config.Worker.Concurrency)
	}
	if config.Worker.QueueSize < 1 {
		return fmt.Errorf("worker.queue_size must be at least 1, got: %d", config.Worker.QueueSize)
	}

	switch config.Delivery.Kind {
	case DeliveryNone, DeliveryDir:
	case DeliverySMTP:
		if config.Delivery.SMTP.Host == "" {
			return fmt.Errorf("delivery.smtp.host required when delivery.kind is smtp")
		}
	case DeliveryGCS:
		if config.Delivery.GCS.Bucket == "" {
			return fmt.Errorf("delivery.gcs.bucket required when delivery.kind is gcs")
		}
	default:
		return fmt.Errorf("invalid delivery.kind: %s", config.Delivery.Kind)
	}
	if config.Delivery.RetryAttempts < 1 {
		return fmt.Errorf("delivery.retry_attempts must be at least 1, got: %d", config.Delivery.RetryAttempts)
	}

	if strings.TrimSpace(config.Profile.Default) == "" {
		return fmt.Errorf("profile.default must not be empty")
	}

	return nil
}

// ConfigureLoggingFromConfig builds the application logger from Config.
func ConfigureLoggingFromConfig(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}
