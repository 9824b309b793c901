package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pipeline's binaries
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Status     StatusConfig     `yaml:"status"`
	Worker     WorkerConfig     `yaml:"worker"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Document   DocumentConfig   `yaml:"document"`
	Extractors ExtractorsConfig `yaml:"extractors"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port" validate:"min=1,max=65535"`
	PageSize    int      `yaml:"page_size" validate:"min=1,max=500"`
	CORSOrigins []string `yaml:"cors_origins"`
	// MaxUploadMB caps one multipart upload request.
	MaxUploadMB int `yaml:"max_upload_mb" validate:"min=1"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// DatabaseConfig holds the PostgreSQL connection
type DatabaseConfig struct {
	URL          string `yaml:"url" validate:"required"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"min=1"`
	// MigrateOnStart applies pending migrations when the worker boots.
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

// RedisConfig holds the Redis connection used by the queue, status flag and locks
type RedisConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// StatusConfig holds processing flag settings
type StatusConfig struct {
	Key               string `yaml:"key"`
	RunningTTLSeconds int    `yaml:"running_ttl_seconds" validate:"min=0"`
}

// RunningTTL returns the running flag expiry.
func (s StatusConfig) RunningTTL() time.Duration {
	return time.Duration(s.RunningTTLSeconds) * time.Second
}

// WorkerConfig holds task pool settings
type WorkerConfig struct {
	Concurrency int    `yaml:"concurrency" validate:"min=1"`
	QueueName   string `yaml:"queue_name"`
	// MetricsAddr is where the worker serves /metrics. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ScheduleConfig holds the periodic batch schedule
type ScheduleConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes" validate:"min=1"`
}

// Interval returns the time between scheduled batches.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// DocumentConfig holds upload processing settings
type DocumentConfig struct {
	UploadDir         string `yaml:"upload_dir" validate:"required"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" validate:"min=1"`
	Retries           *int   `yaml:"retries" validate:"omitempty,min=0"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds" validate:"min=0"`
	DefaultCity       string `yaml:"default_city"`
}

// Timeout returns the hard limit for one document attempt.
func (d DocumentConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// RetryDelay returns the wait before a failed document is retried.
func (d DocumentConfig) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelaySeconds) * time.Second
}

// MaxRetries returns how many times a failed document is retried.
func (d DocumentConfig) MaxRetries() int {
	if d.Retries == nil {
		return 2
	}
	return *d.Retries
}

// ExtractorsConfig holds web extraction sources
type ExtractorsConfig struct {
	Feeds  []FeedConfig `yaml:"feeds" validate:"dive"`
	Places PlacesConfig `yaml:"places"`
	// Skip names registered extractors the batch leaves out.
	Skip           []string `yaml:"skip"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"min=1"`
	MaxRetries     int      `yaml:"max_retries" validate:"min=0"`
	UserAgent      string   `yaml:"user_agent"`
}

// Timeout returns the per-request HTTP timeout for extractors.
func (e ExtractorsConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// FeedConfig is one RSS/Atom event feed
type FeedConfig struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
}

// PlacesConfig holds the places search extractor settings
type PlacesConfig struct {
	Enabled      bool     `yaml:"enabled"`
	APIKey       string   `yaml:"api_key" validate:"required_if=Enabled true"`
	BaseURL      string   `yaml:"base_url" validate:"omitempty,url"`
	Latitude     float64  `yaml:"latitude" validate:"min=-90,max=90"`
	Longitude    float64  `yaml:"longitude" validate:"min=-180,max=180"`
	RadiusMeters int      `yaml:"radius_meters" validate:"min=0"`
	Categories   []string `yaml:"categories"`
	MaxPages     int      `yaml:"max_pages" validate:"min=0"`
	PageDelayMS  int      `yaml:"page_delay_ms" validate:"min=0"`
}

// InboxConfig holds the S3 document inbox
type InboxConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	IntervalSeconds int    `yaml:"interval_seconds" validate:"min=1"`
}

// Interval returns the time between bucket scans.
func (i InboxConfig) Interval() time.Duration {
	return time.Duration(i.IntervalSeconds) * time.Second
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level" validate:"omitempty,oneof=debug trace info warn warning error"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// envOverrides are the environment variables that win over the YAML file.
// Unset variables leave the file's value alone.
type envOverrides struct {
	Port         *int     `envconfig:"PORT"`
	DatabaseURL  string   `envconfig:"DATABASE_URL"`
	RedisURL     string   `envconfig:"REDIS_URL"`
	UploadDir    string   `envconfig:"UPLOAD_DIR"`
	GoogleAPIKey string   `envconfig:"GOOGLE_API_KEY"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	Schedule     *bool    `envconfig:"SCHEDULE_ENABLED"`
	Concurrency  *int     `envconfig:"WORKER_CONCURRENCY"`
	MetricsAddr  string   `envconfig:"WORKER_METRICS_ADDR"`
	InboxBucket  string   `envconfig:"INBOX_BUCKET"`
	AWSRegion    string   `envconfig:"AWS_REGION"`
	DefaultCity  string   `envconfig:"DEFAULT_CITY"`
	Latitude     *float64 `envconfig:"PLACES_LATITUDE"`
	Longitude    *float64 `envconfig:"PLACES_LONGITUDE"`
}

// DefaultPath returns CONFIG_PATH, or config.yaml when that file exists
// in the working directory, or "" for defaults only.
func DefaultPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PageSize == 0 {
		cfg.Server.PageSize = 25
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Status.Key == "" {
		cfg.Status.Key = "scrape_status"
	}
	if cfg.Status.RunningTTLSeconds == 0 {
		cfg.Status.RunningTTLSeconds = 3600
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.QueueName == "" {
		cfg.Worker.QueueName = "etl:tasks"
	}
	if cfg.Schedule.IntervalMinutes == 0 {
		cfg.Schedule.IntervalMinutes = 180
	}
	if cfg.Document.UploadDir == "" {
		cfg.Document.UploadDir = "/app/uploads"
	}
	if cfg.Document.TimeoutSeconds == 0 {
		cfg.Document.TimeoutSeconds = 300
	}
	if cfg.Document.RetryDelaySeconds == 0 {
		cfg.Document.RetryDelaySeconds = 10
	}
	if cfg.Document.DefaultCity == "" {
		cfg.Document.DefaultCity = "Nashville"
	}
	if cfg.Extractors.TimeoutSeconds == 0 {
		cfg.Extractors.TimeoutSeconds = 30
	}
	if cfg.Extractors.MaxRetries == 0 {
		cfg.Extractors.MaxRetries = 3
	}
	if cfg.Extractors.UserAgent == "" {
		cfg.Extractors.UserAgent = "event-etl/1.0"
	}
	if cfg.Extractors.Places.Latitude == 0 && cfg.Extractors.Places.Longitude == 0 {
		// Downtown Nashville
		cfg.Extractors.Places.Latitude = 36.1627
		cfg.Extractors.Places.Longitude = -86.7816
	}
	if cfg.Extractors.Places.PageDelayMS == 0 {
		cfg.Extractors.Places.PageDelayMS = 2000
	}
	if cfg.Inbox.IntervalSeconds == 0 {
		cfg.Inbox.IntervalSeconds = 60
	}
	if cfg.Inbox.Region == "" {
		cfg.Inbox.Region = "us-east-1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is read first when present, then
// the result is validated.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.apply(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) apply(env envOverrides) {
	if env.Port != nil {
		cfg.Server.Port = *env.Port
	}
	if env.DatabaseURL != "" {
		cfg.Database.URL = env.DatabaseURL
	}
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.MetricsAddr != "" {
		cfg.Worker.MetricsAddr = env.MetricsAddr
	}
	if env.UploadDir != "" {
		cfg.Document.UploadDir = env.UploadDir
	}
	if env.GoogleAPIKey != "" {
		cfg.Extractors.Places.APIKey = env.GoogleAPIKey
		cfg.Extractors.Places.Enabled = true
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.Schedule != nil {
		cfg.Schedule.Enabled = *env.Schedule
	}
	if env.Concurrency != nil {
		cfg.Worker.Concurrency = *env.Concurrency
	}
	if env.InboxBucket != "" {
		cfg.Inbox.Bucket = env.InboxBucket
		cfg.Inbox.Enabled = true
	}
	if env.AWSRegion != "" {
		cfg.Inbox.Region = env.AWSRegion
	}
	if env.DefaultCity != "" {
		cfg.Document.DefaultCity = env.DefaultCity
	}
	if env.Latitude != nil {
		cfg.Extractors.Places.Latitude = *env.Latitude
	}
	if env.Longitude != nil {
		cfg.Extractors.Places.Longitude = *env.Longitude
	}
}

// Validate checks the configuration for values the binaries cannot run with.
func (cfg *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
