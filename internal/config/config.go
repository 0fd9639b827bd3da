package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the rfm command and the API server.
type Config struct {
	Ingest   IngestConfig   `yaml:"ingest"`
	Output   OutputConfig   `yaml:"output"`
	GCS      GCSConfig      `yaml:"gcs"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Server   ServerConfig   `yaml:"server"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Log      LogConfig      `yaml:"log"`
}

// IngestConfig controls how transaction sources are decoded.
type IngestConfig struct {
	Encoding         string            `yaml:"encoding"`
	Delimiter        string            `yaml:"delimiter"`
	TimestampLayouts []string          `yaml:"timestamp_layouts"`
	Timezone         string            `yaml:"timezone"`
	ColumnAliases    map[string]string `yaml:"column_aliases"`
}

// OutputConfig holds defaults for exported results.
type OutputConfig struct {
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// GCSConfig holds Cloud Storage settings.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// BigQueryConfig holds the destination of exported RFM rows.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                   int   `yaml:"port"`
	ReadTimeoutSeconds     int   `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int   `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int   `yaml:"shutdown_timeout_seconds"`
	MaxUploadBytes         int64 `yaml:"max_upload_bytes"`
}

// JobsConfig sizes the background analysis queue. InputDir is the only
// local tree jobs may read; empty limits jobs to gs:// and bq:// sources.
type JobsConfig struct {
	QueueSize      int    `yaml:"queue_size"`
	Workers        int    `yaml:"workers"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutMinutes int    `yaml:"timeout_minutes"`
	InputDir       string `yaml:"input_dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ReadTimeout returns the server read timeout.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the grace period for in-flight requests.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Timeout returns the per-job deadline.
func (c JobsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Options converts the ingest section to parser options.
func (c IngestConfig) Options() (ingest.Options, error) {
	opts := ingest.DefaultOptions()
	opts.Encoding = c.Encoding
	opts.ColumnAliases = c.ColumnAliases
	if len(c.TimestampLayouts) > 0 {
		opts.TimestampLayouts = c.TimestampLayouts
	}

	if c.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(c.Delimiter)
		if r == utf8.RuneError || size != len(c.Delimiter) {
			return ingest.Options{}, fmt.Errorf("Options: delimiter %q must be a single character", c.Delimiter)
		}
		opts.Delimiter = r
	}

	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return ingest.Options{}, fmt.Errorf("Options: loading timezone %q: %w", c.Timezone, err)
		}
		opts.Location = loc
	}
	return opts, nil
}

// TableID returns "project.dataset.table", or "" when no table is set.
func (c BigQueryConfig) TableID() string {
	if c.ProjectID == "" || c.Dataset == "" || c.Table == "" {
		return ""
	}
	return c.ProjectID + "." + c.Dataset + "." + c.Table
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (cfg *Config) setDefaults() {
	if cfg.Ingest.Encoding == "" {
		cfg.Ingest.Encoding = ingest.DefaultEncoding
	}
	if cfg.Ingest.Delimiter == "" {
		cfg.Ingest.Delimiter = ","
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "csv"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.GCS.Prefix == "" {
		cfg.GCS.Prefix = "rfm"
	}
	if cfg.BigQuery.Dataset == "" {
		cfg.BigQuery.Dataset = "analytics"
	}
	if cfg.BigQuery.Table == "" {
		cfg.BigQuery.Table = "customer_rfm"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 60
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 30
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Jobs.QueueSize == 0 {
		cfg.Jobs.QueueSize = 100
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 2
	}
	if cfg.Jobs.MaxRetries == 0 {
		cfg.Jobs.MaxRetries = 3
	}
	if cfg.Jobs.TimeoutMinutes == 0 {
		cfg.Jobs.TimeoutMinutes = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Load reads and parses the configuration file, filling defaults for
// anything it leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Load: parsing %s: %w", path, err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is loaded first if present. An empty
// path skips the YAML file and starts from Default.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	}

	// Override with environment variables if present
	if v := os.Getenv("RFM_ENCODING"); v != "" {
		cfg.Ingest.Encoding = v
	}
	if v := os.Getenv("RFM_DELIMITER"); v != "" {
		cfg.Ingest.Delimiter = v
	}
	if v := os.Getenv("RFM_INPUT_DIR"); v != "" {
		cfg.Jobs.InputDir = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		cfg.GCS.Bucket = v
	}
	if v := os.Getenv("BQ_PROJECT_ID"); v != "" {
		cfg.BigQuery.ProjectID = v
	}
	if v := os.Getenv("BQ_DATASET"); v != "" {
		cfg.BigQuery.Dataset = v
	}
	if v := os.Getenv("BQ_TABLE"); v != "" {
		cfg.BigQuery.Table = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LoadFromEnv: invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
