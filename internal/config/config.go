// Package config provides unified configuration for all Plotforge services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeAPI       Mode = "api"
	ModeRetention Mode = "retention"
)

// Config holds the unified configuration for all Plotforge services.
type Config struct {
	// Mode specifies which services to run: all, api, retention
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Profile holds dataset ingestion and column profiling configuration
	Profile ProfileConfig `json:"profile" yaml:"profile"`

	// Render holds chart rendering configuration
	Render RenderConfig `json:"render" yaml:"render"`

	// Insights holds AI insights configuration
	Insights InsightsConfig `json:"insights" yaml:"insights"`

	// Retention holds session retention and artifact GC configuration
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Cache holds figure read cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address for the API service
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// ProfileConfig holds dataset ingestion and profiling configuration.
type ProfileConfig struct {
	// MaxUploadBytes is the largest accepted CSV upload (bytes)
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// MaxRows caps the number of rows read from an upload
	MaxRows int `json:"max_rows" yaml:"max_rows"`

	// CategoricalMaxUnique is the unique-value ceiling for a text column
	// to be classified categorical (scaled by row count, see profiler)
	CategoricalMaxUnique int `json:"categorical_max_unique" yaml:"categorical_max_unique"`

	// TopValues is how many most-frequent values to record per column
	TopValues int `json:"top_values" yaml:"top_values"`
}

// RenderConfig holds chart rendering configuration.
type RenderConfig struct {
	// Workers is the number of charts rendered in parallel per request
	Workers int `json:"workers" yaml:"workers"`

	// Timeout bounds a single chart render
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxFigureBytes rejects encoded figures larger than this
	MaxFigureBytes int64 `json:"max_figure_bytes" yaml:"max_figure_bytes"`

	// HistogramBins is the default histogram bin count (0 = automatic)
	HistogramBins int `json:"histogram_bins" yaml:"histogram_bins"`

	// MaxCategories caps distinct categories on a bar axis; the rest
	// collapse into a single overflow bucket
	MaxCategories int `json:"max_categories" yaml:"max_categories"`

	// DefaultTheme is used when a request does not name a theme
	DefaultTheme string `json:"default_theme" yaml:"default_theme"`
}

// InsightsConfig holds AI insights configuration.
type InsightsConfig struct {
	// APIKey authenticates against the Gemini API; empty disables insights
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the Gemini model name
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the Gemini endpoint (used in tests)
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Timeout bounds a single API call
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RetryMax is the number of attempts for retryable API failures
	RetryMax int `json:"retry_max" yaml:"retry_max"`
}

// RetentionConfig holds session retention configuration.
type RetentionConfig struct {
	// CheckInterval is the interval between retention sweeps
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`

	// MaxIdle is how long a session may go unaccessed before deletion
	// (0 disables retention)
	MaxIdle time.Duration `json:"max_idle" yaml:"max_idle"`

	// SweepLimit is the maximum sessions deleted per sweep
	SweepLimit int `json:"sweep_limit" yaml:"sweep_limit"`

	// OrphanAge is the minimum age of an unreferenced storage object
	// before the orphan GC may delete it
	OrphanAge time.Duration `json:"orphan_age" yaml:"orphan_age"`
}

// CacheConfig holds figure read cache configuration.
type CacheConfig struct {
	// Dir is the cache directory for figure documents
	Dir string `json:"dir" yaml:"dir"`

	// MaxBytes caps total cached bytes (0 disables the cache)
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// TTL is how long a cached figure stays valid
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/plotforge",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Profile: ProfileConfig{
			MaxUploadBytes:       64 * 1024 * 1024,
			MaxRows:              200_000,
			CategoricalMaxUnique: 50,
			TopValues:            10,
		},
		Render: RenderConfig{
			Workers:        4,
			Timeout:        30 * time.Second,
			MaxFigureBytes: 8 * 1024 * 1024,
			HistogramBins:  0,
			MaxCategories:  20,
			DefaultTheme:   "light",
		},
		Insights: InsightsConfig{
			Model:    "gemini-2.0-flash",
			Timeout:  60 * time.Second,
			RetryMax: 3,
		},
		Retention: RetentionConfig{
			CheckInterval: 15 * time.Minute,
			MaxIdle:       0,
			SweepLimit:    50,
			OrphanAge:     24 * time.Hour,
		},
		Cache: CacheConfig{
			Dir:      "",
			MaxBytes: 256 * 1024 * 1024,
			TTL:      1 * time.Hour,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/plotforge"
	}

	// Resolve storage path
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	// Resolve cache path
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.DataDir, "figure-cache")
	}
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeAPI, ModeRetention:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, api, or retention)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Render.Workers < 1 || c.Render.Workers > 64 {
		return fmt.Errorf("render.workers must be between 1 and 64, got %d", c.Render.Workers)
	}

	if c.Profile.MaxRows < 1 {
		return fmt.Errorf("profile.max_rows must be positive, got %d", c.Profile.MaxRows)
	}

	if c.Render.DefaultTheme != "light" && c.Render.DefaultTheme != "dark" {
		return fmt.Errorf("invalid render.default_theme: %s (must be light or dark)", c.Render.DefaultTheme)
	}

	return nil
}

// ShouldRunAPI returns true if the HTTP API service should run.
func (c *Config) ShouldRunAPI() bool {
	return c.Mode == ModeAll || c.Mode == ModeAPI
}

// ShouldRunRetention returns true if the retention service should run.
func (c *Config) ShouldRunRetention() bool {
	return c.Mode == ModeAll || c.Mode == ModeRetention
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the PLOTFORGE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PLOTFORGE_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("PLOTFORGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("PLOTFORGE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Profile configuration
	if v := os.Getenv("PLOTFORGE_PROFILE_MAX_UPLOAD_BYTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Profile.MaxUploadBytes)
	}
	if v := os.Getenv("PLOTFORGE_PROFILE_MAX_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Profile.MaxRows)
	}

	// Render configuration
	if v := os.Getenv("PLOTFORGE_RENDER_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Render.Workers)
	}
	if v := os.Getenv("PLOTFORGE_RENDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Render.Timeout = d
		}
	}
	if v := os.Getenv("PLOTFORGE_RENDER_DEFAULT_THEME"); v != "" {
		cfg.Render.DefaultTheme = v
	}

	// Insights configuration
	if v := os.Getenv("PLOTFORGE_GEMINI_API_KEY"); v != "" {
		cfg.Insights.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Insights.APIKey = v
	}
	if v := os.Getenv("PLOTFORGE_INSIGHTS_MODEL"); v != "" {
		cfg.Insights.Model = v
	}
	if v := os.Getenv("PLOTFORGE_INSIGHTS_BASE_URL"); v != "" {
		cfg.Insights.BaseURL = v
	}

	// Retention configuration
	if v := os.Getenv("PLOTFORGE_RETENTION_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.CheckInterval = d
		}
	}
	if v := os.Getenv("PLOTFORGE_RETENTION_MAX_IDLE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.MaxIdle = d
		}
	}

	// Storage configuration
	if v := os.Getenv("PLOTFORGE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("PLOTFORGE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PLOTFORGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("PLOTFORGE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("PLOTFORGE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
		c.Cache.Dir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
