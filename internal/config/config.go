// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration document.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Processing ProcessingConfig `yaml:"processing"`
	Storage    StorageConfig    `yaml:"storage"`
	Events     EventsConfig     `yaml:"events"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int      `yaml:"port"`
	BindAddress          string   `yaml:"bind_address"`
	EnableCORS           bool     `yaml:"enable_cors"`
	AllowOrigins         []string `yaml:"allow_origins"`
	ReadTimeout          int      `yaml:"read_timeout_seconds"`
	WriteTimeout         int      `yaml:"write_timeout_seconds"`
	IdleTimeout          int      `yaml:"idle_timeout_seconds"`
	ShutdownTimeout      int      `yaml:"shutdown_timeout_seconds"`
	BodyLimit            string   `yaml:"body_limit"`
	EnableCompression    bool     `yaml:"enable_compression"`
	CompressionLevel     int      `yaml:"compression_level"`
	EnableRequestLogging bool     `yaml:"enable_request_logging"`
}

// UploadsConfig holds the submission gate limits.
type UploadsConfig struct {
	MaxFileSize      int64    `yaml:"max_file_size_bytes"`
	AllowedFileTypes []string `yaml:"allowed_file_types"`
}

// ProcessingConfig controls the background jobs.
type ProcessingConfig struct {
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	ProgressInterval  time.Duration `yaml:"progress_interval"`
	ProgressSteps     []int         `yaml:"progress_steps"`
	WatchInterval     time.Duration `yaml:"watch_interval"`
}

// StorageConfig selects and tunes the record store backend.
type StorageConfig struct {
	Backend           string `yaml:"backend"` // memory, duckdb, postgres
	DataDirectory     string `yaml:"data_directory"`
	DuckDBPath        string `yaml:"duckdb_path"`
	DuckDBThreads     int    `yaml:"duckdb_threads"`
	DuckDBMemoryLimit string `yaml:"duckdb_memory_limit"`
	PostgresDSN       string `yaml:"postgres_dsn"`
}

// EventsConfig configures lifecycle event publishing. An empty URL disables it.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	ClientName    string `yaml:"client_name"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LogConfig sets the logger level (debug, info, warn, error, off).
type LogConfig struct {
	Level string `yaml:"level"`
}

// Storage backend names.
const (
	BackendMemory   = "memory"
	BackendDuckDB   = "duckdb"
	BackendPostgres = "postgres"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                 8000,
			BindAddress:          "0.0.0.0",
			EnableCORS:           true,
			AllowOrigins:         []string{"*"},
			ReadTimeout:          30,
			WriteTimeout:         30,
			IdleTimeout:          120,
			ShutdownTimeout:      15,
			BodyLimit:            "200M",
			EnableCompression:    true,
			CompressionLevel:     5,
			EnableRequestLogging: true,
		},
		Uploads: UploadsConfig{
			MaxFileSize:      50 * 1024 * 1024,
			AllowedFileTypes: []string{".json", ".csv"},
		},
		Processing: ProcessingConfig{
			MaxConcurrentJobs: 4,
			ProgressInterval:  time.Second,
			ProgressSteps:     []int{25, 50, 75},
			WatchInterval:     500 * time.Millisecond,
		},
		Storage: StorageConfig{
			Backend:           BackendMemory,
			DataDirectory:     "./data",
			DuckDBPath:        "./data/uploads.duckdb",
			DuckDBThreads:     4,
			DuckDBMemoryLimit: "1GB",
		},
		Events: EventsConfig{
			SubjectPrefix: "uploads",
			ClientName:    "chat-upload-api",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "chat_upload",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file, writing the defaults
// there first when the file does not exist. A .env file next to the config
// is loaded into the environment before overrides are applied.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(configDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as YAML.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Chat Upload API configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendDuckDB:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend %q requires postgres_dsn or DATABASE_URL", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Processing.MaxConcurrentJobs < 1 {
		return fmt.Errorf("processing.max_concurrent_jobs must be at least 1, got %d", c.Processing.MaxConcurrentJobs)
	}
	if c.Processing.ProgressInterval < 0 {
		return fmt.Errorf("processing.progress_interval must not be negative")
	}
	for _, step := range c.Processing.ProgressSteps {
		if step <= 0 || step >= 100 {
			return fmt.Errorf("processing.progress_steps must lie strictly between 0 and 100, got %d", step)
		}
	}
	if c.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("uploads.max_file_size_bytes must be positive")
	}
	if len(c.Uploads.AllowedFileTypes) == 0 {
		return fmt.Errorf("uploads.allowed_file_types must not be empty")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port, ok := envInt("PORT"); ok {
		c.Server.Port = port
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = strings.ToLower(backend)
	}
	if path := os.Getenv("DUCKDB_PATH"); path != "" {
		c.Storage.DuckDBPath = path
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Storage.PostgresDSN = dsn
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		c.Events.NATSURL = url
	}
	if size, ok := envInt("MAX_FILE_SIZE"); ok {
		c.Uploads.MaxFileSize = int64(size)
	}
	if jobs, ok := envInt("MAX_CONCURRENT_JOBS"); ok {
		c.Processing.MaxConcurrentJobs = jobs
	}
	if delay := os.Getenv("PROCESSING_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			c.Processing.ProgressInterval = d
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if c.Storage.DuckDBPath != "" && !filepath.IsAbs(c.Storage.DuckDBPath) {
		c.Storage.DuckDBPath = filepath.Join(configDir, c.Storage.DuckDBPath)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates the data directory and the DuckDB file's parent.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{c.Storage.DataDirectory}
	if c.Storage.Backend == BackendDuckDB && c.Storage.DuckDBPath != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.DuckDBPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
