package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Environment string         `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	Server      ServerConfig   `yaml:"server"`
	Storage     StorageConfig  `yaml:"storage"`
	Worker      WorkerConfig   `yaml:"worker"`
	Download    DownloadConfig `yaml:"download"`
	Rembg       RembgConfig    `yaml:"rembg"`
	Log         LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host   string `yaml:"host" envconfig:"HOST" default:"0.0.0.0"`
	Port   int    `yaml:"port" envconfig:"PORT" default:"8080"`
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
	// AllowedOrigins is a comma separated list; "*" allows any origin.
	AllowedOrigins string        `yaml:"allowed_origins" envconfig:"FRONTEND_URL" default:"*"`
	MaxUploadMB    int64         `yaml:"max_upload_mb" envconfig:"MAX_FILE_SIZE" default:"100"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	// WriteTimeout of zero leaves long video streams uncapped.
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	WorkPath     string `yaml:"work_path" envconfig:"STORAGE_WORK_PATH" default:"downloads"`
	HistoryDB    string `yaml:"history_db" envconfig:"STORAGE_HISTORY_DB"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES" default:"0"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count int `yaml:"count" envconfig:"WORKER_COUNT" default:"4"`
}

// DownloadConfig holds video extraction and muxing configuration.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"30m"`
	YTDLPPath     string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	AutoInstall   bool          `yaml:"auto_install" envconfig:"YTDLP_AUTO_INSTALL" default:"false"`
	FFmpegPath    string        `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	ProbeInterval time.Duration `yaml:"probe_interval" envconfig:"DEPENDENCY_PROBE_INTERVAL" default:"1m"`
}

// RembgConfig holds background removal model server configuration.
type RembgConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"REMBG_URL" default:"http://127.0.0.1:7000"`
	Model   string        `yaml:"model" envconfig:"REMBG_MODEL" default:"u2net"`
	Timeout time.Duration `yaml:"timeout" envconfig:"REMBG_TIMEOUT" default:"2m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.Storage.WorkPath == "" {
		return fmt.Errorf("STORAGE_WORK_PATH is required")
	}
	if c.Storage.MinFreeBytes < 0 {
		return fmt.Errorf("STORAGE_MIN_FREE_BYTES cannot be negative")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be positive")
	}
	if c.Rembg.BaseURL == "" {
		return fmt.Errorf("REMBG_URL is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ParseLevel maps a LOG_LEVEL value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
