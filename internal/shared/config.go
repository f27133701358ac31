package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Downloads  DownloadsConfig  `toml:"downloads" yaml:"downloads"`
	Extractor  ExtractorConfig  `toml:"extractor" yaml:"extractor"`
	Database   DatabaseConfig   `toml:"database" yaml:"database"`
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Thumbnails ThumbnailsConfig `toml:"thumbnails" yaml:"thumbnails"`
	Shutdown   ShutdownConfig   `toml:"shutdown" yaml:"shutdown"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// DownloadsConfig controls where and how audio is written.
type DownloadsConfig struct {
	OutputDir               string `toml:"output_dir" yaml:"output_dir"`
	Format                  string `toml:"format" yaml:"format"`
	Quality                 string `toml:"quality" yaml:"quality"`
	MaxConcurrent           int    `toml:"max_concurrent" yaml:"max_concurrent"`
	SeparatePlaylistFolders bool   `toml:"separate_playlist_folders" yaml:"separate_playlist_folders"`
	OutputTemplate          string `toml:"output_template" yaml:"output_template"`
	WritePlaylistManifest   bool   `toml:"write_playlist_manifest" yaml:"write_playlist_manifest"`
}

// ExtractorConfig describes the external extraction binary.
type ExtractorConfig struct {
	Binary                 string `toml:"binary" yaml:"binary"`
	Proxy                  string `toml:"proxy" yaml:"proxy"`
	CookiesFile            string `toml:"cookies_file" yaml:"cookies_file"`
	CookiesFromBrowser     string `toml:"cookies_from_browser" yaml:"cookies_from_browser"`
	PrefetchTimeoutSeconds int    `toml:"prefetch_timeout_seconds" yaml:"prefetch_timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// ThumbnailsConfig controls background thumbnail fetching.
type ThumbnailsConfig struct {
	Enabled   bool    `toml:"enabled" yaml:"enabled"`
	CacheDir  string  `toml:"cache_dir" yaml:"cache_dir"`
	RateLimit float64 `toml:"rate_limit" yaml:"rate_limit"`
}

// ShutdownConfig bounds how long the engine waits for background work on exit.
type ShutdownConfig struct {
	GraceSeconds    int `toml:"grace_seconds" yaml:"grace_seconds"`
	WatchdogSeconds int `toml:"watchdog_seconds" yaml:"watchdog_seconds"`
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// PrefetchTimeout returns the prefetch socket timeout as a [time.Duration].
func (c ExtractorConfig) PrefetchTimeout() time.Duration {
	if c.PrefetchTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.PrefetchTimeoutSeconds) * time.Second
}

// Grace returns the shutdown grace window.
func (c ShutdownConfig) Grace() time.Duration {
	if c.GraceSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.GraceSeconds) * time.Second
}

// Watchdog returns the hard exit deadline used during shutdown.
func (c ShutdownConfig) Watchdog() time.Duration {
	if c.WatchdogSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.WatchdogSeconds) * time.Second
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values that would otherwise surface as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Downloads.MaxConcurrent < 1 {
		return fmt.Errorf("%w: downloads.max_concurrent must be at least 1", ErrInvalidConfig)
	}
	if c.Downloads.Format == "" {
		return fmt.Errorf("%w: downloads.format is required", ErrInvalidConfig)
	}
	if c.Extractor.Binary == "" {
		return fmt.Errorf("%w: extractor.binary is required", ErrInvalidConfig)
	}
	if c.Thumbnails.RateLimit < 0 {
		return fmt.Errorf("%w: thumbnails.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
