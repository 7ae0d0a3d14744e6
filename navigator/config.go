package navigator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds the full taxonav configuration.
type Config struct {
	Listen           string        `yaml:"listen"`
	DataDir          string        `yaml:"data_dir"`
	UploadsDir       string        `yaml:"uploads_dir"` // default: <data_dir>/uploads
	ParsedDir        string        `yaml:"parsed_dir"`  // default: <data_dir>/parsed
	Store            string        `yaml:"store"`       // file | sqlite
	SQLitePath       string        `yaml:"sqlite_path"` // default: <data_dir>/snapshots.db
	MaxFileMB        int           `yaml:"max_file_mb"`
	WatchInterval    time.Duration `yaml:"watch_interval"` // 0 disables the uploads watcher
	StrictHeaders    bool          `yaml:"strict_headers"`
	SanitizeRichText bool          `yaml:"sanitize_rich_text"`
	QuarantineFailed bool          `yaml:"quarantine_failed"`
	LogLevel         string        `yaml:"log_level"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	MCP              bool          `yaml:"mcp"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":3000",
		DataDir:     "data",
		Store:       StoreFile,
		MaxFileMB:   50,
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		MCP:         true,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DataDir == "" && (c.UploadsDir == "" || c.ParsedDir == "") {
		return fmt.Errorf("data_dir is required unless uploads_dir and parsed_dir are both set")
	}
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unsupported store %q (use file or sqlite)", c.Store)
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.WatchInterval < 0 {
		return fmt.Errorf("watch_interval must be >= 0")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Uploads returns the directory pending sources are read from.
func (c *Config) Uploads() string {
	if c.UploadsDir != "" {
		return c.UploadsDir
	}
	return filepath.Join(c.DataDir, "uploads")
}

// Parsed returns the directory the file store writes snapshots to.
func (c *Config) Parsed() string {
	if c.ParsedDir != "" {
		return c.ParsedDir
	}
	return filepath.Join(c.DataDir, "parsed")
}

// SQLite returns the snapshot database path.
func (c *Config) SQLite() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "snapshots.db")
}

// MaxFileBytes returns max file size in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

// ParseLevel maps debug|info|warn|error to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", s)
}
