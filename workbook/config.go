package workbook

import "log/slog"

// Config configures the workbook reader.
type Config struct {
	// MaxFileSize is the largest source accepted (default: 50 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
