// Package config loads the optional JSON configuration file for the
// acquisition pipeline. All fields are pointers (or slices) so a partial
// file is safe: anything omitted keeps the built-in or flag-supplied
// default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/fastplot/internal/record"
)

// Replacement is one ordered find/replace rule applied to each raw line
// before parsing.
type Replacement struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Config represents the root configuration. The schema mirrors the
// construction options of the poller so values can be passed through without
// translation.
type Config struct {
	// Transport
	Port     *string `json:"port,omitempty"`
	BaudRate *int    `json:"baud_rate,omitempty"`

	// Decode
	Labels       []string      `json:"labels,omitempty"`
	Delim        *string       `json:"delim,omitempty"`
	Rows         *int          `json:"rows,omitempty"`
	Replacements []Replacement `json:"replacements,omitempty"`

	// Timing; duration strings like "100ms"
	ReadTimeout *string `json:"read_timeout,omitempty"`

	// HTTP
	Listen *string `json:"listen,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and stay under the max file size. Fields omitted from the file retain
// their zero values, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// PortOr returns the configured port path or def.
func (c *Config) PortOr(def string) string {
	if c != nil && c.Port != nil {
		return *c.Port
	}
	return def
}

// BaudRateOr returns the configured baud rate or def.
func (c *Config) BaudRateOr(def int) int {
	if c != nil && c.BaudRate != nil {
		return *c.BaudRate
	}
	return def
}

// LabelsOr returns the configured label set or def.
func (c *Config) LabelsOr(def []string) []string {
	if c != nil && len(c.Labels) > 0 {
		return c.Labels
	}
	return def
}

// DelimOr returns the configured delimiter or def.
func (c *Config) DelimOr(def string) string {
	if c != nil && c.Delim != nil {
		return *c.Delim
	}
	return def
}

// RowsOr returns the configured window capacity or def.
func (c *Config) RowsOr(def int) int {
	if c != nil && c.Rows != nil {
		return *c.Rows
	}
	return def
}

// ListenOr returns the configured HTTP listen address or def.
func (c *Config) ListenOr(def string) string {
	if c != nil && c.Listen != nil {
		return *c.Listen
	}
	return def
}

// ReadTimeoutOr parses the configured read timeout or returns def.
func (c *Config) ReadTimeoutOr(def time.Duration) (time.Duration, error) {
	if c == nil || c.ReadTimeout == nil {
		return def, nil
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid read_timeout %q: %w", *c.ReadTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("read_timeout must be positive, got %q", *c.ReadTimeout)
	}
	return d, nil
}

// Filter compiles the replacement rules into a line filter. It returns nil
// when no rules are configured so callers fall back to the identity stage.
func (c *Config) Filter() record.Filter {
	if c == nil || len(c.Replacements) == 0 {
		return nil
	}
	oldnew := make([]string, 0, 2*len(c.Replacements))
	for _, r := range c.Replacements {
		oldnew = append(oldnew, r.Old, r.New)
	}
	return record.Replacer(oldnew...)
}
