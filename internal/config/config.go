// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/confserve/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the configuration of the confserve command itself, not of the
// store it serves.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
	Watch  WatchConfig  `toml:"watch"`
	Log    LogConfig    `toml:"log"`
}

// StoreConfig locates the settings file being served.
type StoreConfig struct {
	// File is the key/value file. Relative paths are resolved against the
	// working directory.
	File string `toml:"file"`
	// Name is the page title. Empty means the file's directory name.
	Name string `toml:"name"`
	// Header is written as the first line of the file on save.
	Header string `toml:"header"`
}

// ServerConfig configures the edit server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// RateLimit is requests per second per client; 0 disables it.
	RateLimit    float64 `toml:"rate_limit"`
	RateBurst    int     `toml:"rate_burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes"`
}

// WatchConfig controls reloading the file after external edits.
type WatchConfig struct {
	Enabled        bool `toml:"enabled"`
	DebounceMs     int  `toml:"debounce_ms"`
	PollIntervalMs int  `toml:"poll_interval_ms"`
}

// LogConfig controls the command's logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is auto, text or json. auto picks text on a terminal.
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			File: "config.yml",
		},
		Server: ServerConfig{
			Port:         8080,
			MaxBodyBytes: 1 << 20,
		},
		Watch: WatchConfig{
			Enabled:        true,
			DebounceMs:     250,
			PollIntervalMs: 2000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the confserve configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".confserve"), nil
}

// DefaultPath returns the default host config file path.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the host config from path, or from DefaultPath when path is
// empty. A missing file yields the defaults. Environment overrides are
// applied last, then the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path on top of cfg. Keys the Config does not know are
// rejected so typos do not go unnoticed.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path atomically, creating parent directories.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# confserve configuration file\n")
	buf.WriteString("# Environment variables CONFSERVE_* override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"auto", "text", "json"}
)

// Validate checks every field and returns all problems at once as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Store.File) == "" {
		add("store.file", "must not be empty")
	}
	if strings.ContainsAny(c.Store.Header, "\r\n") {
		add("store.header", "must be a single line")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port", "%d is out of range 0-65535", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}
	if c.Server.RateBurst < 0 {
		add("server.rate_burst", "cannot be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "cannot be negative")
	}

	if c.Watch.DebounceMs < 0 {
		add("watch.debounce_ms", "cannot be negative")
	}
	if c.Watch.PollIntervalMs < 0 {
		add("watch.poll_interval_ms", "cannot be negative")
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		add("log.level", "invalid level '%s', must be one of: %s", c.Log.Level, strings.Join(validLevels, ", "))
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Log.Format)) {
		add("log.format", "invalid format '%s', must be one of: %s", c.Log.Format, strings.Join(validFormats, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-valued fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Store.File == "" {
		c.Store.File = defaults.Store.File
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}
	if c.Watch.PollIntervalMs == 0 {
		c.Watch.PollIntervalMs = defaults.Watch.PollIntervalMs
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CONFSERVE_* environment variables:
//   - CONFSERVE_FILE: overrides store.file
//   - CONFSERVE_NAME: overrides store.name
//   - CONFSERVE_HOST: overrides server.host
//   - CONFSERVE_PORT: overrides server.port
//   - CONFSERVE_RATE_LIMIT: overrides server.rate_limit
//   - CONFSERVE_WATCH: overrides watch.enabled ("1"/"true" or "0"/"false")
//   - CONFSERVE_LOG_LEVEL: overrides log.level
//   - CONFSERVE_LOG_FORMAT: overrides log.format
//
// Unparsable numeric or boolean values are reported as ValidateErrors.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidateErrors

	if v := os.Getenv("CONFSERVE_FILE"); v != "" {
		c.Store.File = v
	}
	if v := os.Getenv("CONFSERVE_NAME"); v != "" {
		c.Store.Name = v
	}
	if v := os.Getenv("CONFSERVE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("CONFSERVE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "CONFSERVE_PORT", Message: fmt.Sprintf("not a number: %q", v)})
		} else {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("CONFSERVE_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, ValidationError{Field: "CONFSERVE_RATE_LIMIT", Message: fmt.Sprintf("not a number: %q", v)})
		} else {
			c.Server.RateLimit = limit
		}
	}
	if v := os.Getenv("CONFSERVE_WATCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "CONFSERVE_WATCH", Message: fmt.Sprintf("not a boolean: %q", v)})
		} else {
			c.Watch.Enabled = enabled
		}
	}
	if v := os.Getenv("CONFSERVE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CONFSERVE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// SlogLevel returns the configured level for log/slog. Unknown names map to
// info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debounce returns the watcher debounce period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// PollInterval returns the polling watcher interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalMs) * time.Millisecond
}

// String renders the config as TOML for display.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
