// Package config loads the gridpath server configuration.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the example configuration shipped with the
// repository.
const DefaultConfigPath = "config/gridpath.example.json"

// Config is the root server configuration. Every field is optional; the Get*
// accessors supply defaults for anything omitted, so partial files are safe.
type Config struct {
	// Network
	Listen      *string `json:"listen,omitempty"`       // TCP address for the protobuf protocol
	AdminListen *string `json:"admin_listen,omitempty"` // HTTP admin/debug address, empty disables
	GRPCListen  *string `json:"grpc_listen,omitempty"`  // gRPC health address, empty disables

	// Engine
	Workers *int `json:"workers,omitempty"` // concurrent requests across all sessions
	Shards  *int `json:"shards,omitempty"`  // cell table shards, rounded up to a power of two

	// Sessions
	MaxFrameBytes      *int    `json:"max_frame_bytes,omitempty"`
	CloseAfterOneToAll *bool   `json:"close_after_one_to_all,omitempty"`
	ReadTimeout        *string `json:"read_timeout,omitempty"` // duration string like "5m", "0" disables

	// Observability
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "30s"
	LogLevel      *string `json:"log_level,omitempty"`
	LogFormat     *string `json:"log_format,omitempty"`

	// Export
	ExportPath *string `json:"export_path,omitempty"` // SQLite file for graph exports
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.Shards != nil && (*c.Shards < 1 || *c.Shards > 1<<16) {
		return fmt.Errorf("shards must be between 1 and 65536, got %d", *c.Shards)
	}
	if c.MaxFrameBytes != nil && *c.MaxFrameBytes < 16 {
		return fmt.Errorf("max_frame_bytes must be at least 16, got %d", *c.MaxFrameBytes)
	}
	for name, v := range map[string]*string{
		"read_timeout":   c.ReadTimeout,
		"stats_interval": c.StatsInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	if c.LogLevel != nil {
		switch strings.ToLower(*c.LogLevel) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", *c.LogLevel)
		}
	}
	if c.LogFormat != nil {
		switch strings.ToLower(*c.LogFormat) {
		case "json", "console":
		default:
			return fmt.Errorf("log_format must be json or console, got %q", *c.LogFormat)
		}
	}
	return nil
}

// GetListen returns the protocol listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ":4321"
	}
	return *c.Listen
}

// GetAdminListen returns the admin HTTP address or the default.
func (c *Config) GetAdminListen() string {
	if c.AdminListen == nil {
		return ":8080"
	}
	return *c.AdminListen
}

// GetGRPCListen returns the gRPC health address or the default.
func (c *Config) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return ":4322"
	}
	return *c.GRPCListen
}

// GetWorkers returns the worker pool size or runtime.NumCPU().
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetShards returns the configured shard count or the default.
func (c *Config) GetShards() int {
	if c.Shards == nil {
		return 64
	}
	return *c.Shards
}

// GetMaxFrameBytes returns the largest accepted request frame.
func (c *Config) GetMaxFrameBytes() int {
	if c.MaxFrameBytes == nil {
		return 64 << 20
	}
	return *c.MaxFrameBytes
}

// GetCloseAfterOneToAll reports whether a session ends after a OneToAll reply.
func (c *Config) GetCloseAfterOneToAll() bool {
	if c.CloseAfterOneToAll == nil {
		return true
	}
	return *c.CloseAfterOneToAll
}

// GetReadTimeout returns the per-frame read timeout. Zero disables it.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, 0)
}

// GetStatsInterval returns how often engine stats are logged.
func (c *Config) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, 30*time.Second)
}

// GetLogLevel returns the log level or "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return strings.ToLower(*c.LogLevel)
}

// GetLogFormat returns the log format or "json".
func (c *Config) GetLogFormat() string {
	if c.LogFormat == nil {
		return "json"
	}
	return strings.ToLower(*c.LogFormat)
}

// GetExportPath returns the SQLite export path or the default.
func (c *Config) GetExportPath() string {
	if c.ExportPath == nil {
		return "gridpath_exports.db"
	}
	return *c.ExportPath
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
