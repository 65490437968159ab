// Package config provides lexbridge configuration.
//
// Configuration comes from three sources, lowest precedence first:
//
//   - built-in defaults (Default)
//   - a TOML file
//   - LEXBRIDGE_* environment variables
//
// Example config.toml:
//
//	[logging]
//	level = "debug"
//	format = "json"
//
//	[coordinator]
//	debounce = "30ms"
//	workers = 4
//
//	[native]
//	lua_plugin_dir = "~/.config/lexbridge/lexers"
//
// Durations are Go duration strings. A Watcher reloads the file when it
// changes on disk.
package config

import (
	"fmt"
	"time"

	"github.com/dshills/lexbridge/internal/logging"
)

// Duration is a time.Duration that reads and writes as a duration string.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config is the complete lexbridge configuration.
type Config struct {
	Logging     Logging     `toml:"logging"`
	Coordinator Coordinator `toml:"coordinator"`
	Registry    Registry    `toml:"registry"`
	Pattern     Pattern     `toml:"pattern"`
	Native      Native      `toml:"native"`
	Tracing     Tracing     `toml:"tracing"`
}

// Logging configures the logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Coordinator configures debouncing, workers and the result cache.
type Coordinator struct {
	Debounce     Duration `toml:"debounce"`
	Workers      int      `toml:"workers"`
	QueueSize    int      `toml:"queue_size"`
	CacheEnabled bool     `toml:"cache_enabled"`
	CacheTTL     Duration `toml:"cache_ttl"`
}

// Registry configures native backend probing.
type Registry struct {
	ProbeTimeout Duration `toml:"probe_timeout"`
	// EagerProbe probes every backend at startup instead of on first use.
	EagerProbe bool `toml:"eager_probe"`
}

// Pattern configures the pattern tokenizer.
type Pattern struct {
	MaxInputBytes int `toml:"max_input_bytes"`
}

// Native selects which native backend sources are declared.
type Native struct {
	EnableDL       bool     `toml:"enable_dl"`
	EnableChroma   bool     `toml:"enable_chroma"`
	LuaPluginDir   string   `toml:"lua_plugin_dir"`
	LuaCallTimeout Duration `toml:"lua_call_timeout"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Exporter string `toml:"exporter"`
}

// Tracing exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: Logging{
			Level:  logging.LevelInfo.String(),
			Format: string(logging.FormatText),
		},
		Coordinator: Coordinator{
			Debounce:     Duration(30 * time.Millisecond),
			Workers:      4,
			QueueSize:    64,
			CacheEnabled: true,
			CacheTTL:     Duration(5 * time.Minute),
		},
		Registry: Registry{
			ProbeTimeout: Duration(250 * time.Millisecond),
		},
		Pattern: Pattern{
			MaxInputBytes: 4 << 20,
		},
		Native: Native{
			EnableDL:       true,
			EnableChroma:   true,
			LuaCallTimeout: Duration(2 * time.Second),
		},
		Tracing: Tracing{
			Exporter: ExporterNone,
		},
	}
}

// LogConfig converts the logging section. Callers have validated c.
func (c *Config) LogConfig() logging.Config {
	lc := logging.DefaultConfig()
	if lvl, ok := logging.ParseLevel(c.Logging.Level); ok {
		lc.Level = lvl
	}
	lc.Format = logging.Format(c.Logging.Format)
	return lc
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var v validator

	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		v.add("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		v.add("logging.format", c.Logging.Format, "must be text or json")
	}

	v.durationRange("coordinator.debounce", c.Coordinator.Debounce, 0, 10*time.Second)
	v.intRange("coordinator.workers", c.Coordinator.Workers, 1, 256)
	v.intRange("coordinator.queue_size", c.Coordinator.QueueSize, 1, 1<<16)
	if c.Coordinator.CacheEnabled {
		v.durationRange("coordinator.cache_ttl", c.Coordinator.CacheTTL, time.Second, 24*time.Hour)
	}

	v.durationRange("registry.probe_timeout", c.Registry.ProbeTimeout, time.Millisecond, 30*time.Second)
	v.intRange("pattern.max_input_bytes", c.Pattern.MaxInputBytes, 1, 1<<30)
	v.durationRange("native.lua_call_timeout", c.Native.LuaCallTimeout, time.Millisecond, time.Minute)

	switch c.Tracing.Exporter {
	case ExporterNone, ExporterStdout:
	default:
		v.add("tracing.exporter", c.Tracing.Exporter, "must be none or stdout")
	}

	return v.err()
}

func (c *Config) String() string {
	return fmt.Sprintf("config{log=%s/%s debounce=%s workers=%d probe_timeout=%s}",
		c.Logging.Level, c.Logging.Format, c.Coordinator.Debounce, c.Coordinator.Workers, c.Registry.ProbeTimeout)
}
