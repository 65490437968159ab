package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEXBRIDGE_"

// setter applies one environment value.
type setter func(c *Config, raw string) error

// envLoader maps LEXBRIDGE_SECTION_KEY variables to settings.
type envLoader struct {
	prefix  string
	lookup  LookupFunc
	mapping map[string]setter
}

func newEnvLoader(prefix string, lookup LookupFunc) *envLoader {
	return &envLoader{prefix: prefix, lookup: lookup, mapping: defaultEnvMapping()}
}

// EnvVars returns the names of all supported environment overrides.
func EnvVars() []string {
	m := defaultEnvMapping()
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, EnvPrefix+name)
	}
	return out
}

func defaultEnvMapping() map[string]setter {
	return map[string]setter{
		"LOG_LEVEL":  str(func(c *Config) *string { return &c.Logging.Level }),
		"LOG_FORMAT": str(func(c *Config) *string { return &c.Logging.Format }),

		"COORDINATOR_DEBOUNCE":      dur(func(c *Config) *Duration { return &c.Coordinator.Debounce }),
		"COORDINATOR_WORKERS":       integer(func(c *Config) *int { return &c.Coordinator.Workers }),
		"COORDINATOR_QUEUE_SIZE":    integer(func(c *Config) *int { return &c.Coordinator.QueueSize }),
		"COORDINATOR_CACHE_ENABLED": boolean(func(c *Config) *bool { return &c.Coordinator.CacheEnabled }),
		"COORDINATOR_CACHE_TTL":     dur(func(c *Config) *Duration { return &c.Coordinator.CacheTTL }),

		"REGISTRY_PROBE_TIMEOUT": dur(func(c *Config) *Duration { return &c.Registry.ProbeTimeout }),
		"REGISTRY_EAGER_PROBE":   boolean(func(c *Config) *bool { return &c.Registry.EagerProbe }),

		"PATTERN_MAX_INPUT_BYTES": integer(func(c *Config) *int { return &c.Pattern.MaxInputBytes }),

		"NATIVE_ENABLE_DL":        boolean(func(c *Config) *bool { return &c.Native.EnableDL }),
		"NATIVE_ENABLE_CHROMA":    boolean(func(c *Config) *bool { return &c.Native.EnableChroma }),
		"NATIVE_LUA_PLUGIN_DIR":   str(func(c *Config) *string { return &c.Native.LuaPluginDir }),
		"NATIVE_LUA_CALL_TIMEOUT": dur(func(c *Config) *Duration { return &c.Native.LuaCallTimeout }),

		"TRACING_ENABLED":  boolean(func(c *Config) *bool { return &c.Tracing.Enabled }),
		"TRACING_EXPORTER": str(func(c *Config) *string { return &c.Tracing.Exporter }),
	}
}

func (l *envLoader) apply(c *Config) error {
	for name, set := range l.mapping {
		raw, ok := l.lookup(l.prefix + name)
		if !ok {
			continue
		}
		if err := set(c, raw); err != nil {
			return &ParseError{Path: l.prefix + name, Message: err.Error(), Err: err}
		}
	}
	return nil
}

// checkUnknown rejects prefixed variables that map to nothing, which are
// almost always typos.
func (l *envLoader) checkUnknown(environ []string) error {
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		key, ok := strings.CutPrefix(name, l.prefix)
		if !ok {
			continue
		}
		if _, known := l.mapping[key]; !known {
			return &ParseError{Path: name, Message: "unknown setting"}
		}
	}
	return nil
}

func str(field func(*Config) *string) setter {
	return func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}
}

func integer(field func(*Config) *int) setter {
	return func(c *Config, raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("not an integer: %q", raw)
		}
		*field(c) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) setter {
	return func(c *Config, raw string) error {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			*field(c) = true
		case "0", "false", "no", "off":
			*field(c) = false
		default:
			return fmt.Errorf("not a boolean: %q", raw)
		}
		return nil
	}
}

func dur(field func(*Config) *Duration) setter {
	return func(c *Config, raw string) error {
		return field(c).UnmarshalText([]byte(strings.TrimSpace(raw)))
	}
}
