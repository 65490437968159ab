package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the configuration file name inside the config directory.
const FileName = "config.toml"

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	lookup  LookupFunc
	environ func() []string
}

// WithEnv reads overrides through lookup instead of the process environment.
func WithEnv(lookup LookupFunc) LoadOption {
	return func(o *loadOptions) {
		o.lookup = lookup
		o.environ = nil
	}
}

// WithoutEnv disables environment overrides.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) {
		o.lookup = nil
		o.environ = nil
	}
}

// DefaultPath returns the user config file path, typically
// ~/.config/lexbridge/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lexbridge", FileName), nil
}

// Load builds a configuration from defaults, the TOML file at path, and
// environment overrides, then validates it. An empty path skips the file;
// a missing file is ErrFileNotFound.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{lookup: os.LookupEnv, environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decodeInto(cfg, path, bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}

	if o.lookup != nil {
		env := newEnvLoader(EnvPrefix, o.lookup)
		if o.environ != nil {
			if err := env.checkUnknown(o.environ()); err != nil {
				return nil, err
			}
		}
		if err := env.apply(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads TOML from r over the defaults and validates the result.
// Unknown keys are errors. source names r in error messages.
func Decode(r io.Reader, source string) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, source, r); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeInto(cfg *Config, source string, r io.Reader) error {
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}

		var derr *toml.DecodeError
		var serr *toml.StrictMissingError
		switch {
		case errors.As(err, &derr):
			pe.Line, pe.Column = derr.Position()
		case errors.As(err, &serr) && len(serr.Errors) > 0:
			pe.Line, pe.Column = serr.Errors[0].Position()
			pe.Message = "unknown key " + strings.Join(serr.Errors[0].Key(), ".")
		}
		return pe
	}
	return nil
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
