package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/lexbridge/internal/bridge"
	"github.com/dshills/lexbridge/internal/config"
	"github.com/dshills/lexbridge/internal/logging"
	"github.com/dshills/lexbridge/internal/tracing"
)

// shutdownTimeout bounds how long commands wait for in-flight work on exit.
const shutdownTimeout = 2 * time.Second

type globalOptions struct {
	configPath string
	logLevel   string
	eagerProbe bool
	noNative   bool
	noColor    bool
	trace      string
}

// cli carries global flags and streams to subcommands.
type cli struct {
	opts   globalOptions
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "lexbridge",
		Short: "Editor tokenization bridge",
		Long: `lexbridge classifies source text into highlight tokens using native lexers
when they are linked in and a built-in pattern tokenizer otherwise.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.opts.configPath, "config", "c", "", "config file (default: ~/.config/lexbridge/config.toml if present)")
	pf.StringVar(&c.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&c.opts.eagerProbe, "eager-probe", false, "probe every native backend at startup")
	pf.BoolVar(&c.opts.noNative, "no-native", false, "use only the pattern tokenizer")
	pf.BoolVar(&c.opts.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&c.opts.trace, "trace", "", "export spans (stdout)")

	root.AddCommand(
		newTokenizeCmd(c),
		newMatrixCmd(c),
		newProbeCmd(c),
		newWatchCmd(c),
		newConfigCmd(c),
	)
	return root
}

// configPath returns the explicit --config path or the default path if a
// file exists there.
func (c *cli) configPath() string {
	if c.opts.configPath != "" {
		return c.opts.configPath
	}
	p, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return p
}

// loadConfig loads the config file and applies global flags on top.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return nil, err
	}
	c.applyFlags(cfg)
	return cfg, cfg.Validate()
}

func (c *cli) applyFlags(cfg *config.Config) {
	if c.opts.logLevel != "" {
		cfg.Logging.Level = c.opts.logLevel
	}
	if c.opts.eagerProbe {
		cfg.Registry.EagerProbe = true
	}
	if c.opts.noNative {
		cfg.Native.EnableDL = false
		cfg.Native.EnableChroma = false
		cfg.Native.LuaPluginDir = ""
	}
	if c.opts.trace != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = c.opts.trace
	}
}

// session is an open bridge plus everything that must be shut down with it.
type session struct {
	bridge *bridge.Bridge
	logger *logging.Logger
	tracer *tracing.Provider
}

func (c *cli) open(ctx context.Context, cfg *config.Config) (*session, error) {
	lc := cfg.LogConfig()
	lc.Output = c.stderr
	logger := logging.New(lc)
	logging.SetDefault(logger)

	tp, err := tracing.Install(tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Exporter: cfg.Tracing.Exporter,
		Output:   c.stderr,
	})
	if err != nil {
		return nil, err
	}

	b, err := bridge.New(ctx, cfg, bridge.WithLogger(logger))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &session{bridge: b, logger: logger, tracer: tp}, nil
}

func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(s.bridge.Close(ctx), s.tracer.Shutdown(ctx))
}

func (c *cli) openSession(ctx context.Context) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return c.open(ctx, cfg)
}
