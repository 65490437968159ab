// Package bridge is the editor-facing facade. It wires the pattern
// tokenizer, native backend registry, coordinator and availability matrix
// from one Config.
//
// An editor calls NotifyEdit on every change and receives token streams
// through OnHighlightUpdate. Tokenization never runs on the caller's
// goroutine and errors never reach the callback: a failing native backend
// is replaced by the pattern tokenizer.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/lexbridge/internal/backend"
	"github.com/dshills/lexbridge/internal/config"
	"github.com/dshills/lexbridge/internal/coordinator"
	"github.com/dshills/lexbridge/internal/logging"
	"github.com/dshills/lexbridge/internal/matrix"
	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/native/chromamod"
	"github.com/dshills/lexbridge/internal/notify"
	"github.com/dshills/lexbridge/internal/pattern"
	"github.com/dshills/lexbridge/internal/token"
)

// DLSymbol is the C entry point looked up in the process image for lang.
func DLSymbol(lang token.Language) string {
	return "lexbridge_" + lang.String() + "_tokenize"
}

// LuaSymbol is the global function a Lua plugin defines for lang.
func LuaSymbol(lang token.Language) string {
	return lang.String() + "_tokenize"
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger instead of building one from the config.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithProcessImage replaces native.Process as the image chroma lexers are
// resolved from.
func WithProcessImage(im *native.Image) Option {
	return func(b *Bridge) { b.image = im }
}

// WithBackends declares extra backends ahead of the configured ones.
func WithBackends(descs ...backend.Descriptor) Option {
	return func(b *Bridge) { b.extra = append(b.extra, descs...) }
}

// Bridge owns every component. It is safe for concurrent use.
type Bridge struct {
	logger *logging.Logger
	image  *native.Image
	extra  []backend.Descriptor

	mu  sync.Mutex
	cfg *config.Config

	pattern  *pattern.Tokenizer
	lua      *native.LuaImage
	registry *backend.Registry
	coord    *coordinator.Coordinator
	session  *coordinator.Session
	view     *matrix.View
	reloads  *notify.Subscription
}

// New builds a bridge from cfg. A nil cfg means config.Default. With
// registry.eager_probe set, every backend is probed before New returns.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{cfg: cfg, image: native.Process}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.New(cfg.LogConfig())
	}

	b.pattern = pattern.New(pattern.WithMaxInput(cfg.Pattern.MaxInputBytes))
	b.registry = backend.NewRegistry(
		backend.WithFallback(backend.NewFallback(b.pattern)),
		backend.WithProbeTimeout(cfg.Registry.ProbeTimeout.Std()),
		backend.WithLogger(b.logger),
	)

	if err := b.declare(); err != nil {
		b.registry.Close()
		if b.lua != nil {
			b.lua.Close()
		}
		return nil, err
	}

	if cfg.Registry.EagerProbe {
		if err := b.registry.ProbeAll(ctx); err != nil {
			b.logger.Warn("eager probe: %v", err)
		}
	}

	b.coord = coordinator.New(b.registry, coordinator.Config{
		Debounce:     cfg.Coordinator.Debounce.Std(),
		Workers:      cfg.Coordinator.Workers,
		QueueSize:    cfg.Coordinator.QueueSize,
		CacheEnabled: cfg.Coordinator.CacheEnabled,
		CacheTTL:     cfg.Coordinator.CacheTTL.Std(),
	}, coordinator.WithLogger(b.logger))
	b.session = b.coord.NewSession()
	b.view = matrix.NewView(b.registry, token.Languages(), b.pattern.ID())

	b.logger.Debug("bridge ready: %d backends", len(b.registry.Backends()))
	return b, nil
}

// declare registers backends per language, most specific first: extra
// backends, C symbols in the process image, Lua plugins, chroma lexers.
func (b *Bridge) declare() error {
	for _, d := range b.extra {
		if err := b.registry.Declare(d); err != nil {
			return err
		}
	}

	cfg := b.cfg.Native
	var dl *native.DL
	if cfg.EnableDL {
		if dl = native.NewDL(); !dl.Supported() {
			b.logger.Debug("dlsym unavailable in this build")
			dl = nil
		}
	}
	if cfg.LuaPluginDir != "" {
		b.lua = native.NewLuaImage(native.WithLuaCallTimeout(cfg.LuaCallTimeout.Std()))
		n, err := b.lua.LoadDir(cfg.LuaPluginDir)
		if err != nil {
			b.logger.Warn("lua plugins in %s: %v", cfg.LuaPluginDir, err)
		}
		b.logger.Info("loaded %d lua plugins from %s", n, cfg.LuaPluginDir)
	}

	for _, lang := range token.Languages() {
		var descs []backend.Descriptor
		if dl != nil {
			descs = append(descs, backend.Descriptor{
				ID:        "dl-" + lang.String(),
				Languages: []token.Language{lang},
				Symbols:   []string{DLSymbol(lang)},
				Resolver:  dl,
			})
		}
		if b.lua != nil {
			descs = append(descs, backend.Descriptor{
				ID:        "lua-" + lang.String(),
				Languages: []token.Language{lang},
				Symbols:   []string{LuaSymbol(lang)},
				Resolver:  b.lua,
			})
		}
		if cfg.EnableChroma {
			descs = append(descs, backend.Descriptor{
				ID:        "chroma-" + lang.String(),
				Languages: []token.Language{lang},
				Symbols:   []string{chromamod.RuntimeSymbol, chromamod.LexerSymbol(lang)},
				Resolver:  b.image,
			})
		}
		for _, d := range descs {
			if err := b.registry.Declare(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// NotifyEdit submits the document text at rev. It returns immediately.
func (b *Bridge) NotifyEdit(lang token.Language, text string, rev uint64) {
	b.session.Submit(lang, text, rev)
}

// OnHighlightUpdate registers fn for delivered streams. Streams arrive in
// increasing revision order; superseded revisions are skipped. The returned
// function unregisters fn.
func (b *Bridge) OnHighlightUpdate(fn func(token.Stream)) (unregister func()) {
	return b.session.OnResult(fn)
}

// GetAvailability returns the current availability matrix.
func (b *Bridge) GetAvailability() matrix.Matrix {
	return b.view.Snapshot()
}

// TokenizeNow tokenizes text on the calling goroutine, bypassing debounce
// and the staleness guard. A native failure falls back to the pattern
// tokenizer; the returned error is only for invalid input.
func (b *Bridge) TokenizeNow(ctx context.Context, lang token.Language, text string) (token.Stream, error) {
	if !lang.Valid() {
		return token.Stream{}, fmt.Errorf("%w: %d", token.ErrUnknownLanguage, lang)
	}

	tok := b.registry.Select(ctx, lang)
	stream, err := tok.Tokenize(ctx, text, lang, 0)
	if err == nil {
		return stream, nil
	}
	if ctx.Err() != nil {
		return token.Stream{}, ctx.Err()
	}
	b.logger.Warn("backend %s failed, using pattern: %v", tok.ID(), err)
	return b.registry.Fallback().Tokenize(ctx, text, lang, 0)
}

// NewSession opens another document session.
func (b *Bridge) NewSession() *coordinator.Session {
	return b.coord.NewSession()
}

// Session returns the session NotifyEdit submits to.
func (b *Bridge) Session() *coordinator.Session {
	return b.session
}

// Registry returns the backend registry.
func (b *Bridge) Registry() *backend.Registry {
	return b.registry
}

// Stats returns coordinator counters.
func (b *Bridge) Stats() coordinator.Stats {
	return b.coord.Stats()
}

// Config returns the configuration in effect.
func (b *Bridge) Config() *config.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// ApplyConfig applies the settings that can change at runtime: the
// debounce window and the log level. Other changes take effect on restart.
func (b *Bridge) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	prev := b.cfg
	b.cfg = cfg
	b.mu.Unlock()

	b.coord.SetDebounce(cfg.Coordinator.Debounce.Std())
	b.logger.SetLevel(cfg.LogConfig().Level)

	if restartOnly(prev, cfg) {
		b.logger.Info("config changed; some settings apply after restart")
	}
	return nil
}

func restartOnly(prev, next *config.Config) bool {
	a, b := *prev, *next
	a.Coordinator.Debounce, b.Coordinator.Debounce = 0, 0
	a.Logging.Level, b.Logging.Level = "", ""
	return a != b
}

// Follow applies every successful reload from w until Close.
func (b *Bridge) Follow(w *config.Watcher) {
	sub := w.Subscribe(func(r config.Reload) {
		if r.Err != nil {
			return
		}
		if err := b.ApplyConfig(r.Config); err != nil {
			b.logger.Warn("apply reloaded config: %v", err)
		}
	})

	b.mu.Lock()
	old := b.reloads
	b.reloads = sub
	b.mu.Unlock()
	old.Unsubscribe()
}

// Close stops all components. In-flight tokenization is canceled if ctx
// ends first.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	sub := b.reloads
	b.reloads = nil
	b.mu.Unlock()
	sub.Unsubscribe()

	err := b.coord.Close(ctx)
	b.view.Close()
	b.registry.Close()
	if b.lua != nil {
		b.lua.Close()
	}
	return err
}
