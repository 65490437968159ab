package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/lexbridge/internal/logging"
	"github.com/dshills/lexbridge/internal/notify"
)

// DefaultReloadDelay coalesces the burst of events editors emit on save.
const DefaultReloadDelay = 100 * time.Millisecond

// Reload is published after the watched file changes. Exactly one of
// Config and Err is set; a failed reload leaves the previous config in
// effect.
type Reload struct {
	Config *Config
	Err    error
	At     time.Time
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithReloadDelay sets how long the file must be quiet before reloading.
func WithReloadDelay(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *logging.Logger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.WithComponent("config")
		}
	}
}

// WithLoadOptions passes opts to every Load.
func WithLoadOptions(opts ...LoadOption) WatchOption {
	return func(w *Watcher) {
		w.loadOpts = append(w.loadOpts, opts...)
	}
}

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file, so editors that
// save by rename keep triggering reloads.
type Watcher struct {
	path     string
	delay    time.Duration
	loadOpts []LoadOption
	logger   *logging.Logger

	fsw    *fsnotify.Watcher
	events *notify.Notifier[struct{}, Reload]

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	current *Config
	closed  bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching path. The initial config is loaded immediately.
func Watch(path string, opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		delay:   DefaultReloadDelay,
		logger:  logging.Default().WithComponent("config"),
		events:  notify.New[struct{}, Reload](),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, err := Load(abs, w.loadOpts...)
	if err != nil {
		return nil, err
	}
	w.current = cfg

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Current returns the last successfully loaded config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Subscribe registers fn for reloads.
func (w *Watcher) Subscribe(fn func(Reload)) *notify.Subscription {
	return w.events.Subscribe(notify.Observer[Reload](fn))
}

// Reload loads the file now and publishes the result.
func (w *Watcher) Reload() Reload {
	cfg, err := Load(w.path, w.loadOpts...)
	r := Reload{Config: cfg, Err: err, At: time.Now()}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return r
	}
	if err == nil {
		w.current = cfg
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("reload %s: %v", w.path, err)
	} else {
		w.logger.Info("reloaded %s", w.path)
	}
	w.events.Notify(r)
	return r
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.seq++
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.events.Close()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch %s: %v", w.path, err)
		}
	}
}

// schedule restarts the reload delay; only the last event in a burst
// reloads.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.seq++
	seq := w.seq
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		stale := w.closed || seq != w.seq
		w.mu.Unlock()
		if !stale {
			w.Reload()
		}
	})
}
