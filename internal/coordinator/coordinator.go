// Package coordinator turns a rapid stream of edit notifications into an
// ordered stream of token stream deliveries.
//
// Each session debounces its submissions, so only the text present when the
// quiet window elapses is tokenized. Ready requests run on a fixed worker
// pool, never on the caller's goroutine. Results are delivered only if their
// revision is newer than the last one delivered for the session; completion
// order does not matter. When a native backend fails, the same request is
// re-run on the pattern tokenizer, so the caller always gets a stream.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/lexbridge/internal/backend"
	"github.com/dshills/lexbridge/internal/logging"
	"github.com/dshills/lexbridge/internal/token"
)

// Defaults for Config fields left zero.
const (
	DefaultDebounce  = 30 * time.Millisecond
	DefaultWorkers   = 4
	DefaultQueueSize = 64
	DefaultCacheTTL  = 5 * time.Minute
)

var tracer = otel.Tracer("github.com/dshills/lexbridge/internal/coordinator")

// Selector picks the tokenizer for a language.
type Selector interface {
	Select(ctx context.Context, lang token.Language) backend.Tokenizer
	Fallback() *backend.Fallback
}

// Config configures a Coordinator.
type Config struct {
	// Debounce is the quiet window before a session's latest text is
	// dispatched.
	Debounce time.Duration

	// Workers is the number of tokenization goroutines.
	Workers int

	// QueueSize bounds the sessions waiting for a worker. Timers wait when
	// it is full; Submit never does.
	QueueSize int

	// CacheEnabled turns on the result cache.
	CacheEnabled bool

	// CacheTTL is how long cached streams live.
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:     DefaultDebounce,
		Workers:      DefaultWorkers,
		QueueSize:    DefaultQueueSize,
		CacheEnabled: true,
		CacheTTL:     DefaultCacheTTL,
	}
}

func (c Config) withDefaults() Config {
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// Result describes one delivery.
type Result struct {
	Session uuid.UUID
	Stream  token.Stream

	// Fallback is set when the selected native backend failed and the
	// stream came from the pattern tokenizer instead.
	Fallback bool

	// Cached is set when the stream came from the result cache.
	Cached bool

	// Latency is the time from submission to delivery.
	Latency time.Duration
}

// ResultFunc receives deliveries for every session.
type ResultFunc func(Result)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l.WithComponent("coordinator")
		}
	}
}

// Coordinator schedules tokenization off the caller's goroutine.
type Coordinator struct {
	sel    Selector
	cfg    Config
	logger *logging.Logger
	cache  *resultCache

	debounce atomic.Int64

	mu        sync.RWMutex
	sessions  map[uuid.UUID]*Session
	callbacks map[uint64]ResultFunc
	nextCB    uint64

	queue  chan *Session
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	stats stats
}

// New creates a coordinator and starts its workers.
func New(sel Selector, cfg Config, opts ...Option) *Coordinator {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		sel:       sel,
		cfg:       cfg,
		logger:    logging.Default().WithComponent("coordinator"),
		sessions:  make(map[uuid.UUID]*Session),
		callbacks: make(map[uint64]ResultFunc),
		queue:     make(chan *Session, cfg.QueueSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.CacheEnabled {
		c.cache = newResultCache(cfg.CacheTTL)
	}
	c.debounce.Store(int64(cfg.Debounce))

	c.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go c.worker()
	}
	return c
}

// Debounce returns the current quiet window.
func (c *Coordinator) Debounce() time.Duration {
	return time.Duration(c.debounce.Load())
}

// SetDebounce changes the quiet window for submissions made afterwards.
func (c *Coordinator) SetDebounce(d time.Duration) {
	c.debounce.Store(int64(max(d, 0)))
}

// NewSession creates a session with its own revisions and debounce window.
func (c *Coordinator) NewSession() *Session {
	s := newSession(c)

	c.mu.Lock()
	c.sessions[s.id] = s
	c.mu.Unlock()
	return s
}

// Session returns a live session by id.
func (c *Coordinator) Session(id uuid.UUID) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

// OnResult registers fn for deliveries of every session. The returned
// function unregisters it.
func (c *Coordinator) OnResult(fn ResultFunc) (unregister func()) {
	c.mu.Lock()
	id := c.nextCB
	c.nextCB++
	c.callbacks[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.callbacks, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) resultCallbacks() []ResultFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ResultFunc, 0, len(c.callbacks))
	for _, fn := range c.callbacks {
		out = append(out, fn)
	}
	return out
}

func (c *Coordinator) removeSession(id uuid.UUID) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// enqueue hands a ready session to the workers. It waits while the queue is
// full and gives up once the coordinator closes.
func (c *Coordinator) enqueue(s *Session) {
	select {
	case c.queue <- s:
	case <-c.done:
	}
}

func (c *Coordinator) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case s := <-c.queue:
			if req := s.take(); req != nil {
				c.run(s, req)
			}
		}
	}
}

// run tokenizes one request and delivers the result.
func (c *Coordinator) run(s *Session, req *request) {
	c.stats.dispatched.Add(1)

	ctx, span := tracer.Start(c.ctx, "coordinator.tokenize", trace.WithAttributes(
		attribute.String("session", s.id.String()),
		attribute.String("language", req.lang.String()),
		attribute.Int64("revision", int64(req.rev)),
		attribute.Int("bytes", len(req.text)),
	))
	defer span.End()

	tok := c.sel.Select(ctx, req.lang)
	res := Result{Session: s.id}

	key := cacheKey(req.lang, tok.ID(), req.text)
	if cached, ok := c.cache.get(key); ok {
		c.stats.cacheHits.Add(1)
		res.Stream = cached.WithRevision(req.rev)
		res.Cached = true
	} else {
		stream, err := tokenize(ctx, tok, req)
		if err != nil {
			if ctx.Err() != nil {
				// Shutting down.
				c.stats.dropped.Add(1)
				return
			}
			if !tok.Native() {
				// The pattern tokenizer is total; getting here means a bug.
				c.stats.dropped.Add(1)
				span.RecordError(err)
				c.logger.Error("tokenize %s rev %d: %v", req.lang, req.rev, err)
				return
			}
			c.stats.fallbacks.Add(1)
			span.RecordError(err)
			c.logger.Warn("backend %s failed on %s rev %d, re-running on pattern: %v", tok.ID(), req.lang, req.rev, err)

			fb := c.sel.Fallback()
			stream, err = tokenize(ctx, fb, req)
			if err != nil {
				c.stats.dropped.Add(1)
				c.logger.Error("fallback %s rev %d: %v", req.lang, req.rev, err)
				return
			}
			res.Fallback = true
			key = cacheKey(req.lang, fb.ID(), req.text)
		}
		c.cache.set(key, stream)
		res.Stream = stream
	}

	res.Latency = time.Since(req.at)
	span.SetAttributes(
		attribute.String("backend", res.Stream.Backend()),
		attribute.Int("tokens", res.Stream.Len()),
		attribute.Bool("fallback", res.Fallback),
		attribute.Bool("cache_hit", res.Cached),
	)

	if s.deliver(res) {
		c.stats.delivered.Add(1)
		span.SetAttributes(attribute.Bool("delivered", true))
	} else {
		c.stats.stale.Add(1)
		c.logger.Debug("dropped stale rev %d for session %s", req.rev, s.id)
	}
}

// tokenize calls tok, converting panics into errors.
func tokenize(ctx context.Context, tok backend.Tokenizer, req *request) (stream token.Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", tok.ID(), r)
		}
	}()
	return tok.Tokenize(ctx, req.text, req.lang, req.rev)
}

// Close stops all timers and workers and waits for in-flight requests.
// Pending requests are discarded. If ctx ends first, in-flight calls are
// canceled and ctx.Err is returned.
func (c *Coordinator) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.RLock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.RUnlock()
	for _, s := range sessions {
		s.stop()
	}

	close(c.done)

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	defer c.cancel()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Closed reports whether Close has been called.
func (c *Coordinator) Closed() bool {
	return c.closed.Load()
}
