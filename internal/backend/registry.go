// Package backend owns the native tokenization backends: their lifecycle,
// probing, selection and invocation.
//
// A backend moves through Unprobed, Probing and then Available or
// Unavailable; an Available backend becomes Failed the first time an
// invocation fails. Unavailable and Failed are permanent for the life of
// the Registry. The pattern tokenizer is the terminal fallback and is not a
// probed backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/lexbridge/internal/logging"
	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/notify"
	"github.com/dshills/lexbridge/internal/token"
)

// DefaultProbeTimeout bounds how long Select waits on probing.
const DefaultProbeTimeout = 250 * time.Millisecond

const probeWorkers = 4

var tracer = otel.Tracer("github.com/dshills/lexbridge/internal/backend")

// entry is one row of the state table. Every field except calls is guarded
// by Registry.mu.
type entry struct {
	desc  Descriptor
	state State

	symbols map[string]native.Symbol
	entry   native.Symbol

	missing     []string
	err         error
	resolutions int
	probedAt    time.Time
	failedAt    time.Time

	calls atomic.Int64

	// gate is held shared for the length of each call and exclusively by
	// fail, so no call starts once the entry is Failed.
	gate sync.RWMutex
}

// Registry holds the declared backends and their state table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	byLang  map[token.Language][]string

	fallback     *Fallback
	probeTimeout time.Duration
	probes       singleflight.Group
	events       *notify.Notifier[token.Language, StateChange]
	logger       *logging.Logger
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	fallback     *Fallback
	probeTimeout time.Duration
	logger       *logging.Logger
	asyncEvents  int
}

// WithFallback sets the terminal fallback tokenizer.
func WithFallback(f *Fallback) Option {
	return func(o *registryOptions) { o.fallback = f }
}

// WithProbeTimeout bounds how long Select waits for probing. Zero or
// negative restores the default.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *registryOptions) { o.probeTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *registryOptions) { o.logger = l }
}

// WithAsyncEvents delivers state changes on a separate goroutine through a
// buffer of n events.
func WithAsyncEvents(n int) Option {
	return func(o *registryOptions) { o.asyncEvents = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	o := registryOptions{probeTimeout: DefaultProbeTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fallback == nil {
		o.fallback = NewFallback(nil)
	}
	if o.probeTimeout <= 0 {
		o.probeTimeout = DefaultProbeTimeout
	}

	nopts := []notify.Option[token.Language, StateChange]{
		notify.WithKeys[token.Language, StateChange](func(c StateChange) []token.Language {
			return c.Languages
		}),
	}
	if o.asyncEvents > 0 {
		nopts = append(nopts, notify.WithAsync[token.Language, StateChange](o.asyncEvents))
	}

	return &Registry{
		entries:      make(map[string]*entry),
		byLang:       make(map[token.Language][]string),
		fallback:     o.fallback,
		probeTimeout: o.probeTimeout,
		events:       notify.New(nopts...),
		logger:       logging.OrDefault(o.logger).WithComponent("registry"),
	}
}

// Declare adds a backend in state Unprobed. Backends declared earlier have
// priority for the languages they share.
func (r *Registry) Declare(desc Descriptor) error {
	if err := desc.validate(); err != nil {
		return err
	}

	desc.Languages = slices.Clone(desc.Languages)
	desc.Symbols = slices.Clone(desc.Symbols)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.entries[desc.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateBackend, desc.ID)
	}
	r.entries[desc.ID] = &entry{desc: desc}
	r.order = append(r.order, desc.ID)
	for _, lang := range desc.Languages {
		r.byLang[lang] = append(r.byLang[lang], desc.ID)
	}
	return nil
}

// Fallback returns the terminal fallback tokenizer.
func (r *Registry) Fallback() *Fallback {
	return r.fallback
}

// ProbeTimeout returns the bound Select applies to probing.
func (r *Registry) ProbeTimeout() time.Duration {
	return r.probeTimeout
}

// Subscribe registers an observer for every state change.
func (r *Registry) Subscribe(fn func(StateChange)) *notify.Subscription {
	return r.events.Subscribe(fn)
}

// SubscribeLanguage registers an observer for state changes of backends
// that support lang.
func (r *Registry) SubscribeLanguage(lang token.Language, fn func(StateChange)) *notify.Subscription {
	return r.events.SubscribeKey(lang, fn)
}

// Close stops event delivery.
func (r *Registry) Close() {
	r.events.Close()
}

// Select returns the highest-priority Available backend for lang, probing
// candidates lazily in declaration order. When probing does not settle
// within the probe timeout or ctx, probing continues in the background and
// Select settles for the first remaining candidate that is already
// Available. It returns the fallback when there is none.
func (r *Registry) Select(ctx context.Context, lang token.Language) Tokenizer {
	timer := time.NewTimer(r.probeTimeout)
	defer timer.Stop()

	ids := r.candidates(lang)
	for i, id := range ids {
		state, ok := r.settle(ctx, id, timer.C)
		if !ok {
			for _, next := range ids[i+1:] {
				if s, _ := r.State(next); s == StateAvailable {
					r.logger.Debug("probe of %s still running, using %s for %s", id, next, lang)
					return handle{r: r, id: next}
				}
			}
			r.logger.Debug("probe of %s still running, using %s for %s", id, r.fallback.ID(), lang)
			return r.fallback
		}
		if state == StateAvailable {
			return handle{r: r, id: id}
		}
	}
	return r.fallback
}

// settle returns the settled state of id, probing if needed. It reports
// false if the deadline or ctx fires first.
func (r *Registry) settle(ctx context.Context, id string, deadline <-chan time.Time) (State, bool) {
	if s, _ := r.State(id); s.Settled() {
		return s, true
	}

	ch := r.probes.DoChan(id, func() (any, error) {
		return r.probe(id), nil
	})
	select {
	case res := <-ch:
		return res.Val.(State), true
	case <-deadline:
		return StateProbing, false
	case <-ctx.Done():
		return StateProbing, false
	}
}

// Probe resolves the backend's entry points once and returns the resulting
// state. Later calls return the memoized state without resolving again;
// concurrent first calls share one resolution.
func (r *Registry) Probe(id string) (State, error) {
	s, ok := r.State(id)
	if !ok {
		return StateUnprobed, fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}
	if s.Settled() {
		return s, nil
	}

	v, _, _ := r.probes.Do(id, func() (any, error) {
		return r.probe(id), nil
	})
	return v.(State), nil
}

// ProbeAll probes every declared backend concurrently.
func (r *Registry) ProbeAll(ctx context.Context) error {
	r.mu.RLock()
	ids := slices.Clone(r.order)
	r.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeWorkers)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := r.Probe(id)
			return err
		})
	}
	return g.Wait()
}

// probe performs the Unprobed -> Probing -> Available/Unavailable steps.
func (r *Registry) probe(id string) State {
	r.mu.Lock()
	e := r.entries[id]
	if e.state != StateUnprobed {
		s := e.state
		r.mu.Unlock()
		return s
	}
	change := r.transitionLocked(e, StateProbing, nil)
	r.mu.Unlock()
	r.events.Notify(change)

	_, span := tracer.Start(context.Background(), "backend.probe")
	span.SetAttributes(attribute.String("backend", id), attribute.String("resolver", e.desc.Resolver.Name()))
	defer span.End()

	start := time.Now()
	symbols, missing, resolutions, err := resolve(e.desc)

	r.mu.Lock()
	e.resolutions += resolutions
	e.probedAt = time.Now()
	to := StateAvailable
	if len(missing) > 0 || err != nil {
		to = StateUnavailable
		e.missing = missing
		e.err = &ProbeError{Backend: id, Missing: missing, Err: err}
	} else {
		e.symbols = symbols
		e.entry = symbols[e.desc.entry()]
	}
	change = r.transitionLocked(e, to, e.err)
	r.mu.Unlock()
	r.events.Notify(change)

	span.SetAttributes(attribute.String("state", to.String()))
	if to == StateAvailable {
		r.logger.Info("backend %s available (%s)", id, time.Since(start))
	} else {
		span.SetStatus(codes.Error, e.err.Error())
		r.logger.Debug("backend %s unavailable: %v", id, e.err)
	}
	return to
}

// resolve looks up every symbol of d in order. Resolver panics and
// non-miss errors make the backend unavailable.
func resolve(d Descriptor) (symbols map[string]native.Symbol, missing []string, n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("resolver %s panicked: %v", d.Resolver.Name(), rec)
		}
	}()

	symbols = make(map[string]native.Symbol, len(d.Symbols))
	for _, name := range d.Symbols {
		n++
		sym, rerr := d.Resolver.Resolve(name)
		switch {
		case rerr == nil:
			symbols[name] = sym
		case errors.Is(rerr, native.ErrSymbolNotFound):
			missing = append(missing, name)
		default:
			return nil, nil, n, rerr
		}
	}

	if len(missing) == 0 && !symbols[d.entry()].Callable() {
		return nil, nil, n, fmt.Errorf("%w: %s", native.ErrNotCallable, d.entry())
	}
	return symbols, missing, n, nil
}

// invoke calls an Available backend. A failure marks it Failed.
func (r *Registry) invoke(ctx context.Context, id string, text string, lang token.Language, rev uint64) (token.Stream, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return token.Stream{}, fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}

	e.gate.RLock()
	r.mu.RLock()
	state, sym := e.state, e.entry
	r.mu.RUnlock()
	if state != StateAvailable {
		e.gate.RUnlock()
		return token.Stream{}, fmt.Errorf("%w: %s is %s", ErrNotAvailable, id, state)
	}

	e.calls.Add(1)
	spans, err := call(ctx, sym, []byte(text))
	e.gate.RUnlock()
	if err != nil && canceled(ctx, err) {
		return token.Stream{}, err
	}

	var stream token.Stream
	if err == nil {
		stream, err = buildStream(id, text, lang, rev, spans)
	}
	if err != nil {
		r.fail(e, err)
		return token.Stream{}, &InvocationError{Backend: id, Err: err}
	}
	return stream, nil
}

// fail moves an Available backend to Failed and drops its handles.
// It waits for calls already in progress to return.
func (r *Registry) fail(e *entry, err error) {
	e.gate.Lock()
	r.mu.Lock()
	if e.state != StateAvailable {
		r.mu.Unlock()
		e.gate.Unlock()
		return
	}
	e.symbols = nil
	e.entry = native.Symbol{}
	e.err = err
	e.failedAt = time.Now()
	change := r.transitionLocked(e, StateFailed, err)
	r.mu.Unlock()
	e.gate.Unlock()

	r.events.Notify(change)
	r.logger.Warn("backend %s failed and is disabled: %v", e.desc.ID, err)
}

// transitionLocked applies a legal transition. Callers hold r.mu.
func (r *Registry) transitionLocked(e *entry, to State, err error) StateChange {
	from := e.state
	if !canTransition(from, to) {
		panic(fmt.Sprintf("backend %s: illegal transition %s -> %s", e.desc.ID, from, to))
	}
	e.state = to
	return StateChange{
		Backend:   e.desc.ID,
		Languages: slices.Clone(e.desc.Languages),
		From:      from,
		To:        to,
		At:        time.Now(),
		Err:       err,
	}
}

func (r *Registry) candidates(lang token.Language) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byLang[lang])
}

// State returns the current state of a backend.
func (r *Registry) State(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return StateUnprobed, false
	}
	return e.state, true
}

// Backend returns a snapshot of one backend.
func (r *Registry) Backend(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Info{}, false
	}
	return e.snapshot(), true
}

// Backends returns snapshots of every backend in declaration order.
func (r *Registry) Backends() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].snapshot())
	}
	return out
}

// BackendsFor returns snapshots of the candidates for lang in priority order.
func (r *Registry) BackendsFor(lang token.Language) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byLang[lang]
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id].snapshot())
	}
	return out
}

func (e *entry) snapshot() Info {
	return Info{
		ID:          e.desc.ID,
		Languages:   slices.Clone(e.desc.Languages),
		Symbols:     slices.Clone(e.desc.Symbols),
		Resolver:    e.desc.Resolver.Name(),
		State:       e.state,
		Missing:     slices.Clone(e.missing),
		Err:         e.err,
		Resolutions: e.resolutions,
		Calls:       e.calls.Load(),
		ProbedAt:    e.probedAt,
		FailedAt:    e.failedAt,
	}
}
