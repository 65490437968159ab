package coordinator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/lexbridge/internal/token"
)

type request struct {
	lang token.Language
	text string
	rev  uint64
	at   time.Time
}

// Session is one document's stream of submissions. Revisions are ordered per
// session; nothing older than the last delivery is ever delivered again.
type Session struct {
	id uuid.UUID
	c  *Coordinator

	mu      sync.Mutex
	pending *request // latest submission still inside its quiet window
	ready   *request // dispatched, waiting for a worker
	queued  bool
	seq     uint64
	timer   *time.Timer
	closed  bool
	subs    map[uint64]func(token.Stream)
	nextSub uint64

	nextRev atomic.Uint64

	// deliverMu orders deliveries. The delivered revision is read without
	// it, so callbacks may query it.
	deliverMu     sync.Mutex
	lastDelivered atomic.Uint64
	hasDelivered  atomic.Bool
}

func newSession(c *Coordinator) *Session {
	return &Session{
		id:   uuid.New(),
		c:    c,
		subs: make(map[uint64]func(token.Stream)),
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Next returns a revision greater than any submitted so far.
func (s *Session) Next() uint64 {
	return s.nextRev.Add(1)
}

// LastDelivered returns the revision of the last delivered stream.
func (s *Session) LastDelivered() (uint64, bool) {
	if !s.hasDelivered.Load() {
		return 0, false
	}
	return s.lastDelivered.Load(), true
}

// OnResult registers fn for this session's deliveries. fn runs on a worker
// goroutine and must not block for long. The returned function unregisters
// it.
func (s *Session) OnResult(fn func(token.Stream)) (unregister func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Submit records text at rev and restarts the quiet window. It never blocks
// on tokenization. A newer submission inside the window replaces this one.
func (s *Session) Submit(lang token.Language, text string, rev uint64) {
	c := s.c
	if c.closed.Load() {
		return
	}
	c.stats.submitted.Add(1)
	s.bumpRev(rev)

	req := &request{lang: lang, text: text, rev: rev, at: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.pending != nil {
		c.stats.coalesced.Add(1)
	}
	s.pending = req
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	// The timer goroutine, not the caller, waits on a full queue.
	s.timer = time.AfterFunc(c.Debounce(), func() { s.dispatch(seq) })
}

// SubmitBytes is Submit for a caller-owned buffer. The bytes are copied
// before returning, so the caller may reuse buf.
func (s *Session) SubmitBytes(lang token.Language, buf []byte, rev uint64) {
	s.Submit(lang, string(buf), rev)
}

// Flush dispatches the pending submission now instead of waiting for the
// quiet window. It may wait for room in the worker queue.
func (s *Session) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.dispatch(seq)
}

func (s *Session) bumpRev(rev uint64) {
	for {
		cur := s.nextRev.Load()
		if rev <= cur || s.nextRev.CompareAndSwap(cur, rev) {
			return
		}
	}
}

// dispatch moves the pending request to the ready slot. A timer from an
// older window finds seq changed and does nothing. If the session is already
// queued the worker will pick up the newer ready request.
func (s *Session) dispatch(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq || s.pending == nil {
		s.mu.Unlock()
		return
	}
	if s.ready != nil {
		s.c.stats.coalesced.Add(1)
	}
	s.ready = s.pending
	s.pending = nil
	if s.queued {
		s.mu.Unlock()
		return
	}
	s.queued = true
	s.mu.Unlock()

	s.c.enqueue(s)
}

func (s *Session) take() *request {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.ready
	s.ready = nil
	s.queued = false
	return req
}

// deliver hands res to subscribers unless a newer revision was already
// delivered.
func (s *Session) deliver(res Result) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	rev := res.Stream.Revision()
	if s.hasDelivered.Load() && rev <= s.lastDelivered.Load() {
		return false
	}
	s.lastDelivered.Store(rev)
	s.hasDelivered.Store(true)

	s.mu.Lock()
	subs := make([]func(token.Stream), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		s.safely(func() { fn(res.Stream) })
	}
	for _, fn := range s.c.resultCallbacks() {
		s.safely(func() { fn(res) })
	}
	return true
}

func (s *Session) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.c.logger.Error("result callback for session %s panicked: %v", s.id, r)
		}
	}()
	fn()
}

// stop cancels the quiet window and drops pending work.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.seq++
	s.pending = nil
	s.ready = nil
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Close drops pending work and detaches the session from its coordinator.
func (s *Session) Close() {
	s.stop()
	s.c.removeSession(s.id)
}
