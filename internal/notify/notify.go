// Package notify provides typed change notification.
//
// A Notifier implements the observer pattern: components subscribe either to
// every event or to the events of one key, and receive callbacks when events
// are published. Delivery is synchronous by default; WithAsync moves it onto
// a single goroutine that preserves publication order.
package notify

import (
	"sync"
)

// Observer is called for each delivered event.
type Observer[E any] func(event E)

// KeyFunc returns the keys an event is published under.
type KeyFunc[K comparable, E any] func(event E) []K

// Subscription represents an active observer subscription.
type Subscription struct {
	id     uint64
	cancel func(id uint64)
	once   sync.Once
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(func() { s.cancel(s.id) })
}

// Notifier manages subscriptions for events of type E keyed by K.
type Notifier[K comparable, E any] struct {
	mu sync.RWMutex

	keys KeyFunc[K, E]

	// Global observers that receive all events
	globalObservers map[uint64]Observer[E]

	// Key-specific observers
	keyObservers map[K]map[uint64]Observer[E]

	nextID uint64

	async  bool
	buffer chan E
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option[K comparable, E any] func(*Notifier[K, E])

// WithAsync enables asynchronous delivery through a buffer of bufferSize
// events. Publishing blocks while the buffer is full.
func WithAsync[K comparable, E any](bufferSize int) Option[K, E] {
	return func(n *Notifier[K, E]) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan E, bufferSize)
		}
	}
}

// WithKeys sets how events map to keys. Without it only global observers
// receive events.
func WithKeys[K comparable, E any](fn KeyFunc[K, E]) Option[K, E] {
	return func(n *Notifier[K, E]) {
		n.keys = fn
	}
}

// New creates a Notifier.
func New[K comparable, E any](opts ...Option[K, E]) *Notifier[K, E] {
	n := &Notifier[K, E]{
		globalObservers: make(map[uint64]Observer[E]),
		keyObservers:    make(map[K]map[uint64]Observer[E]),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}
	return n
}

// Subscribe registers an observer for all events.
func (n *Notifier[K, E]) Subscribe(observer Observer[E]) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.globalObservers[id] = observer

	return &Subscription{id: id, cancel: n.unsubscribe}
}

// SubscribeKey registers an observer for events published under key.
func (n *Notifier[K, E]) SubscribeKey(key K, observer Observer[E]) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.keyObservers[key] == nil {
		n.keyObservers[key] = make(map[uint64]Observer[E])
	}
	n.keyObservers[key][id] = observer

	return &Subscription{id: id, cancel: n.unsubscribe}
}

// Notify publishes an event. Events published after Close are dropped.
func (n *Notifier[K, E]) Notify(event E) {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return
	}

	if n.async {
		select {
		case n.buffer <- event:
		case <-n.done:
		}
		return
	}

	n.deliver(event)
}

// Close shuts down the notifier, delivering buffered events first. It is
// safe to call Close multiple times.
func (n *Notifier[K, E]) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

// Len returns the number of active subscriptions.
func (n *Notifier[K, E]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := len(n.globalObservers)
	for _, obs := range n.keyObservers {
		count += len(obs)
	}
	return count
}

func (n *Notifier[K, E]) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.globalObservers, id)
	for key, observers := range n.keyObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.keyObservers, key)
		}
	}
}

// deliver sends an event to all matching observers, each at most once.
func (n *Notifier[K, E]) deliver(event E) {
	n.mu.RLock()

	observers := make([]Observer[E], 0, len(n.globalObservers))
	seen := make(map[uint64]bool)
	for id, obs := range n.globalObservers {
		seen[id] = true
		observers = append(observers, obs)
	}
	if n.keys != nil {
		for _, key := range n.keys(event) {
			for id, obs := range n.keyObservers[key] {
				if !seen[id] {
					seen[id] = true
					observers = append(observers, obs)
				}
			}
		}
	}

	n.mu.RUnlock()

	// Call observers outside the lock
	for _, obs := range observers {
		obs(event)
	}
}

func (n *Notifier[K, E]) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case event := <-n.buffer:
			n.deliver(event)
		case <-n.done:
			// Drain remaining buffered events
			for {
				select {
				case event := <-n.buffer:
					n.deliver(event)
				default:
					return
				}
			}
		}
	}
}
