package notify

import (
	"sync"
	"sync/atomic"
	"testing"
)

type event struct {
	keys []string
	n    int
}

func keyed(opts ...Option[string, event]) *Notifier[string, event] {
	opts = append(opts, WithKeys[string, event](func(e event) []string { return e.keys }))
	return New(opts...)
}

func TestNotifier_Subscribe(t *testing.T) {
	n := keyed()
	defer n.Close()

	var received atomic.Int32
	sub := n.Subscribe(func(e event) {
		received.Add(int32(e.n))
	})

	n.Notify(event{n: 1})
	if received.Load() != 1 {
		t.Fatalf("received = %d, want 1", received.Load())
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	n.Notify(event{n: 1})
	if received.Load() != 1 {
		t.Error("unsubscribed observer received notification")
	}
	if n.Len() != 0 {
		t.Errorf("Len() = %d, want 0", n.Len())
	}
}

func TestNotifier_SubscribeKey(t *testing.T) {
	n := keyed()
	defer n.Close()

	var goEvents, rustEvents atomic.Int32
	n.SubscribeKey("go", func(event) { goEvents.Add(1) })
	n.SubscribeKey("rust", func(event) { rustEvents.Add(1) })

	n.Notify(event{keys: []string{"go"}})
	n.Notify(event{keys: []string{"go", "rust"}})
	n.Notify(event{keys: []string{"c"}})

	if goEvents.Load() != 2 {
		t.Errorf("go observer received %d events, want 2", goEvents.Load())
	}
	if rustEvents.Load() != 1 {
		t.Errorf("rust observer received %d events, want 1", rustEvents.Load())
	}
}

func TestNotifier_DuplicateKeysDeliverOnce(t *testing.T) {
	n := keyed()
	defer n.Close()

	var count atomic.Int32
	n.SubscribeKey("go", func(event) { count.Add(1) })

	n.Notify(event{keys: []string{"go", "go"}})
	if count.Load() != 1 {
		t.Errorf("observer called %d times, want 1", count.Load())
	}
}

func TestNotifier_WithoutKeysOnlyGlobal(t *testing.T) {
	n := New[string, event]()
	defer n.Close()

	var global, scoped atomic.Int32
	n.Subscribe(func(event) { global.Add(1) })
	n.SubscribeKey("go", func(event) { scoped.Add(1) })

	n.Notify(event{keys: []string{"go"}})
	if global.Load() != 1 || scoped.Load() != 0 {
		t.Errorf("global=%d scoped=%d, want 1 and 0", global.Load(), scoped.Load())
	}
}

func TestNotifier_AsyncPreservesOrder(t *testing.T) {
	n := keyed(WithAsync[string, event](16))

	var mu sync.Mutex
	var got []int
	n.Subscribe(func(e event) {
		mu.Lock()
		got = append(got, e.n)
		mu.Unlock()
	})

	for i := range 50 {
		n.Notify(event{n: i})
	}
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("delivered %d events, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("event %d = %d, out of order", i, v)
		}
	}
}

func TestNotifier_NotifyAfterClose(t *testing.T) {
	n := keyed(WithAsync[string, event](4))

	var count atomic.Int32
	n.Subscribe(func(event) { count.Add(1) })

	n.Close()
	n.Close()
	n.Notify(event{n: 1})

	if count.Load() != 0 {
		t.Error("event delivered after Close")
	}
}
