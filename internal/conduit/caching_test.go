package conduit

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// rwSource is a minimal Subscribable Conduit[int, int] standing in for
// ElementConduit in tests that don't need a real element.Element.
type rwSource struct {
	value int
	subs  subscriber.List
}

func (s *rwSource) Read() (int, error) { return s.value, nil }
func (s *rwSource) Write(v int) error  { s.value = v; return nil }

func (s *rwSource) Subscribe(w subscriber.Weak, _ *notifyqueue.Queue) error {
	_, err := s.subs.Add(w)
	return err
}

func (s *rwSource) Unsubscribe(ptr uintptr) error {
	_, err := s.subs.Remove(ptr)
	return err
}

func (s *rwSource) notify() {
	s.subs.NotifyAll(nil, nil)
}

type eventCountingSub struct {
	events int
}

func (e *eventCountingSub) Notify(subscriber.StateReader, subscriber.EventHandler) { e.events++ }

func TestCachingConduitSubscribesLazily(t *testing.T) {
	src := &rwSource{value: 1}
	c := NewCachingComparable[int](src)
	q := notifyqueue.New(nil)

	if got := src.subs.Len(); got != 0 {
		t.Fatalf("source subscriber count before any external subscribe = %d, want 0", got)
	}

	sub := &eventCountingSub{}
	h := subscriber.NewHandle(sub)
	if err := c.Subscribe(h.Weak(), q); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := src.subs.Len(); got != 1 {
		t.Fatalf("source subscriber count after first external subscribe = %d, want 1", got)
	}
}

func TestCachingConduitUnsubscribesOnLastLeave(t *testing.T) {
	src := &rwSource{value: 1}
	c := NewCachingComparable[int](src)
	q := notifyqueue.New(nil)

	h := subscriber.NewHandle(&eventCountingSub{})
	c.Subscribe(h.Weak(), q)
	if err := c.Unsubscribe(h.Weak().ThinPtr()); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if got := src.subs.Len(); got != 0 {
		t.Fatalf("source subscriber count after last unsubscribe = %d, want 0", got)
	}
}

func TestCachingConduitDedupesUnchangedNotify(t *testing.T) {
	src := &rwSource{value: 1}
	c := NewCachingComparable[int](src)
	q := notifyqueue.New(nil)

	sub := &eventCountingSub{}
	h := subscriber.NewHandle(sub)
	c.Subscribe(h.Weak(), q)

	// Prime the cache via a Read, then Notify without the source having
	// actually changed value: this must not fan out.
	c.Read()
	c.Notify(nil, nil)
	if sub.events != 0 {
		t.Fatalf("events after unchanged Notify = %d, want 0", sub.events)
	}

	src.value = 2
	c.Notify(nil, nil)
	if sub.events != 1 {
		t.Fatalf("events after changing Notify = %d, want 1", sub.events)
	}

	// A second Notify for the same value must not fan out again.
	c.Notify(nil, nil)
	if sub.events != 1 {
		t.Fatalf("events after repeated Notify with same value = %d, want 1", sub.events)
	}
}

func TestCachingConduitReadCachesAfterNotify(t *testing.T) {
	src := &rwSource{value: 1}
	c := NewCachingComparable[int](src)

	if v, _ := c.Read(); v != 1 {
		t.Fatalf("Read() = %d, want 1", v)
	}

	src.value = 2
	c.Notify(nil, nil)
	if v, _ := c.Read(); v != 2 {
		t.Fatalf("Read() after Notify = %d, want 2 (cached)", v)
	}
}
