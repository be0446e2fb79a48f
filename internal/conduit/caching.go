package conduit

import (
	"fmt"
	"sync"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

// CacheRecorder observes cache effectiveness across CachingConduits;
// satisfied by metrics.Collector.
type CacheRecorder interface {
	CacheHit()
	CacheMiss()
}

// CachingConduit memoizes an inner conduit's last-read value and only
// recomputes it when the inner source actually notifies a change,
// instead of re-running a potentially expensive read (a cross-entity
// lookup, a derived computation) on every request. It subscribes to its
// source lazily, on the first external subscriber, and unsubscribes when
// the last one leaves.
//
// Notify is also the sole place dedup against a *previously sent* value
// happens: the element below may enqueue a notification without the
// value actually having changed by the time Notify runs (two sets
// coalesce onto one tick), and this is where that coalescing becomes
// "send nothing" instead of "send the same value twice".
type CachingConduit[O any] struct {
	inner Conduit[O, O]
	equal func(a, b O) bool
	rec   CacheRecorder

	mu     sync.RWMutex
	cached O
	valid  bool

	subs   subscriber.List
	handle *subscriber.Handle
}

// NewCaching wraps inner with dedup driven by equal, which must not be
// nil; for a comparable O, NewCachingComparable supplies ==.
func NewCaching[O any](inner Conduit[O, O], equal func(a, b O) bool) *CachingConduit[O] {
	return &CachingConduit[O]{inner: inner, equal: equal}
}

// NewCachingComparable is NewCaching for a comparable O, using == as the
// change-detection predicate — the common case for scalar and struct
// property chains such as wire.Vector3. wire.Value is not comparable; its
// chains use NewCaching with wire.Value.Equal.
func NewCachingComparable[O comparable](inner Conduit[O, O]) *CachingConduit[O] {
	return NewCaching[O](inner, func(a, b O) bool { return a == b })
}

// Instrument routes this conduit's cache hit/miss counts to rec and
// returns the conduit for chaining during member construction.
func (c *CachingConduit[O]) Instrument(rec CacheRecorder) *CachingConduit[O] {
	c.rec = rec
	return c
}

func (c *CachingConduit[O]) Read() (O, error) {
	c.mu.RLock()
	if c.valid {
		v := c.cached
		c.mu.RUnlock()
		if c.rec != nil {
			c.rec.CacheHit()
		}
		return v, nil
	}
	c.mu.RUnlock()
	if c.rec != nil {
		c.rec.CacheMiss()
	}
	return c.refresh()
}

func (c *CachingConduit[O]) refresh() (O, error) {
	v, err := c.inner.Read()
	if err != nil {
		var zero O
		return zero, err
	}
	c.mu.Lock()
	c.cached = v
	c.valid = true
	c.mu.Unlock()
	return v, nil
}

func (c *CachingConduit[O]) Write(v O) error { return c.inner.Write(v) }

// Notify implements subscriber.Subscriber: CachingConduit subscribes to
// its own source as a single shared listener. It re-reads the source,
// and only overwrites the cache and fans the notification out to its own
// subscribers if the freshly read value differs from the one already
// cached — the dedup point that guarantees a subscribed connection sees
// at most one update per property per tick, and none at all when a
// notification fires without the value actually changing.
func (c *CachingConduit[O]) Notify(state subscriber.StateReader, handler subscriber.EventHandler) {
	v, err := c.inner.Read()
	if err != nil {
		return
	}

	c.mu.Lock()
	unchanged := c.valid && c.equal(c.cached, v)
	c.cached = v
	c.valid = true
	c.mu.Unlock()

	if unchanged {
		return
	}
	c.subs.NotifyAll(state, handler)
}

func (c *CachingConduit[O]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	report, err := c.subs.Add(w)
	if err != nil {
		return err
	}
	if report.WasEmpty {
		base, ok := c.inner.(Subscribable)
		if !ok {
			return fmt.Errorf("conduit: caching conduit source not subscribable")
		}
		if c.handle == nil {
			c.handle = subscriber.NewHandle(c)
		}
		if err := base.Subscribe(c.handle.Weak(), queue); err != nil {
			return err
		}
	}
	return nil
}

func (c *CachingConduit[O]) Unsubscribe(ptr uintptr) error {
	report, err := c.subs.Remove(ptr)
	if err != nil {
		return err
	}
	if report.IsNowEmpty && c.handle != nil {
		if base, ok := c.inner.(Subscribable); ok {
			_ = base.Unsubscribe(c.handle.Weak().ThinPtr())
		}
		c.handle.Release()
		c.handle = nil
	}
	return nil
}
