// Package subscriber defines the weak-held notification target used
// throughout the core, and the thin-pointer identity scheme used to
// compare subscribers for equality without ever upgrading a Weak.
package subscriber

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/oddin-space/simcore/internal/wire"
)

// EventHandler is the narrow sink a Subscriber's Notify call writes
// outbound Events through. Implemented by the connection/transport layer.
type EventHandler interface {
	Event(conn ConnectionKey, ev wire.Event)
}

// ConnectionKey identifies one connection without this package needing to
// import the connection package (which in turn depends on conduits built
// from this one) — breaks what would otherwise be an import cycle.
type ConnectionKey struct {
	idx uint32
	gen uint32
}

func NewConnectionKey(idx, gen uint32) ConnectionKey { return ConnectionKey{idx: idx, gen: gen} }
func (c ConnectionKey) IsNull() bool                 { return c.gen == 0 }
func (c ConnectionKey) Raw() (uint32, uint32)        { return c.idx, c.gen }

// StateReader is the subset of simstate.State a Subscriber's Notify needs.
// Declared here (rather than importing simstate) to keep the dependency
// graph leaf-to-root: simstate depends on subscriber, not the reverse.
type StateReader interface{}

// Subscriber is anything that can be notified at tick end. Signals,
// CachingConduit, DestructionConduit and the per-connection subscription
// records of the conduit package implement it; Elements do not.
type Subscriber interface {
	Notify(state StateReader, handler EventHandler)
}

// Handle is a strong reference a subscriber-owner keeps alive; Weak is
// derived from it and is what actually gets stored in subscriber lists.
// Go has no native weak pointer, so dropping is modeled explicitly:
// owners must call Release when they stop using a subscriber, after
// which every derived Weak fails to upgrade.
type Handle struct {
	sub     Subscriber
	dropped atomic.Bool
}

func NewHandle(s Subscriber) *Handle { return &Handle{sub: s} }

// Release marks the handle dropped; any Weak derived from it will fail to
// upgrade from this point on.
func (h *Handle) Release() { h.dropped.Store(true) }

// Weak is a non-owning reference plus the thin pointer used for identity.
type Weak struct {
	ptr uintptr
	h   *Handle
}

func (h *Handle) Weak() Weak {
	return Weak{ptr: uintptr(unsafe.Pointer(h)), h: h}
}

// ThinPtr returns the comparison key used by subscriber lists. Comparing
// interface values for identity is unreliable once the same subscriber
// is held behind different interface types; comparing by the handle's
// own address sidesteps that entirely and never requires an upgrade.
func (w Weak) ThinPtr() uintptr { return w.ptr }

// Upgrade returns the live Subscriber, or ok=false if the owner already
// released its Handle.
func (w Weak) Upgrade() (Subscriber, bool) {
	if w.h == nil || w.h.dropped.Load() {
		return nil, false
	}
	return w.h.sub, true
}

// Subscription is the opaque, connection-owned record of one live
// subscription: the Handle keeping the subscriber alive, plus the
// Finalize that unsubscribes it from whatever conduit it was registered
// against and releases the Handle. Connection teardown calls Finalize on
// every remaining Subscription without ever knowing which conduit is on
// the other end.
type Subscription struct {
	Handle   *Handle
	Finalize func() error
}

// List is the subscriber list embedded in Elements, Signals and conduits:
// a small vector of (thin pointer, Weak) pairs guarded by a mutex, with
// swap-remove semantics on unsubscribe.
type List struct {
	mu      sync.Mutex
	entries []entry
}

type entry struct {
	ptr uintptr
	w   Weak
}

// Report describes the state of the list immediately after an operation,
// used by callers (CachingConduit in particular) to decide whether to
// propagate subscribe/unsubscribe to an inner conduit.
type Report struct {
	WasEmpty   bool
	IsNowEmpty bool
}

var ErrDuplicateSubscriber = fmt.Errorf("subscriber already in list")
var ErrNotSubscribed = fmt.Errorf("subscriber not in list")

func (l *List) Add(w Weak) (Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasEmpty := len(l.entries) == 0
	for _, e := range l.entries {
		if e.ptr == w.ptr {
			return Report{}, ErrDuplicateSubscriber
		}
	}
	l.entries = append(l.entries, entry{ptr: w.ptr, w: w})
	return Report{WasEmpty: wasEmpty}, nil
}

func (l *List) Remove(ptr uintptr) (Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.ptr == ptr {
			last := len(l.entries) - 1
			l.entries[i] = l.entries[last]
			l.entries = l.entries[:last]
			return Report{IsNowEmpty: len(l.entries) == 0}, nil
		}
	}
	return Report{}, ErrNotSubscribed
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot copies out the current weak subscribers for enqueueing into a
// NotifQueue or for direct fan-out (CachingConduit, Signal).
func (l *List) Snapshot() []Weak {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Weak, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.w
	}
	return out
}

// NotifyAll upgrades and notifies every live subscriber in the list,
// logging (not panicking on) any that were dropped without unsubscribing —
// every subscriber must unsubscribe before being dropped; encountering a
// dead one here means that invariant was violated somewhere.
func (l *List) NotifyAll(state StateReader, handler EventHandler) {
	for _, w := range l.Snapshot() {
		sub, ok := w.Upgrade()
		if !ok {
			log.Error().Msg("dead subscriber encountered during notify: subscriber dropped without unsubscribing")
			continue
		}
		sub.Notify(state, handler)
	}
}
