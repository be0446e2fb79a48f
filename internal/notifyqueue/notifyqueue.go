// Package notifyqueue implements the double-buffered FIFO of weak
// subscriber references that Elements and Signals enqueue into during a
// tick, drained once per tick by the simulation loop.
package notifyqueue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/oddin-space/simcore/internal/subscriber"
)

// Queue holds two buffers: the one currently being appended to by
// mutations happening this tick, and the one being drained by the
// previous tick's Flush call. SwapBuffer exchanges them; a mutation that
// races a Flush always lands in the fresh buffer, never the one being
// drained, so enqueue and drain never contend for the same slice.
type Queue struct {
	mu       sync.Mutex
	active   []subscriber.Weak
	draining []subscriber.Weak

	depthGauge prometheus.Gauge
}

// New builds an empty Queue. depthGauge may be nil in tests; production
// callers pass the notifqueue_depth gauge from internal/metrics so queue
// backpressure is observable.
func New(depthGauge prometheus.Gauge) *Queue {
	return &Queue{depthGauge: depthGauge}
}

// Enqueue appends a weak subscriber reference to the active buffer.
// Duplicate entries are allowed: a subscriber whose Element mutates
// twice in one tick is simply notified once per enqueue, and NotifyAll's
// own subscriber.List already dedupes the underlying subscription.
func (q *Queue) Enqueue(w subscriber.Weak) {
	q.mu.Lock()
	q.active = append(q.active, w)
	depth := len(q.active)
	q.mu.Unlock()

	if q.depthGauge != nil {
		q.depthGauge.Set(float64(depth))
	}
}

// SwapBuffer exchanges the active and draining buffers and returns the
// buffer now ready to drain, clearing the active buffer for the next
// tick's enqueues. Must be called exactly once per tick boundary.
func (q *Queue) SwapBuffer() []subscriber.Weak {
	q.mu.Lock()
	q.active, q.draining = q.draining[:0], q.active
	ready := q.draining
	q.mu.Unlock()

	if q.depthGauge != nil {
		q.depthGauge.Set(0)
	}
	return ready
}

// Flush swaps buffers and notifies every still-live weak subscriber in
// the drained buffer. A dead weak here means a subscriber was dropped
// without unsubscribing; that is a bug upstream, logged rather than
// crashed on.
func (q *Queue) Flush(state subscriber.StateReader, handler subscriber.EventHandler) {
	ready := q.SwapBuffer()
	for _, w := range ready {
		sub, ok := w.Upgrade()
		if !ok {
			log.Error().Msg("dead subscriber in notification queue: dropped without unsubscribing")
			continue
		}
		sub.Notify(state, handler)
	}
}

// Len reports the current active buffer's depth, for tests and metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}
