// Package signal implements Signal[T], the fire-and-forget reactive
// primitive: unlike Element it holds no persistent value, only a batch of
// payloads fired since the last tick flush, and notifies once per tick
// regardless of how many times Fire was called.
package signal

import (
	"sync"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

// shrinkThreshold is the batch capacity past which the post-notify clear
// reallocates the backing slice instead of keeping it around, so one
// unusually large tick of signal traffic doesn't pin that memory for the
// life of the entity.
const shrinkThreshold = 10

// Signal batches payloads fired within a single tick and hands the batch
// to subscribers exactly once at flush time. The Signal itself is the
// single entry in the NotifQueue: Fire enqueues it (not its subscribers)
// at most once per tick, and its Notify fans the batch out to every
// subscriber before clearing it, so all subscribers see the same batch.
type Signal[T any] struct {
	mu     sync.Mutex
	batch  []T
	queued bool
	subs   subscriber.List
	queue  *notifyqueue.Queue
	disp   *subscriber.Handle
}

func New[T any]() *Signal[T] {
	s := &Signal[T]{}
	s.disp = subscriber.NewHandle(s)
	return s
}

// Fire appends payload to this tick's batch. The first Fire in a tick
// enqueues the Signal's dispatcher exactly once; subsequent Fires in the
// same tick just grow the batch. Firing before anyone has ever subscribed
// is a no-op: there is no queue to deliver through and nothing to retain
// the batch for.
func (s *Signal[T]) Fire(payload T) {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return
	}
	s.batch = append(s.batch, payload)
	firstThisTick := !s.queued
	if firstThisTick {
		s.queued = true
	}
	q := s.queue
	s.mu.Unlock()

	if firstThisTick {
		q.Enqueue(s.disp.Weak())
	}
}

// Peek returns the batch accumulated so far this tick without clearing
// it. The returned slice is only valid until the dispatcher's Notify
// clears the batch; callers (signal conduit subscriptions) consume it
// synchronously inside that same Notify.
func (s *Signal[T]) Peek() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch
}

// Notify implements subscriber.Subscriber for the dispatcher role: fan
// the batch out to every subscriber, then clear it for the next tick,
// shrinking the backing array if it grew past shrinkThreshold.
func (s *Signal[T]) Notify(state subscriber.StateReader, handler subscriber.EventHandler) {
	s.subs.NotifyAll(state, handler)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = false
	if cap(s.batch) > shrinkThreshold {
		s.batch = make([]T, 0, shrinkThreshold)
	} else {
		s.batch = s.batch[:0]
	}
}

// Subscribe and Unsubscribe mirror element.Element's semantics exactly:
// first subscribe binds the NotifQueue, later subscribes must agree on it.
func (s *Signal[T]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	s.mu.Lock()
	if s.queue == nil {
		s.queue = queue
	} else if s.queue != queue {
		s.mu.Unlock()
		return errMismatchedQueue
	}
	s.mu.Unlock()

	_, err := s.subs.Add(w)
	return err
}

func (s *Signal[T]) Unsubscribe(ptr uintptr) error {
	_, err := s.subs.Remove(ptr)
	return err
}

var errMismatchedQueue = mismatchedQueueError{}

type mismatchedQueueError struct{}

func (mismatchedQueueError) Error() string {
	return "signal: subscribe with mismatched NotifQueue: signal already bound to a different queue"
}

// Dispatch fans a batch of signal payloads out to a translation function
// producing wire Events, used by the signal conduit's per-connection
// subscriptions. Kept as a free function rather than a method so the
// conduit can supply the per-member encoding without this package knowing
// about wire.Event.
func Dispatch[T any](batch []T, emit func(T)) {
	for _, payload := range batch {
		emit(payload)
	}
}
