// Package simstate owns the live registry of Objects and the NotifQueue
// they all share, and dispatches decoded wire.Requests against that
// registry on behalf of the connection layer.
package simstate

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/object"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// Recorder is the narrow slice of metrics simstate touches directly —
// implemented by metrics.Collector so this package never imports the
// Prometheus client itself.
type Recorder interface {
	ObjectAdded()
	ObjectRemoved()
	RequestDispatched(verb wire.Verb)
	RequestFailed(verb wire.Verb, kind wire.ErrorKind)
}

// State owns every live Object, keyed by the ObjectID it assigned at
// construction, plus the NotifQueue every Element/Signal beneath those
// objects enqueues into.
type State struct {
	queue *notifyqueue.Queue

	mu      sync.RWMutex
	objects map[wire.ObjectID]*object.Object
	nextID  uint64

	metrics Recorder
}

func NewState(queue *notifyqueue.Queue, rec Recorder) *State {
	return &State{
		queue:   queue,
		objects: make(map[wire.ObjectID]*object.Object),
		nextID:  1,
		metrics: rec,
	}
}

func (s *State) Queue() *notifyqueue.Queue { return s.queue }

// AddObject mints a fresh ObjectID and runs build against it to produce
// the Object to register. Identifier assignment is State's job: build
// never gets to pick its own ID.
func (s *State) AddObject(build func(wire.ObjectID) *object.Object) *object.Object {
	s.mu.Lock()
	newID := wire.ObjectID(s.nextID)
	s.nextID++
	obj := build(newID)
	s.objects[newID] = obj
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObjectAdded()
	}
	return obj
}

func (s *State) Object(id wire.ObjectID) (*object.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	return o, ok
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Remove evicts id from the registry and fires its destruction conduit
// into the NotifQueue; subscribed connections hear about it at this
// tick's flush, ordered after the tick's mutations like every other
// notification.
func (s *State) Remove(id wire.ObjectID) {
	s.mu.Lock()
	obj, ok := s.objects[id]
	if ok {
		delete(s.objects, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	obj.Destruction().Fire(s.queue)
	if s.metrics != nil {
		s.metrics.ObjectRemoved()
	}
}

// Flush drains the shared NotifQueue, delivering every change queued this
// tick to its subscribers. Called once per tick by the server loop after
// game logic has run.
func (s *State) Flush(handler subscriber.EventHandler) {
	s.queue.Flush(s, handler)
}

func (s *State) logUnknownObject(id wire.ObjectID) {
	log.Debug().Uint64("object", uint64(id)).Msg("request against unknown object")
}
