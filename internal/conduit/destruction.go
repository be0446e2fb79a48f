package conduit

import (
	"fmt"
	"sync/atomic"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// DestructionConduit is the per-entity binding a connection subscribes to
// with a subscribe request that names no member. It fires
// exactly once, when the entity is removed, and is deferred through the
// NotifQueue like every other signal: Fire enqueues the conduit's own
// dispatcher, and delivery happens at the tick's flush, after all
// mutations of that tick have completed.
type DestructionConduit struct {
	Obj   wire.ObjectID
	fired atomic.Bool
	disp  *subscriber.Handle
	subs  subscriber.List
}

func NewDestruction(obj wire.ObjectID) *DestructionConduit {
	c := &DestructionConduit{Obj: obj}
	c.disp = subscriber.NewHandle(c)
	return c
}

// Subscribe registers conn for the destroyed event. Subscribing after
// the entity is already gone is refused: only connections subscribed at
// the moment of destruction hear about it.
func (c *DestructionConduit) Subscribe(conn subscriber.ConnectionKey, handler subscriber.EventHandler) (*subscriber.Handle, error) {
	if c.fired.Load() {
		return nil, fmt.Errorf("conduit: object %d already destroyed", c.Obj)
	}
	sub := &destructionSubscription{conn: conn, obj: c.Obj}
	h := subscriber.NewHandle(sub)
	if _, err := c.subs.Add(h.Weak()); err != nil {
		return nil, err
	}
	return h, nil
}

func (c *DestructionConduit) Unsubscribe(h *subscriber.Handle) error {
	if _, err := c.subs.Remove(h.Weak().ThinPtr()); err != nil {
		return err
	}
	h.Release()
	return nil
}

// Fire schedules the destroyed notification, exactly once over the
// conduit's lifetime; later calls are no-ops. Subscribers hear about it
// at the next queue flush.
func (c *DestructionConduit) Fire(queue *notifyqueue.Queue) {
	if !c.fired.CompareAndSwap(false, true) {
		return
	}
	queue.Enqueue(c.disp.Weak())
}

// Notify implements subscriber.Subscriber for the dispatcher role,
// fanning the destroyed event out to every subscribed connection.
func (c *DestructionConduit) Notify(state subscriber.StateReader, handler subscriber.EventHandler) {
	c.subs.NotifyAll(state, handler)
}

type destructionSubscription struct {
	conn subscriber.ConnectionKey
	obj  wire.ObjectID
}

func (s *destructionSubscription) Notify(state subscriber.StateReader, handler subscriber.EventHandler) {
	handler.Event(s.conn, wire.NewDestroyedEvent(s.obj))
}
