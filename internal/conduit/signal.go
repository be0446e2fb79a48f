package conduit

import (
	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/signal"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// SignalConduit is a Member's signal-kind binding: it carries no
// persistent value (Read always fails) and is never settable from a
// client; firing happens server-side through the Signal it wraps.
// Each subscription reads the signal's tick batch at flush time and emits
// one wire.Event per payload fired since the last flush.
type SignalConduit[T any] struct {
	Obj     wire.ObjectID
	Member  string
	sig     *signal.Signal[T]
	toValue func(T) wire.Value
}

func NewSignal[T any](obj wire.ObjectID, member string, sig *signal.Signal[T], toValue func(T) wire.Value) *SignalConduit[T] {
	return &SignalConduit[T]{Obj: obj, Member: member, sig: sig, toValue: toValue}
}

func (c *SignalConduit[T]) Read() (wire.Value, error) {
	return wire.Value{}, errNotReadable
}

func (c *SignalConduit[T]) Write(wire.Value) error { return errNotWritable }

func (c *SignalConduit[T]) Subscribe(conn subscriber.ConnectionKey, handler subscriber.EventHandler, queue *notifyqueue.Queue) (*subscriber.Handle, error) {
	sub := &signalSubscription[T]{conn: conn, obj: c.Obj, member: c.Member, sig: c.sig, toValue: c.toValue}
	h := subscriber.NewHandle(sub)
	if err := c.sig.Subscribe(h.Weak(), queue); err != nil {
		return nil, err
	}
	return h, nil
}

func (c *SignalConduit[T]) Unsubscribe(h *subscriber.Handle) error {
	if err := c.sig.Unsubscribe(h.Weak().ThinPtr()); err != nil {
		return err
	}
	h.Release()
	return nil
}

type signalSubscription[T any] struct {
	conn    subscriber.ConnectionKey
	obj     wire.ObjectID
	member  string
	sig     *signal.Signal[T]
	toValue func(T) wire.Value
}

func (s *signalSubscription[T]) Notify(state subscriber.StateReader, handler subscriber.EventHandler) {
	batch := s.sig.Peek()
	signal.Dispatch(batch, func(payload T) {
		handler.Event(s.conn, wire.NewSignalEvent(s.obj, s.member, s.toValue(payload)))
	})
}
