package conduit

import (
	"github.com/oddin-space/simcore/internal/element"
	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

// ElementConduit is the base of every property conduit chain: a direct
// Conduit view of an element.Element[T], read-write if settable, read-only
// otherwise. Every wrapper above it (MapOutput, MapInput, TryInto,
// Caching) delegates Subscribe/Unsubscribe down to this layer.
type ElementConduit[T any] struct {
	el       *element.Element[T]
	settable bool
}

func NewElementConduit[T any](el *element.Element[T], settable bool) *ElementConduit[T] {
	return &ElementConduit[T]{el: el, settable: settable}
}

func (c *ElementConduit[T]) Read() (T, error) { return c.el.Get(), nil }

func (c *ElementConduit[T]) Write(v T) error {
	if !c.settable {
		return errNotWritable
	}
	c.el.Set(v)
	return nil
}

func (c *ElementConduit[T]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	return c.el.Subscribe(w, queue)
}

func (c *ElementConduit[T]) Unsubscribe(ptr uintptr) error {
	return c.el.Unsubscribe(ptr)
}
