package conduit

import (
	"fmt"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

// MapOutputConduit wraps an inner Conduit[O, I] and transforms every
// read result through f before returning it, leaving writes untouched.
// Used to project a domain type (Vector3, an enum) onto wire.Value.
type MapOutputConduit[O, O2, I any] struct {
	inner Conduit[O, I]
	f     func(O) (O2, error)
}

func NewMapOutput[O, O2, I any](inner Conduit[O, I], f func(O) (O2, error)) *MapOutputConduit[O, O2, I] {
	return &MapOutputConduit[O, O2, I]{inner: inner, f: f}
}

func (c *MapOutputConduit[O, O2, I]) Read() (O2, error) {
	v, err := c.inner.Read()
	if err != nil {
		var zero O2
		return zero, err
	}
	return c.f(v)
}

func (c *MapOutputConduit[O, O2, I]) Write(v I) error { return c.inner.Write(v) }

// Subscribe/Unsubscribe delegate to the inner conduit when it exposes a
// subscribable source, so a MapOutput wrapper never has to know whether
// it sits directly above an ElementConduit or above another wrapper.
func (c *MapOutputConduit[O, O2, I]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	s, ok := any(c.inner).(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: map-output source not subscribable")
	}
	return s.Subscribe(w, queue)
}

func (c *MapOutputConduit[O, O2, I]) Unsubscribe(ptr uintptr) error {
	s, ok := any(c.inner).(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: map-output source not subscribable")
	}
	return s.Unsubscribe(ptr)
}

// MapInputConduit wraps an inner Conduit[O, I] and transforms every
// incoming write value through f before delegating, leaving reads
// untouched. Used to accept wire.Value and convert to a domain type
// before the inner conduit ever sees it.
type MapInputConduit[O, I, I2 any] struct {
	inner Conduit[O, I]
	f     func(I2) (I, error)
}

func NewMapInput[O, I, I2 any](inner Conduit[O, I], f func(I2) (I, error)) *MapInputConduit[O, I, I2] {
	return &MapInputConduit[O, I, I2]{inner: inner, f: f}
}

func (c *MapInputConduit[O, I, I2]) Read() (O, error) { return c.inner.Read() }

func (c *MapInputConduit[O, I, I2]) Write(v I2) error {
	converted, err := c.f(v)
	if err != nil {
		return err
	}
	return c.inner.Write(converted)
}

func (c *MapInputConduit[O, I, I2]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	s, ok := any(c.inner).(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: map-input source not subscribable")
	}
	return s.Subscribe(w, queue)
}

func (c *MapInputConduit[O, I, I2]) Unsubscribe(ptr uintptr) error {
	s, ok := any(c.inner).(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: map-input source not subscribable")
	}
	return s.Unsubscribe(ptr)
}

// TryIntoConduit wraps an inner Conduit[O, I] whose I is a domain type,
// presenting it as Conduit[O, I2] where the I2 -> I conversion can fail —
// the seam that turns a malformed wire.Value into a BadRequest instead of
// panicking deep inside a setter.
type TryIntoConduit[O, I, I2 any] struct {
	inner   Conduit[O, I]
	tryInto func(I2) (I, error)
}

func NewTryInto[O, I, I2 any](inner Conduit[O, I], tryInto func(I2) (I, error)) *TryIntoConduit[O, I, I2] {
	return &TryIntoConduit[O, I, I2]{inner: inner, tryInto: tryInto}
}

func (c *TryIntoConduit[O, I, I2]) Read() (O, error) { return c.inner.Read() }

func (c *TryIntoConduit[O, I, I2]) Write(v I2) error {
	converted, err := c.tryInto(v)
	if err != nil {
		return err
	}
	return c.inner.Write(converted)
}

func (c *TryIntoConduit[O, I, I2]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	s, ok := any(c.inner).(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: try-into source not subscribable")
	}
	return s.Subscribe(w, queue)
}

func (c *TryIntoConduit[O, I, I2]) Unsubscribe(ptr uintptr) error {
	s, ok := any(c.inner).(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: try-into source not subscribable")
	}
	return s.Unsubscribe(ptr)
}
