// Package conduit implements the composition layer between raw reactive
// state (element.Element, signal.Signal) and the wire-facing Object/Member
// model: each conduit variant is a small wrapper that can be nested
// around another conduit to add one behavior (caching, mapping, fallible
// conversion, rate limiting) without the inner conduit knowing about it.
package conduit

import (
	"fmt"

	"github.com/oddin-space/simcore/internal/wire"
)

// Conduit is the read/write seam a Member exposes to request handling.
// O is what Read produces, I is what Write accepts; for a read-only
// conduit I is typically wire.Value with Write always failing.
type Conduit[O, I any] interface {
	Read() (O, error)
	Write(v I) error
}

// ValueConduit is the shape a Member actually stores: every conduit
// nesting bottoms out at this boundary once MapOutput/MapInput/TryInto
// have done their job translating domain types to wire.Value.
type ValueConduit = Conduit[wire.Value, wire.Value]

var errNotWritable = fmt.Errorf("conduit: not writable")
var errNotReadable = fmt.Errorf("conduit: not readable")

// ROConduit adapts a read function into a Conduit whose Write always
// fails.
type ROConduit[O any] struct {
	read func() (O, error)
}

func NewRO[O any](read func() (O, error)) *ROConduit[O] {
	return &ROConduit[O]{read: read}
}

func (c *ROConduit[O]) Read() (O, error) { return c.read() }
func (c *ROConduit[O]) Write(O) error    { return errNotWritable }

// RWConduit adapts a get/set pair into a Conduit where O and I coincide,
// e.g. a settable scalar property.
type RWConduit[T any] struct {
	read  func() (T, error)
	write func(T) error
}

func NewRW[T any](read func() (T, error), write func(T) error) *RWConduit[T] {
	return &RWConduit[T]{read: read, write: write}
}

func (c *RWConduit[T]) Read() (T, error) { return c.read() }
func (c *RWConduit[T]) Write(v T) error  { return c.write(v) }

// ConstConduit always returns the same value and rejects every write —
// used for members fixed at entity construction (identifiers, static
// metadata) that still need to present the Conduit interface.
type ConstConduit[O any] struct {
	value O
}

func NewConst[O any](value O) *ConstConduit[O] { return &ConstConduit[O]{value: value} }

func (c *ConstConduit[O]) Read() (O, error) { return c.value, nil }
func (c *ConstConduit[O]) Write(O) error    { return errNotWritable }

// WriteOnlyConduit rejects every read — used for action-style members
// modeled through the plain Conduit interface rather than ActionConduit
// (kept for members that are a pure sink, e.g. a debug log line).
type WriteOnlyConduit[I any] struct {
	write func(I) error
}

func NewWriteOnly[I any](write func(I) error) *WriteOnlyConduit[I] {
	return &WriteOnlyConduit[I]{write: write}
}

func (c *WriteOnlyConduit[I]) Read() (I, error) {
	var zero I
	return zero, errNotReadable
}
func (c *WriteOnlyConduit[I]) Write(v I) error { return c.write(v) }
