// Package wire defines the value universe, request/event grammar and the
// narrow codec/session boundaries the core talks to. Concrete transports,
// encodings and physics are external collaborators; this package only
// fixes the shapes they must agree on.
package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindVector3
	KindScalar
	KindInteger
	KindText
	KindObjectID
	KindArray
)

// ObjectID is the u64 a client uses to address a server-side entity.
type ObjectID uint64

// Vector3 is a 3-component double vector (position, velocity, ...).
type Vector3 struct{ X, Y, Z float64 }

// Value is the tagged union of every type that crosses the wire: 3-vectors,
// scalars, integers, text, object ids, arrays, and null. There is no bool
// or map kind.
type Value struct {
	kind    Kind
	vector  Vector3
	scalar  float64
	integer int64
	text    string
	object  ObjectID
	array   []Value
}

func Null() Value                  { return Value{kind: KindNull} }
func NewVector3(v Vector3) Value   { return Value{kind: KindVector3, vector: v} }
func NewScalar(f float64) Value    { return Value{kind: KindScalar, scalar: f} }
func NewInteger(i int64) Value     { return Value{kind: KindInteger, integer: i} }
func NewText(s string) Value       { return Value{kind: KindText, text: s} }
func NewObjectID(o ObjectID) Value { return Value{kind: KindObjectID, object: o} }
func NewArray(vs []Value) Value    { return Value{kind: KindArray, array: vs} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsVector3() (Vector3, bool)   { return v.vector, v.kind == KindVector3 }
func (v Value) AsScalar() (float64, bool)    { return v.scalar, v.kind == KindScalar }
func (v Value) AsInteger() (int64, bool)     { return v.integer, v.kind == KindInteger }
func (v Value) AsText() (string, bool)       { return v.text, v.kind == KindText }
func (v Value) AsObjectID() (ObjectID, bool) { return v.object, v.kind == KindObjectID }
func (v Value) AsArray() ([]Value, bool)     { return v.array, v.kind == KindArray }

// Equal implements value equality for Element[Value]/Signal[Value]
// dedupe comparisons — arrays compare element-wise.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindVector3:
		return v.vector == o.vector
	case KindScalar:
		return v.scalar == o.scalar
	case KindInteger:
		return v.integer == o.integer
	case KindText:
		return v.text == o.text
	case KindObjectID:
		return v.object == o.object
	case KindArray:
		if len(v.array) != len(o.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(o.array[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MapObjects returns a copy of v with every ObjectID leaf rewritten
// through f, recursing into arrays. The connection layer uses it to
// translate between the server's id space and each connection's own —
// clients never see a server-side id. f reporting false fails the whole
// translation (an argument naming an entity this connection has never
// been shown, or one already destroyed).
func (v Value) MapObjects(f func(ObjectID) (ObjectID, bool)) (Value, bool) {
	switch v.kind {
	case KindObjectID:
		o, ok := f(v.object)
		if !ok {
			return Value{}, false
		}
		return NewObjectID(o), true
	case KindArray:
		out := make([]Value, len(v.array))
		for i, e := range v.array {
			m, ok := e.MapObjects(f)
			if !ok {
				return Value{}, false
			}
			out[i] = m
		}
		return NewArray(out), true
	default:
		return v, true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindVector3:
		return fmt.Sprintf("(%g,%g,%g)", v.vector.X, v.vector.Y, v.vector.Z)
	case KindScalar:
		return fmt.Sprintf("%g", v.scalar)
	case KindInteger:
		return fmt.Sprintf("%d", v.integer)
	case KindText:
		return v.text
	case KindObjectID:
		return fmt.Sprintf("#%d", v.object)
	case KindArray:
		return fmt.Sprintf("%v", v.array)
	}
	return "?"
}

// Color is RGB encoded as "0x" plus six hex digits when it crosses the
// wire as text.
type Color struct{ R, G, B uint8 }

func (c Color) ToValue() Value {
	return NewText(fmt.Sprintf("0x%02X%02X%02X", c.R, c.G, c.B))
}

// Tuple2 is a plain generic pair. Only arity 2 is declared, and no
// conversion to or from Value arrays is defined for it.
type Tuple2[A, B any] struct {
	A A
	B B
}

// Scalar conversions. Every numeric primitive the codec boundary can see
// converts into Value through these.
func FromFloat32(f float32) Value { return NewScalar(float64(f)) }
func FromUint32(u uint32) Value   { return NewInteger(int64(u)) }
func FromUint64(u uint64) Value   { return NewInteger(int64(u)) }
func FromInt32(i int32) Value     { return NewInteger(int64(i)) }

func FromOption(v Value, present bool) Value {
	if !present {
		return Null()
	}
	return v
}

// NewUUID mints a random uuid string. Nothing in the module calls it;
// connection names and token ids call uuid.NewString directly.
func NewUUID() string { return uuid.NewString() }
