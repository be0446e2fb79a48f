// Package id implements the two id shapes the rest of the core is built
// on: a typed slotmap key (TypedKey), and the entity/object identifiers
// built from it (Id[T], GenericID).
package id

import (
	"fmt"
	"reflect"
	"sync"
)

// TypedKey is a generation-stamped slotmap key. The zero value is null.
type TypedKey struct {
	index uint32
	gen   uint32
}

// Null returns the always-invalid key.
func Null() TypedKey { return TypedKey{} }

// IsNull reports whether k was ever allocated by a Slab.
func (k TypedKey) IsNull() bool { return k.gen == 0 }

// Slab is a generation-keyed slotmap: removing an entry frees its slot
// for reuse, and the generation stamp keeps stale keys from resolving to
// whatever moved in afterward.
type Slab[T any] struct {
	mu      sync.RWMutex
	slots   []slot[T]
	freeIdx []uint32
	nextGen uint32
}

type slot[T any] struct {
	val    T
	gen    uint32
	filled bool
}

func NewSlab[T any]() *Slab[T] {
	return &Slab[T]{nextGen: 1}
}

// Insert stores v and returns the key it was stored under.
func (s *Slab[T]) Insert(v T) TypedKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.nextGen
	s.nextGen++

	if n := len(s.freeIdx); n > 0 {
		idx := s.freeIdx[n-1]
		s.freeIdx = s.freeIdx[:n-1]
		s.slots[idx] = slot[T]{val: v, gen: gen, filled: true}
		return TypedKey{index: idx, gen: gen}
	}

	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slot[T]{val: v, gen: gen, filled: true})
	return TypedKey{index: idx, gen: gen}
}

// Get returns the value at k and whether it is still present.
func (s *Slab[T]) Get(k TypedKey) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero T
	if k.IsNull() || int(k.index) >= len(s.slots) {
		return zero, false
	}
	sl := s.slots[k.index]
	if !sl.filled || sl.gen != k.gen {
		return zero, false
	}
	return sl.val, true
}

// Mutate runs fn against the stored value in place, returning false if k
// does not resolve to a live entry.
func (s *Slab[T]) Mutate(k TypedKey, fn func(*T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.IsNull() || int(k.index) >= len(s.slots) {
		return false
	}
	sl := &s.slots[k.index]
	if !sl.filled || sl.gen != k.gen {
		return false
	}
	fn(&sl.val)
	return true
}

// Remove deletes the entry at k, returning the removed value.
func (s *Slab[T]) Remove(k TypedKey) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if k.IsNull() || int(k.index) >= len(s.slots) {
		return zero, false
	}
	sl := &s.slots[k.index]
	if !sl.filled || sl.gen != k.gen {
		return zero, false
	}
	v := sl.val
	*sl = slot[T]{}
	s.freeIdx = append(s.freeIdx, k.index)
	return v, true
}

// Len returns the number of live entries.
func (s *Slab[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sl := range s.slots {
		if sl.filled {
			n++
		}
	}
	return n
}

// Each calls fn for every live (key, value) pair. fn must not mutate the
// slab.
func (s *Slab[T]) Each(fn func(TypedKey, *T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for idx := range s.slots {
		sl := &s.slots[idx]
		if sl.filled {
			fn(TypedKey{index: uint32(idx), gen: sl.gen}, &sl.val)
		}
	}
}

// Id is a typed reference into a Slab[T] plus an optional link to the
// GenericKey of the Object attached to that entity.
type Id[T any] struct {
	typed   TypedKey
	generic TypedKey
}

func NewId[T any](typed, generic TypedKey) Id[T] {
	return Id[T]{typed: typed, generic: generic}
}

func NullId[T any]() Id[T] { return Id[T]{} }

func (i Id[T]) IsNull() bool      { return i.typed.IsNull() }
func (i Id[T]) Typed() TypedKey   { return i.typed }
func (i Id[T]) Generic() TypedKey { return i.generic }

func (i Id[T]) String() string {
	var zero T
	return fmt.Sprintf("%s#%d.%d", typeName(zero), i.typed.index, i.typed.gen)
}

// GenericID erases the T from an Id[T], retaining enough information
// (a type tag and a stable name) to convert back losslessly.
type GenericID struct {
	typed    TypedKey
	generic  TypedKey
	typeTag  reflect.Type
	typeName string
}

func NullGenericID() GenericID { return GenericID{typeName: "null"} }

func (g GenericID) IsNull() bool      { return g.generic.IsNull() }
func (g GenericID) Generic() TypedKey { return g.generic }
func (g GenericID) TypeName() string  { return g.typeName }

func (g GenericID) String() string {
	return fmt.Sprintf("%s#%d.%d", g.typeName, g.typed.index, g.typed.gen)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "unknown"
	}
	return t.Name()
}

// ToGeneric converts a typed Id into a GenericID. This direction is
// infallible.
func ToGeneric[T any](typed Id[T]) GenericID {
	var zero T
	t := reflect.TypeOf(zero)
	return GenericID{
		typed:    typed.typed,
		generic:  typed.generic,
		typeTag:  t,
		typeName: typeNameOf(t),
	}
}

func typeNameOf(t reflect.Type) string {
	if t == nil {
		return "unknown"
	}
	return t.Name()
}

// FromGeneric converts a GenericID back to a typed Id[T], reporting
// ok=false if the generic id was tagged with a different type. Callers at
// the request boundary turn that into a BadRequest naming both types.
func FromGeneric[T any](g GenericID) (Id[T], bool) {
	var zero T
	want := reflect.TypeOf(zero)
	if g.typeTag != want {
		return Id[T]{}, false
	}
	return Id[T]{typed: g.typed, generic: g.generic}, true
}
