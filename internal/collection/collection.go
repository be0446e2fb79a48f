// Package collection implements the per-component-type storage entity
// construction code builds Elements and Signals out of: a generation-keyed
// slab of T plus a change-notification Element subscribe_collection binds
// to.
package collection

import (
	"sync"

	"github.com/oddin-space/simcore/internal/element"
	"github.com/oddin-space/simcore/internal/id"
)

// Collection stores every live value of one component type T and exposes
// a membership Element whose value is a version counter bumped on every
// Add/Remove, so a subscribe_collection request can observe additions and
// removals without polling.
type Collection[T any] struct {
	slab *id.Slab[T]

	mu        sync.Mutex
	onDestroy []func(id.TypedKey, T)

	membership *element.Element[int]
}

func New[T any]() *Collection[T] {
	return &Collection[T]{
		slab:       id.NewSlab[T](),
		membership: element.NewComparable(0),
	}
}

func (c *Collection[T]) Add(v T) id.TypedKey {
	k := c.slab.Insert(v)
	c.bumpMembership()
	return k
}

func (c *Collection[T]) Get(k id.TypedKey) (T, bool) { return c.slab.Get(k) }

func (c *Collection[T]) Mutate(k id.TypedKey, fn func(*T)) bool { return c.slab.Mutate(k, fn) }

// Remove deletes k, running every registered on-destroy callback with the
// removed value before bumping membership so observers of
// subscribe_collection see the removal after on-destroy side effects
// (e.g. a DestructionConduit.Fire) have already run.
func (c *Collection[T]) Remove(k id.TypedKey) (T, bool) {
	v, ok := c.slab.Remove(k)
	if !ok {
		return v, false
	}
	c.mu.Lock()
	cbs := append([]func(id.TypedKey, T){}, c.onDestroy...)
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(k, v)
	}
	c.bumpMembership()
	return v, true
}

// OnDestroy registers fn to run whenever an entry is removed. Used by
// entity construction to wire a component's removal to its Object's
// DestructionConduit.
func (c *Collection[T]) OnDestroy(fn func(id.TypedKey, T)) {
	c.mu.Lock()
	c.onDestroy = append(c.onDestroy, fn)
	c.mu.Unlock()
}

func (c *Collection[T]) Len() int { return c.slab.Len() }

func (c *Collection[T]) Each(fn func(id.TypedKey, *T)) { c.slab.Each(fn) }

func (c *Collection[T]) bumpMembership() {
	c.membership.GetMut(func(n *int) { *n++ })
}

// MembershipElement is the Element subscribe_collection requests bind a
// propertySubscription-style watcher to.
func (c *Collection[T]) MembershipElement() *element.Element[int] { return c.membership }
