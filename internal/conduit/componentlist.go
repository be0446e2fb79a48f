package conduit

import (
	"github.com/oddin-space/simcore/internal/element"
	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

// ComponentListConduit is a read-only view over "every id currently in
// this collection", backed by a Collection's membership Element (bumped
// on every Add/Remove, its own value otherwise ignored). snapshot is
// called fresh on every Read/notify, since the membership Element only
// tells us *that* the set changed, never what changed.
type ComponentListConduit[ID any] struct {
	membership *element.Element[int]
	snapshot   func() []ID
}

// NewComponentList builds a ComponentListConduit over a collection whose
// membership counter is membership and whose current id set is produced
// by snapshot.
func NewComponentList[ID any](membership *element.Element[int], snapshot func() []ID) *ComponentListConduit[ID] {
	return &ComponentListConduit[ID]{membership: membership, snapshot: snapshot}
}

func (c *ComponentListConduit[ID]) Read() ([]ID, error) { return c.snapshot(), nil }

func (c *ComponentListConduit[ID]) Write([]ID) error { return errNotWritable }

func (c *ComponentListConduit[ID]) Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error {
	return c.membership.Subscribe(w, queue)
}

func (c *ComponentListConduit[ID]) Unsubscribe(ptr uintptr) error {
	return c.membership.Unsubscribe(ptr)
}
