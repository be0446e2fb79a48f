package conduit

import (
	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

// Subscribable is satisfied by any conduit that has, transitively, an
// element.Element or signal.Signal underneath it. ElementConduit
// implements it directly; every pass-through wrapper (MapOutput,
// MapInput, TryInto, Caching) delegates to its inner conduit.
type Subscribable interface {
	Subscribe(w subscriber.Weak, queue *notifyqueue.Queue) error
	Unsubscribe(ptr uintptr) error
}
