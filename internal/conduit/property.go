package conduit

import (
	"fmt"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// PropertyConduit is a Member's property-kind binding: Read/Write handle
// get/set requests directly, and Subscribe/Unsubscribe register one
// propertySubscription per connection against the underlying element, so
// each subscribed connection gets its own wire.Event addressed to its own
// ObjectID mapping.
type PropertyConduit struct {
	Obj    wire.ObjectID
	Member string
	chain  ValueConduit
}

func NewProperty(obj wire.ObjectID, member string, chain ValueConduit) *PropertyConduit {
	return &PropertyConduit{Obj: obj, Member: member, chain: chain}
}

func (p *PropertyConduit) Read() (wire.Value, error) { return p.chain.Read() }
func (p *PropertyConduit) Write(v wire.Value) error  { return p.chain.Write(v) }

// Subscribe binds conn's handler to this property's change notifications.
// The returned Handle must be kept by the caller (connection.Subscription
// bookkeeping) and passed back to Unsubscribe on teardown.
func (p *PropertyConduit) Subscribe(conn subscriber.ConnectionKey, handler subscriber.EventHandler, queue *notifyqueue.Queue) (*subscriber.Handle, error) {
	base, ok := p.chain.(Subscribable)
	if !ok {
		return nil, fmt.Errorf("conduit: property %q has no subscribable source", p.Member)
	}
	sub := &propertySubscription{conn: conn, obj: p.Obj, member: p.Member, chain: p.chain}
	h := subscriber.NewHandle(sub)
	if err := base.Subscribe(h.Weak(), queue); err != nil {
		return nil, err
	}
	return h, nil
}

func (p *PropertyConduit) Unsubscribe(h *subscriber.Handle) error {
	base, ok := p.chain.(Subscribable)
	if !ok {
		return fmt.Errorf("conduit: property %q has no subscribable source", p.Member)
	}
	if err := base.Unsubscribe(h.Weak().ThinPtr()); err != nil {
		return err
	}
	h.Release()
	return nil
}

type propertySubscription struct {
	conn   subscriber.ConnectionKey
	obj    wire.ObjectID
	member string
	chain  ValueConduit
}

func (s *propertySubscription) Notify(state subscriber.StateReader, handler subscriber.EventHandler) {
	v, err := s.chain.Read()
	if err != nil {
		return
	}
	handler.Event(s.conn, wire.NewPropertyEvent(s.obj, s.member, v))
}
