// Package object implements the Object/Member model: the wire-facing
// description of one entity's members, each bound to a conduit of the
// matching Kind. Object itself holds no simulation state; it is a lookup
// table from member name to conduit, built once at entity construction
// and immutable thereafter.
package object

import (
	"fmt"

	"github.com/oddin-space/simcore/internal/conduit"
	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// Kind tags which verbs are valid against a Member: Property accepts
// get/set/subscribe, Signal accepts subscribe only, Action accepts
// invoke only.
type Kind int

const (
	KindProperty Kind = iota
	KindSignal
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindSignal:
		return "signal"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// PropertyMember is the subset of *conduit.PropertyConduit's method set a
// Member needs; declared here so Object never imports a concrete conduit
// type, only the shape it exposes.
type PropertyMember interface {
	Read() (wire.Value, error)
	Write(wire.Value) error
	Subscribe(conn subscriber.ConnectionKey, handler subscriber.EventHandler, queue *notifyqueue.Queue) (*subscriber.Handle, error)
	Unsubscribe(h *subscriber.Handle) error
}

// SignalMember is the subset of *conduit.SignalConduit[T]'s method set a
// Member needs.
type SignalMember interface {
	Subscribe(conn subscriber.ConnectionKey, handler subscriber.EventHandler, queue *notifyqueue.Queue) (*subscriber.Handle, error)
	Unsubscribe(h *subscriber.Handle) error
}

// ActionMember is the subset of *conduit.ActionConduit's (and
// *conduit.RateLimitedActionConduit's) method set a Member needs.
type ActionMember interface {
	Invoke(args []wire.Value) (wire.Value, error)
}

// Member is one named binding on an Object. Exactly one of Property,
// Signal, Action is non-nil, matching Kind.
type Member struct {
	Name     string
	Kind     Kind
	Property PropertyMember
	Signal   SignalMember
	Action   ActionMember
}

// Object is one entity's complete set of member bindings plus its
// destruction conduit, addressed by the ObjectID State assigned it.
type Object struct {
	ID          wire.ObjectID
	TypeName    string
	members     map[string]*Member
	destruction *conduit.DestructionConduit
}

func (o *Object) Member(name string) (*Member, bool) {
	m, ok := o.members[name]
	return m, ok
}

func (o *Object) MemberNames() []string {
	names := make([]string, 0, len(o.members))
	for name := range o.members {
		names = append(names, name)
	}
	return names
}

func (o *Object) Destruction() *conduit.DestructionConduit { return o.destruction }

// Builder assembles an Object's member table. The composition rule it
// enforces is simple: a given member name is registered exactly once,
// under exactly one Kind; registering it twice is a programming error in
// the entity-construction code, not a runtime request error, so it
// panics rather than returning one.
type Builder struct {
	obj *Object
}

func NewBuilder(id wire.ObjectID, typeName string) *Builder {
	return &Builder{obj: &Object{
		ID:          id,
		TypeName:    typeName,
		members:     make(map[string]*Member),
		destruction: conduit.NewDestruction(id),
	}}
}

func (b *Builder) register(name string, m *Member) *Builder {
	if name == "" {
		panic(fmt.Sprintf("object: empty member name on type %q", b.obj.TypeName))
	}
	if _, exists := b.obj.members[name]; exists {
		panic(fmt.Sprintf("object: member %q registered twice on type %q", name, b.obj.TypeName))
	}
	b.obj.members[name] = m
	return b
}

func (b *Builder) Property(name string, p PropertyMember) *Builder {
	return b.register(name, &Member{Name: name, Kind: KindProperty, Property: p})
}

func (b *Builder) Signal(name string, s SignalMember) *Builder {
	return b.register(name, &Member{Name: name, Kind: KindSignal, Signal: s})
}

func (b *Builder) Action(name string, a ActionMember) *Builder {
	return b.register(name, &Member{Name: name, Kind: KindAction, Action: a})
}

func (b *Builder) Build() *Object { return b.obj }
