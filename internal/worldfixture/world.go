// Package worldfixture assembles a minimal flyable world out of the
// reactive core: one root Object exposing a ship_created signal, and a
// Ship collection whose members cover every conduit kind (a cached
// property, a fired signal, a rate-limited action). It exists to give
// cmd/simserver something concrete to serve and to let the end-to-end
// tests drive a real object graph instead of a bare mock.
package worldfixture

import (
	"golang.org/x/time/rate"

	"github.com/oddin-space/simcore/internal/collection"
	"github.com/oddin-space/simcore/internal/conduit"
	"github.com/oddin-space/simcore/internal/element"
	"github.com/oddin-space/simcore/internal/id"
	"github.com/oddin-space/simcore/internal/object"
	"github.com/oddin-space/simcore/internal/signal"
	"github.com/oddin-space/simcore/internal/simstate"
	"github.com/oddin-space/simcore/internal/wire"
)

// Ship is one piloted entity's server-side component data: a position
// Element every connected spectator can subscribe to, and a velocity
// Element the thrust action mutates. ObjectID links back to the Object
// built for it, so the collection's on-destroy callback can finalize
// that Object through simstate.State.Remove.
type Ship struct {
	ObjectID wire.ObjectID
	Position *element.Element[wire.Vector3]
	Velocity *element.Element[wire.Vector3]
}

// Recorder is the slice of metrics the world feeds: cache effectiveness
// of the conduits it builds, plus domain signal-fire counts. May be nil.
type Recorder interface {
	conduit.CacheRecorder
	SignalFired()
}

// World owns the one root Object plus the Ship collection every spawned
// pilot entity lives in.
type World struct {
	state *simstate.State
	rec   Recorder

	Ships       *collection.Collection[Ship]
	Root        *object.Object
	shipCreated *signal.Signal[wire.ObjectID]
}

func toVector3(v wire.Value) (wire.Vector3, error) {
	vec, ok := v.AsVector3()
	if !ok {
		return wire.Vector3{}, wire.NewRequestError(wire.ErrBadRequest, "expected a vector3 value")
	}
	return vec, nil
}

func fromVector3(v wire.Vector3) (wire.Value, error) { return wire.NewVector3(v), nil }

func objectIDsToValue(ids []wire.ObjectID) (wire.Value, error) {
	vs := make([]wire.Value, len(ids))
	for i, o := range ids {
		vs[i] = wire.NewObjectID(o)
	}
	return wire.NewArray(vs), nil
}

// rejectShipListWrite is the TryInto conversion function for the
// read-only "ships" component-list property: any write reaches
// ComponentListConduit.Write, which rejects it outright, so the
// conversion itself never needs to inspect the incoming Value.
func rejectShipListWrite(wire.Value) ([]wire.ObjectID, error) { return nil, nil }

func equalObjectIDSlice(a, b []wire.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// valueConduitOf wraps a same-typed Conduit[T,T] into the wire.Value
// shape every Member ultimately stores: caching sits immediately above
// the raw element per the composition rule, TryInto/MapOutput translate
// the domain type at the boundary.
func valueConduitOf[T comparable](inner conduit.Conduit[T, T], toValue func(T) (wire.Value, error), fromValue func(wire.Value) (T, error), rec conduit.CacheRecorder) conduit.ValueConduit {
	cached := conduit.NewCachingComparable[T](inner).Instrument(rec)
	converted := conduit.NewTryInto[T, T, wire.Value](cached, fromValue)
	return conduit.NewMapOutput[T, wire.Value, wire.Value](converted, toValue)
}

// cacheRec adapts a possibly-nil Recorder into the conduit layer's
// CacheRecorder without handing it a non-nil interface over a nil value.
func (w *World) cacheRec() conduit.CacheRecorder {
	if w.rec == nil {
		return nil
	}
	return w.rec
}

// New builds the root Object (its only members are the ship_created
// signal and the "ships" property listing every Ship's ObjectID) and registers it
// with state, then returns a World ready for SpawnShip. rec may be nil.
func New(state *simstate.State, rec Recorder) *World {
	w := &World{
		state:       state,
		rec:         rec,
		Ships:       collection.New[Ship](),
		shipCreated: signal.New[wire.ObjectID](),
	}

	w.Root = state.AddObject(func(rootID wire.ObjectID) *object.Object {
		b := object.NewBuilder(rootID, "Root")
		b.Signal("ship_created", conduit.NewSignal(rootID, "ship_created", w.shipCreated, wire.NewObjectID))

		// subscribe_collection/unsubscribe_collection against "ships"
		// routes through RequestHandler's ordinary property subscribe
		// path: the ComponentListConduit's Subscribe delegates straight
		// to the collection's membership Element, so no parallel
		// generic-collection dispatch mechanism is needed.
		shipList := conduit.NewComponentList[wire.ObjectID](w.Ships.MembershipElement(), func() []wire.ObjectID {
			ids := make([]wire.ObjectID, 0, w.Ships.Len())
			w.Ships.Each(func(_ id.TypedKey, s *Ship) { ids = append(ids, s.ObjectID) })
			return ids
		})
		cachedShipList := conduit.NewCaching[[]wire.ObjectID](shipList, equalObjectIDSlice).Instrument(w.cacheRec())
		asValues := conduit.NewMapOutput[[]wire.ObjectID, wire.Value, []wire.ObjectID](cachedShipList, objectIDsToValue)
		b.Property("ships", conduit.NewProperty(rootID, "ships", conduit.NewTryInto[wire.Value, []wire.ObjectID, wire.Value](asValues, rejectShipListWrite)))
		return b.Build()
	})

	// Registered once, not per-spawn: every Ship's removal finalizes the
	// Object its own ObjectID field names, regardless of which ship it is.
	w.Ships.OnDestroy(func(_ id.TypedKey, s Ship) {
		w.state.Remove(s.ObjectID)
	})

	return w
}

// SpawnShip creates a new Ship at pos, attaches an Object exposing its
// position (cached property), velocity (cached property) and a
// rate-limited thrust action, wires the Ship's destruction to the
// collection removal path, and fires ship_created with the new id.
func (w *World) SpawnShip(pos wire.Vector3) (id.TypedKey, wire.ObjectID) {
	ship := Ship{
		Position: element.New(pos, func(a, b wire.Vector3) bool { return a == b }),
		Velocity: element.New(wire.Vector3{}, func(a, b wire.Vector3) bool { return a == b }),
	}
	key := w.Ships.Add(ship)

	obj := w.state.AddObject(func(objID wire.ObjectID) *object.Object {
		w.Ships.Mutate(key, func(s *Ship) { s.ObjectID = objID })

		b := object.NewBuilder(objID, "Ship")

		posChain := valueConduitOf[wire.Vector3](conduit.NewElementConduit(ship.Position, false), fromVector3, toVector3, w.cacheRec())
		b.Property("position", conduit.NewProperty(objID, "position", posChain))

		velChain := valueConduitOf[wire.Vector3](conduit.NewElementConduit(ship.Velocity, false), fromVector3, toVector3, w.cacheRec())
		b.Property("velocity", conduit.NewProperty(objID, "velocity", velChain))

		thrust := conduit.NewAction(objID, "thrust", func(args []wire.Value) (wire.Value, error) {
			if len(args) != 1 {
				return wire.Value{}, wire.NewRequestError(wire.ErrBadRequest, "thrust takes exactly one vector3 argument")
			}
			dv, err := toVector3(args[0])
			if err != nil {
				return wire.Value{}, err
			}
			ship.Velocity.GetMut(func(v *wire.Vector3) {
				v.X += dv.X
				v.Y += dv.Y
				v.Z += dv.Z
			})
			return wire.Null(), nil
		})
		b.Action("thrust", conduit.NewRateLimitedAction(thrust, rate.Limit(5), 5))

		return b.Build()
	})

	w.shipCreated.Fire(obj.ID)
	if w.rec != nil {
		w.rec.SignalFired()
	}
	return key, obj.ID
}

// DespawnShip removes a ship, running its on-destroy callback (which in
// turn fires the Ship Object's destruction signal into the NotifQueue;
// subscribers hear about it at the next flush).
func (w *World) DespawnShip(key id.TypedKey) {
	w.Ships.Remove(key)
}
