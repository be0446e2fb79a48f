package simstate

import (
	"github.com/oddin-space/simcore/internal/object"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// SubscriptionStore persists the Subscription a Subscribe request
// produces so a later Unsubscribe (or connection teardown) can finalize
// it. Implemented by connection.Subscriptions; kept as an interface here
// so simstate never imports the connection package.
type SubscriptionStore interface {
	Store(conn subscriber.ConnectionKey, obj wire.ObjectID, member string, sub *subscriber.Subscription)
	Take(conn subscriber.ConnectionKey, obj wire.ObjectID, member string) (*subscriber.Subscription, bool)
	Has(conn subscriber.ConnectionKey, obj wire.ObjectID, member string) bool
}

// RequestHandler dispatches one decoded wire.Request against a State,
// translating object/member lookups into the typed RequestError kinds the
// wire layer reports back to the client. One verb, one table entry —
// see Dispatch's switch.
type RequestHandler struct {
	state *State
}

func NewRequestHandler(state *State) *RequestHandler {
	return &RequestHandler{state: state}
}

func errResponse(nonce string, kind wire.ErrorKind, format string, args ...any) wire.Response {
	return wire.Response{Nonce: nonce, Err: wire.NewRequestError(kind, format, args...)}
}

func okResponse(nonce string, v wire.Value) wire.Response {
	return wire.Response{Nonce: nonce, Value: v}
}

// Dispatch routes req to the handler for its Verb. conn identifies the
// requesting connection (used to address Subscribe/SubscribeCollection
// notifications and as the SubscriptionStore key); handler is where
// resulting wire.Events get written; store persists/retrieves Subscribe
// handles across requests.
func (h *RequestHandler) Dispatch(conn subscriber.ConnectionKey, handler subscriber.EventHandler, store SubscriptionStore, req wire.Request) wire.Response {
	if h.state.metrics != nil {
		h.state.metrics.RequestDispatched(req.Verb)
	}

	resp := h.dispatch(conn, handler, store, req)
	if resp.Err != nil && h.state.metrics != nil {
		h.state.metrics.RequestFailed(req.Verb, resp.Err.Kind)
	}
	return resp
}

// destructionMember is the SubscriptionStore key used for a "subscribe
// with no name" request: it never collides with a real member name
// (object.Builder.register panics on an empty name), so the same
// (conn, obj, member) store that property/signal subscriptions use can
// hold the destruction subscription's Handle too.
const destructionMember = ""

func (h *RequestHandler) dispatch(conn subscriber.ConnectionKey, handler subscriber.EventHandler, store SubscriptionStore, req wire.Request) wire.Response {
	// The connection layer already resolved the client's id into a
	// server id; a miss here means the Object died between that lookup
	// and dispatch (or a subscription handle outlived its entity).
	obj, ok := h.state.Object(req.Object)
	if !ok {
		h.state.logUnknownObject(req.Object)
		return errResponse(req.Nonce, wire.ErrBadId, "no such object %d", req.Object)
	}

	// "subscribe (no name)" / "unsubscribe (no name)" addresses the
	// object's destruction signal directly, bypassing the named-member
	// table entirely — an Object always has a destruction conduit even
	// though it is never registered as a Member.
	if req.Member == destructionMember {
		switch req.Verb {
		case wire.VerbSubscribe:
			return h.subscribeDestruction(conn, handler, store, req, obj)
		case wire.VerbUnsubscribe:
			return h.unsubscribeDestruction(conn, store, req, obj)
		}
	}

	member, hasMember := obj.Member(req.Member)

	switch req.Verb {
	case wire.VerbGet:
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.get(req, member)
	case wire.VerbSet:
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.set(req, member)
	case wire.VerbInvoke:
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.invoke(req, member)
	case wire.VerbSubscribe:
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.subscribe(conn, handler, store, req, member)
	case wire.VerbUnsubscribe:
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.unsubscribe(conn, store, req, member)
	case wire.VerbSubscribeCollection:
		// A collection's membership is exposed as an ordinary property
		// member (the root Object's "ships" list of ObjectIDs, built by
		// game-construction code); no separate dispatch path is needed
		// beyond routing the verb here.
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.subscribe(conn, handler, store, req, member)
	case wire.VerbUnsubscribeCollection:
		if !hasMember {
			return errResponse(req.Nonce, wire.ErrBadName, "object %d has no member %q", req.Object, req.Member)
		}
		return h.unsubscribe(conn, store, req, member)
	default:
		return errResponse(req.Nonce, wire.ErrBadRequest, "verb %q not supported against a single object", req.Verb)
	}
}

func (h *RequestHandler) get(req wire.Request, member *object.Member) wire.Response {
	if member.Kind != object.KindProperty {
		return errResponse(req.Nonce, wire.ErrBadRequest, "member %q is a %s, not a property", req.Member, member.Kind)
	}
	v, err := member.Property.Read()
	if err != nil {
		return errResponse(req.Nonce, wire.ErrInternalError, "%v", err)
	}
	return okResponse(req.Nonce, v)
}

func (h *RequestHandler) set(req wire.Request, member *object.Member) wire.Response {
	if member.Kind != object.KindProperty {
		return errResponse(req.Nonce, wire.ErrBadRequest, "member %q is a %s, not a property", req.Member, member.Kind)
	}
	if len(req.Args) != 1 {
		return errResponse(req.Nonce, wire.ErrBadRequest, "set requires exactly one argument, got %d", len(req.Args))
	}
	if err := member.Property.Write(req.Args[0]); err != nil {
		return errResponse(req.Nonce, wire.ErrBadRequest, "%v", err)
	}
	return okResponse(req.Nonce, wire.Null())
}

func (h *RequestHandler) invoke(req wire.Request, member *object.Member) wire.Response {
	if member.Kind != object.KindAction {
		return errResponse(req.Nonce, wire.ErrBadRequest, "member %q is a %s, not an action", req.Member, member.Kind)
	}
	v, err := member.Action.Invoke(req.Args)
	if err != nil {
		return errResponse(req.Nonce, wire.ErrBadRequest, "%v", err)
	}
	return okResponse(req.Nonce, v)
}

func (h *RequestHandler) subscribeDestruction(conn subscriber.ConnectionKey, handler subscriber.EventHandler, store SubscriptionStore, req wire.Request, obj *object.Object) wire.Response {
	if store.Has(conn, req.Object, destructionMember) {
		return errResponse(req.Nonce, wire.ErrInternalError, "already subscribed to destruction of %d", req.Object)
	}
	d := obj.Destruction()
	h2, err := d.Subscribe(conn, handler)
	if err != nil {
		return errResponse(req.Nonce, wire.ErrInternalError, "%v", err)
	}
	store.Store(conn, req.Object, destructionMember, &subscriber.Subscription{
		Handle:   h2,
		Finalize: func() error { return d.Unsubscribe(h2) },
	})
	return okResponse(req.Nonce, wire.Null())
}

func (h *RequestHandler) unsubscribeDestruction(conn subscriber.ConnectionKey, store SubscriptionStore, req wire.Request, obj *object.Object) wire.Response {
	sub, ok := store.Take(conn, req.Object, destructionMember)
	if !ok {
		return errResponse(req.Nonce, wire.ErrInternalError, "not subscribed to destruction of %d", req.Object)
	}
	if err := sub.Finalize(); err != nil {
		return errResponse(req.Nonce, wire.ErrInternalError, "%v", err)
	}
	return okResponse(req.Nonce, wire.Null())
}

func (h *RequestHandler) subscribe(conn subscriber.ConnectionKey, handler subscriber.EventHandler, store SubscriptionStore, req wire.Request, member *object.Member) wire.Response {
	if store.Has(conn, req.Object, req.Member) {
		return errResponse(req.Nonce, wire.ErrInternalError, "already subscribed to %d.%s", req.Object, req.Member)
	}

	var h2 *subscriber.Handle
	var err error
	var finalize func() error
	switch member.Kind {
	case object.KindProperty:
		p := member.Property
		h2, err = p.Subscribe(conn, handler, h.state.Queue())
		finalize = func() error { return p.Unsubscribe(h2) }
	case object.KindSignal:
		sig := member.Signal
		h2, err = sig.Subscribe(conn, handler, h.state.Queue())
		finalize = func() error { return sig.Unsubscribe(h2) }
	default:
		return errResponse(req.Nonce, wire.ErrBadRequest, "member %q is a %s, cannot be subscribed", req.Member, member.Kind)
	}
	if err != nil {
		return errResponse(req.Nonce, wire.ErrInternalError, "%v", err)
	}
	store.Store(conn, req.Object, req.Member, &subscriber.Subscription{Handle: h2, Finalize: finalize})
	return okResponse(req.Nonce, wire.Null())
}

func (h *RequestHandler) unsubscribe(conn subscriber.ConnectionKey, store SubscriptionStore, req wire.Request, member *object.Member) wire.Response {
	sub, ok := store.Take(conn, req.Object, req.Member)
	if !ok {
		return errResponse(req.Nonce, wire.ErrInternalError, "not subscribed to %d.%s", req.Object, req.Member)
	}
	if err := sub.Finalize(); err != nil {
		return errResponse(req.Nonce, wire.ErrInternalError, "%v", err)
	}
	return okResponse(req.Nonce, wire.Null())
}
