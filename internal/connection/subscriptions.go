package connection

import (
	"sync"

	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

type subKey struct {
	obj    wire.ObjectID
	member string
}

// Subscriptions tracks every outstanding Subscription a connection holds
// from simstate.RequestHandler.Subscribe, keyed by (object, member), and
// implements simstate.SubscriptionStore. A single Subscriptions instance
// is shared by every connection (keyed additionally by ConnectionKey), so
// the connection collection can sweep all of one connection's
// subscriptions on teardown without each connection needing its own map
// instance wired through the dispatcher.
type Subscriptions struct {
	mu     sync.Mutex
	byConn map[subscriber.ConnectionKey]map[subKey]*subscriber.Subscription
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{byConn: make(map[subscriber.ConnectionKey]map[subKey]*subscriber.Subscription)}
}

func (s *Subscriptions) Store(conn subscriber.ConnectionKey, obj wire.ObjectID, member string, sub *subscriber.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byConn[conn]
	if !ok {
		m = make(map[subKey]*subscriber.Subscription)
		s.byConn[conn] = m
	}
	m[subKey{obj: obj, member: member}] = sub
}

func (s *Subscriptions) Take(conn subscriber.ConnectionKey, obj wire.ObjectID, member string) (*subscriber.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byConn[conn]
	if !ok {
		return nil, false
	}
	k := subKey{obj: obj, member: member}
	sub, ok := m[k]
	if ok {
		delete(m, k)
	}
	return sub, ok
}

func (s *Subscriptions) Has(conn subscriber.ConnectionKey, obj wire.ObjectID, member string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byConn[conn]
	if !ok {
		return false
	}
	_, ok = m[subKey{obj: obj, member: member}]
	return ok
}

// DropAll removes and returns every subscription still held by conn, for
// teardown to finalize one by one. The caller runs each Finalize itself
// (logging failures rather than propagating them) so one broken conduit
// can't leave the rest of the connection's subscriptions registered.
func (s *Subscriptions) DropAll(conn subscriber.ConnectionKey) []*subscriber.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byConn[conn]
	if !ok {
		return nil
	}
	delete(s.byConn, conn)
	subs := make([]*subscriber.Subscription, 0, len(m))
	for _, sub := range m {
		subs = append(subs, sub)
	}
	return subs
}
