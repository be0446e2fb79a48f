// Package connection implements the per-connection state machine, the
// client-facing object id table, and the subscription bookkeeping that
// backs simstate.SubscriptionStore.
package connection

import (
	"sync"

	"github.com/oddin-space/simcore/internal/wire"
)

// ObjectMap is the bidirectional map between a connection's own compact,
// monotonically increasing client ids and the server's global ObjectIDs.
// Client ids start at 1 and are never recycled, even after the
// server-side entity they named is destroyed and forgotten — a stale
// client id must always resolve to "unknown object", never silently to a
// different, newer entity.
type ObjectMap struct {
	mu             sync.RWMutex
	serverToClient map[wire.ObjectID]uint64
	clientToServer map[uint64]wire.ObjectID
	next           uint64
}

func NewObjectMap() *ObjectMap {
	return &ObjectMap{
		serverToClient: make(map[wire.ObjectID]uint64),
		clientToServer: make(map[uint64]wire.ObjectID),
		next:           1,
	}
}

// Assign returns the client id for server, minting a fresh one on first
// use. Idempotent: a second Assign for the same server id returns the
// same client id rather than allocating another.
func (m *ObjectMap) Assign(server wire.ObjectID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.serverToClient[server]; ok {
		return client
	}
	client := m.next
	m.next++
	m.serverToClient[server] = client
	m.clientToServer[client] = server
	return client
}

// Resolve looks up the server ObjectID a client id names.
func (m *ObjectMap) Resolve(client uint64) (wire.ObjectID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	server, ok := m.clientToServer[client]
	return server, ok
}

// ClientID looks up the client id already assigned to a server ObjectID,
// without minting a new one.
func (m *ObjectMap) ClientID(server wire.ObjectID) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.serverToClient[server]
	return client, ok
}

// Forget removes server's mapping (on destruction) without releasing the
// client id for reuse — next never decreases or resets.
func (m *ObjectMap) Forget(server wire.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.serverToClient[server]
	if !ok {
		return
	}
	delete(m.serverToClient, server)
	delete(m.clientToServer, client)
}

func (m *ObjectMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.serverToClient)
}
