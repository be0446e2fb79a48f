package connection

import (
	"testing"

	"github.com/oddin-space/simcore/internal/wire"
)

func TestAssignIsIdempotent(t *testing.T) {
	m := NewObjectMap()
	first := m.Assign(100)
	second := m.Assign(100)
	if first != second {
		t.Fatalf("Assign called twice for the same server id returned %d then %d", first, second)
	}
}

func TestAssignMintsIncreasingIDs(t *testing.T) {
	m := NewObjectMap()
	a := m.Assign(1)
	b := m.Assign(2)
	if b <= a {
		t.Fatalf("second Assign() = %d, want greater than first (%d)", b, a)
	}
}

func TestResolveAndClientID(t *testing.T) {
	m := NewObjectMap()
	client := m.Assign(7)

	server, ok := m.Resolve(client)
	if !ok || server != 7 {
		t.Fatalf("Resolve(%d) = (%d, %v), want (7, true)", client, server, ok)
	}

	gotClient, ok := m.ClientID(7)
	if !ok || gotClient != client {
		t.Fatalf("ClientID(7) = (%d, %v), want (%d, true)", gotClient, ok, client)
	}
}

func TestForgetDoesNotRecycleClientID(t *testing.T) {
	m := NewObjectMap()
	client := m.Assign(1)
	m.Forget(1)

	if _, ok := m.Resolve(client); ok {
		t.Fatal("Resolve of a forgotten client id should fail")
	}

	newClient := m.Assign(2)
	if newClient == client {
		t.Fatalf("a fresh Assign reused a forgotten client id %d", client)
	}
	if newClient <= client {
		t.Fatalf("next client id %d did not increase past the forgotten one %d", newClient, client)
	}
}

func TestLen(t *testing.T) {
	m := NewObjectMap()
	m.Assign(1)
	m.Assign(2)
	if got := m.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	m.Forget(wire.ObjectID(1))
	if got := m.Len(); got != 1 {
		t.Fatalf("Len() after Forget = %d, want 1", got)
	}
}
