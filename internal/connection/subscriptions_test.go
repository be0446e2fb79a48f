package connection

import (
	"testing"

	"github.com/oddin-space/simcore/internal/subscriber"
)

func newSub() *subscriber.Subscription {
	return &subscriber.Subscription{
		Handle:   subscriber.NewHandle(nil),
		Finalize: func() error { return nil },
	}
}

func TestSubscriptionsStoreAndTake(t *testing.T) {
	s := NewSubscriptions()
	conn := subscriber.NewConnectionKey(1, 1)
	sub := newSub()

	s.Store(conn, 5, "throttle", sub)
	if !s.Has(conn, 5, "throttle") {
		t.Fatal("Has after Store should report true")
	}
	got, ok := s.Take(conn, 5, "throttle")
	if !ok || got != sub {
		t.Fatalf("Take = (%v, %v), want (%v, true)", got, ok, sub)
	}

	if _, ok := s.Take(conn, 5, "throttle"); ok {
		t.Fatal("a second Take of the same key should fail: Take removes the entry")
	}
	if s.Has(conn, 5, "throttle") {
		t.Fatal("Has after Take should report false")
	}
}

func TestSubscriptionsHasDoesNotRemove(t *testing.T) {
	s := NewSubscriptions()
	conn := subscriber.NewConnectionKey(1, 1)
	s.Store(conn, 5, "throttle", newSub())

	if !s.Has(conn, 5, "throttle") || !s.Has(conn, 5, "throttle") {
		t.Fatal("repeated Has calls should keep reporting true")
	}
	if _, ok := s.Take(conn, 5, "throttle"); !ok {
		t.Fatal("the entry should still be takeable after Has")
	}
}

func TestSubscriptionsTakeUnknown(t *testing.T) {
	s := NewSubscriptions()
	conn := subscriber.NewConnectionKey(1, 1)
	if _, ok := s.Take(conn, 1, "x"); ok {
		t.Fatal("Take on an empty store should fail")
	}
	if s.Has(conn, 1, "x") {
		t.Fatal("Has on an empty store should report false")
	}
}

func TestSubscriptionsDropAll(t *testing.T) {
	s := NewSubscriptions()
	conn := subscriber.NewConnectionKey(1, 1)
	other := subscriber.NewConnectionKey(2, 1)

	s.Store(conn, 1, "a", newSub())
	s.Store(conn, 2, "b", newSub())
	s.Store(other, 3, "c", newSub())

	dropped := s.DropAll(conn)
	if len(dropped) != 2 {
		t.Fatalf("DropAll(conn) = %d subscriptions, want 2", len(dropped))
	}

	if _, ok := s.Take(conn, 1, "a"); ok {
		t.Fatal("subscriptions should be gone from the store after DropAll")
	}
	if _, ok := s.Take(other, 3, "c"); !ok {
		t.Fatal("DropAll for one connection should not affect another connection's subscriptions")
	}
}

func TestSubscriptionsDropAllUnknownConn(t *testing.T) {
	s := NewSubscriptions()
	if got := s.DropAll(subscriber.NewConnectionKey(9, 9)); got != nil {
		t.Fatalf("DropAll on an untracked connection = %v, want nil", got)
	}
}
