package element

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSub struct {
	n int
}

func (c *countingSub) Notify(subscriber.StateReader, subscriber.EventHandler) { c.n++ }

func TestSetDedupesEqualValues(t *testing.T) {
	el := NewComparable(1)
	if changed := el.Set(1); changed {
		t.Fatalf("Set with equal value reported a change")
	}
	if changed := el.Set(2); !changed {
		t.Fatalf("Set with new value reported no change")
	}
	if got := el.Get(); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
}

func TestSetQueuesOnlyOnChange(t *testing.T) {
	q := notifyqueue.New(nil)
	el := NewComparable(1)

	sub := &countingSub{}
	h := subscriber.NewHandle(sub)
	if err := el.Subscribe(h.Weak(), q); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	el.Set(1)
	if q.Len() != 0 {
		t.Fatalf("queue depth after no-op Set = %d, want 0", q.Len())
	}

	el.Set(2)
	if q.Len() != 1 {
		t.Fatalf("queue depth after changing Set = %d, want 1", q.Len())
	}
}

func TestSubscribeMismatchedQueue(t *testing.T) {
	q1 := notifyqueue.New(nil)
	q2 := notifyqueue.New(nil)
	el := NewComparable(0)

	h1 := subscriber.NewHandle(&countingSub{})
	if err := el.Subscribe(h1.Weak(), q1); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}

	h2 := subscriber.NewHandle(&countingSub{})
	if err := el.Subscribe(h2.Weak(), q2); err == nil {
		t.Fatal("Subscribe with a different queue should have failed")
	}
}

func TestUnsubscribeUnknownFails(t *testing.T) {
	el := NewComparable(0)
	if err := el.Unsubscribe(12345); err == nil {
		t.Fatal("Unsubscribe of an unregistered pointer should fail")
	}
}

func TestGetMutAlwaysNotifies(t *testing.T) {
	q := notifyqueue.New(nil)
	el := New([]int{1, 2}, func(a, b []int) bool { return false })

	h := subscriber.NewHandle(&countingSub{})
	if err := el.Subscribe(h.Weak(), q); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	el.GetMut(func(v *[]int) { *v = append(*v, 3) })
	if q.Len() != 1 {
		t.Fatalf("queue depth after GetMut = %d, want 1", q.Len())
	}
	if got := el.Get(); len(got) != 3 {
		t.Fatalf("Get() after GetMut = %v, want length 3", got)
	}
}

func TestGetMutSilentDoesNotNotify(t *testing.T) {
	q := notifyqueue.New(nil)
	el := NewComparable(0)

	h := subscriber.NewHandle(&countingSub{})
	if err := el.Subscribe(h.Weak(), q); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	el.GetMutSilent(func(v *int) { *v = 42 })
	if q.Len() != 0 {
		t.Fatalf("queue depth after GetMutSilent = %d, want 0", q.Len())
	}
	if got := el.Get(); got != 42 {
		t.Fatalf("Get() after GetMutSilent = %d, want 42", got)
	}
}

func TestSubscriberCount(t *testing.T) {
	q := notifyqueue.New(nil)
	el := NewComparable(0)

	h1 := subscriber.NewHandle(&countingSub{})
	h2 := subscriber.NewHandle(&countingSub{})
	el.Subscribe(h1.Weak(), q)
	el.Subscribe(h2.Weak(), q)
	if el.SubscriberCount() != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", el.SubscriberCount())
	}

	if err := el.Unsubscribe(h1.Weak().ThinPtr()); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if el.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() after Unsubscribe = %d, want 1", el.SubscriberCount())
	}
}
