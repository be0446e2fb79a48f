package signal

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/subscriber"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSub struct {
	sig  *Signal[int]
	seen [][]int
}

func (r *recordingSub) Notify(subscriber.StateReader, subscriber.EventHandler) {
	batch := r.sig.Peek()
	copied := make([]int, len(batch))
	copy(copied, batch)
	r.seen = append(r.seen, copied)
}

type noopSub struct{}

func (noopSub) Notify(subscriber.StateReader, subscriber.EventHandler) {}

func TestFireQueuesOncePerTick(t *testing.T) {
	q := notifyqueue.New(nil)
	sig := New[int]()

	h := subscriber.NewHandle(noopSub{})
	if err := sig.Subscribe(h.Weak(), q); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sig.Fire(1)
	sig.Fire(2)
	sig.Fire(3)
	if got := q.Len(); got != 1 {
		t.Fatalf("queue depth after three Fires in one tick = %d, want 1", got)
	}
}

func TestFireBeforeSubscribeIsNoOp(t *testing.T) {
	sig := New[int]()
	sig.Fire(1)
	if got := len(sig.Peek()); got != 0 {
		t.Fatalf("batch after Fire with no subscriber = %d payloads, want 0", got)
	}
}

func TestAllSubscribersSeeTheSameBatch(t *testing.T) {
	q := notifyqueue.New(nil)
	sig := New[int]()

	a := &recordingSub{sig: sig}
	b := &recordingSub{sig: sig}
	ha := subscriber.NewHandle(a)
	hb := subscriber.NewHandle(b)
	if err := sig.Subscribe(ha.Weak(), q); err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	if err := sig.Subscribe(hb.Weak(), q); err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}

	sig.Fire(1)
	sig.Fire(2)
	q.Flush(nil, nil)

	for name, r := range map[string]*recordingSub{"a": a, "b": b} {
		if len(r.seen) != 1 {
			t.Fatalf("%s notified %d times, want 1", name, len(r.seen))
		}
		if got := r.seen[0]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
			t.Fatalf("%s saw batch %v, want [1 2]", name, got)
		}
	}
}

func TestNotifyClearsBatchAndQueuedFlag(t *testing.T) {
	q := notifyqueue.New(nil)
	sig := New[int]()

	h := subscriber.NewHandle(noopSub{})
	sig.Subscribe(h.Weak(), q)

	sig.Fire(1)
	sig.Fire(2)
	q.Flush(nil, nil)
	if got := len(sig.Peek()); got != 0 {
		t.Fatalf("batch after flush = %d payloads, want 0", got)
	}

	sig.Fire(3)
	if got := q.Len(); got != 1 {
		t.Fatalf("queue depth after Fire following flush = %d, want 1 (queued flag should have reset)", got)
	}
	if got := sig.Peek(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("batch after Fire following flush = %v, want [3]", got)
	}
}

func TestNotifyShrinksOversizedBatch(t *testing.T) {
	q := notifyqueue.New(nil)
	sig := New[int]()
	h := subscriber.NewHandle(noopSub{})
	sig.Subscribe(h.Weak(), q)

	for i := 0; i < shrinkThreshold+5; i++ {
		sig.Fire(i)
	}
	q.Flush(nil, nil)
	if cap(sig.batch) != shrinkThreshold {
		t.Fatalf("batch cap after oversized flush = %d, want %d", cap(sig.batch), shrinkThreshold)
	}
}

func TestSubscribeMismatchedQueue(t *testing.T) {
	q1 := notifyqueue.New(nil)
	q2 := notifyqueue.New(nil)
	sig := New[int]()

	h1 := subscriber.NewHandle(noopSub{})
	if err := sig.Subscribe(h1.Weak(), q1); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	h2 := subscriber.NewHandle(noopSub{})
	if err := sig.Subscribe(h2.Weak(), q2); err == nil {
		t.Fatal("Subscribe with a different queue should have failed")
	}
}

func TestDispatchCallsEmitInOrder(t *testing.T) {
	var got []int
	Dispatch([]int{1, 2, 3}, func(v int) { got = append(got, v) })
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Dispatch order = %v, want [1 2 3]", got)
	}
}
