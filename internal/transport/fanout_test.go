package transport

import (
	"testing"

	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

type recordingHandler struct {
	events []wire.Event
}

func (h *recordingHandler) Event(_ subscriber.ConnectionKey, ev wire.Event) {
	h.events = append(h.events, ev)
}

func TestFanoutDeliversToEveryHandler(t *testing.T) {
	a, b := &recordingHandler{}, &recordingHandler{}
	f := Fanout{a, b}

	ev := wire.Event{Kind: wire.EventPropertyChanged}
	f.Event(subscriber.NewConnectionKey(1, 1), ev)

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fanout should deliver to every handler, got a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestFanoutEmptyIsNoop(t *testing.T) {
	var f Fanout
	f.Event(subscriber.NewConnectionKey(1, 1), wire.Event{})
}
