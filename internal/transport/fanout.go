package transport

import "github.com/oddin-space/simcore/internal/subscriber"
import "github.com/oddin-space/simcore/internal/wire"

// Fanout composes several EventHandlers into one, used to hand every
// flushed wire.Event to both the owning Collection (which writes it to
// the actual client socket) and a natsrelay.Mirror (which publishes a
// copy for spectators), without either needing to know about the other.
type Fanout []subscriber.EventHandler

func (f Fanout) Event(conn subscriber.ConnectionKey, ev wire.Event) {
	for _, h := range f {
		h.Event(conn, ev)
	}
}
