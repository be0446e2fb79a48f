// Package transport implements the connection admission, request routing
// and tick-end flush every concrete socket backend (wsocket, gobwas)
// shares, plus the Session/SessionBuilder seam those backends are built
// against.
package transport

import (
	"encoding/json"

	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// Session is one client socket, abstracted away from which concrete
// backend (gorilla/websocket, gobwas/ws) is driving it.
type Session interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// SessionBuilder constructs a Session from whatever handshake primitive
// the concrete transport exposes, running the optional auth gate before a
// Connection is ever allocated into a Collection.
type SessionBuilder interface {
	Build() (Session, error)
}

// InboundBundleHandler is what a Session hands a decoded request to.
// Collection implements this by queueing the request for the game loop;
// it never dispatches on the caller's (session) goroutine. Responses
// travel back through the session's Send later, once the game loop has
// pumped the queue.
type InboundBundleHandler interface {
	HandleRequest(conn subscriber.ConnectionKey, req wire.Request)
}

// Recorder is the slice of metrics the transport layer touches directly.
type Recorder interface {
	ConnectionAdmitted()
	ConnectionRejected()
	ConnectionClosed()
	ConnectionTracked(name, remoteAddr string)
	ConnectionUntracked(name string)
	ConnectionRequest(name string)
	ConnectionEvent(name string)
}

// FatalErrorFrame builds the one outbound message a BadMessage failure
// sends before the connection closes: an unparseable frame never carries
// a Nonce, so it cannot travel as an ordinary wire.Response and is built
// by hand instead of through the Codec.
func FatalErrorFrame(message string) []byte {
	data, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}{Type: "fatal_error", Kind: "BadMessage", Message: message})
	return data
}
