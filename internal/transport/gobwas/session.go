// Package gobwas implements a second transport.Session backend on top of
// gobwas/ws, offered alongside wsocket as a lower-allocation alternative
// chosen via config.Backend configuration rather than compiled in or
// out.
package gobwas

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog/log"

	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/transport"
	"github.com/oddin-space/simcore/internal/wire"
)

const writeDeadline = 10 * time.Second

// Session adapts a raw net.Conn upgraded via gobwas/ws to
// transport.Session. Writes are serialized by a mutex rather than a pump
// goroutine + channel, since wsutil writes a frame synchronously and
// gobwas/ws's appeal here is avoiding gorilla's extra buffering.
type Session struct {
	mu     sync.Mutex
	conn   net.Conn
	remote string
}

var _ transport.Session = (*Session)(nil)

func newSession(conn net.Conn) *Session {
	return &Session{conn: conn, remote: conn.RemoteAddr().String()}
}

// Upgrade performs the gobwas/ws server-side handshake on an already
// accepted net.Conn (typically from a net.Listener, bypassing net/http
// entirely — the main reason to pick this backend over wsocket).
func Upgrade(conn net.Conn) (*Session, error) {
	if _, err := ws.Upgrade(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return newSession(conn), nil
}

func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return wsutil.WriteServerMessage(s.conn, ws.OpText, data)
}

func (s *Session) Close() error { return s.conn.Close() }

func (s *Session) RemoteAddr() string { return s.remote }

// ReadLoop blocks reading inbound frames via wsutil, decoding each
// through codec and queueing the result with handler, until the
// connection closes. Dispatch and the response write both happen later,
// on the game loop's side.
func ReadLoop(s *Session, conn subscriber.ConnectionKey, codec wire.Codec, handler transport.InboundBundleHandler) {
	for {
		data, op, err := wsutil.ReadClientData(s.conn)
		if err != nil {
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}
		req, err := codec.DecodeRequest(data)
		if err != nil {
			log.Warn().Err(err).Str("remote", s.remote).Msg("malformed request, closing connection")
			_ = s.Send(transport.FatalErrorFrame(err.Error()))
			return
		}
		handler.HandleRequest(conn, req)
	}
}
