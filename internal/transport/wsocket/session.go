// Package wsocket implements a transport.Session backend on top of
// gorilla/websocket.
package wsocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/transport"
	"github.com/oddin-space/simcore/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	EnableCompression: false,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// Session adapts a *websocket.Conn to transport.Session, with its own
// write pump so concurrent Event flushes never interleave writes on the
// same connection (gorilla/websocket forbids concurrent writers).
type Session struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	remote string
}

var _ transport.Session = (*Session)(nil)

func newSession(conn *websocket.Conn) *Session {
	s := &Session{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		remote: conn.RemoteAddr().String(),
	}
	go s.writePump()
	return s
}

// Upgrade performs the HTTP -> websocket handshake and returns a Session
// wrapping the result.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSession(conn), nil
}

func (s *Session) Send(data []byte) error {
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return websocket.ErrCloseSent
	default:
		return errSendBufferFull
	}
}

func (s *Session) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.conn.Close()
}

func (s *Session) RemoteAddr() string { return s.remote }

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// ReadLoop blocks reading inbound frames, decoding each through codec and
// queueing the result with handler, until the connection closes. Run it
// in its own goroutine per accepted connection; it never dispatches into
// game state itself, and responses reach the client later via the write
// pump once the game loop has pumped the queue.
func ReadLoop(s *Session, conn subscriber.ConnectionKey, codec wire.Codec, handler transport.InboundBundleHandler) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
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

type sendBufferFullError struct{}

func (sendBufferFullError) Error() string { return "wsocket: send buffer full" }

var errSendBufferFull = sendBufferFullError{}
