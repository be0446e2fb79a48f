package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/oddin-space/simcore/internal/connection"
	"github.com/oddin-space/simcore/internal/simstate"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

var ErrServerFull = fmt.Errorf("transport: server full")

// inboundQueueDepth bounds the shared request channel. Session read
// goroutines enqueue; only the game loop drains. Overflow drops the
// request with a warning rather than blocking a socket reader on the
// game loop.
const inboundQueueDepth = 1024

type pendingRequest struct {
	conn subscriber.ConnectionKey
	req  wire.Request
}

type entry struct {
	conn    *connection.Connection
	session Session
	limiter *rate.Limiter
}

// Collection owns every admitted connection: it admits sessions up to a
// hard cap, routes inbound requests to simstate's RequestHandler, and at
// the end of every tick flushes every queued wire.Event out to the
// session that should receive it, removing any connection whose flush
// write fails.
type Collection struct {
	maxConnections int
	root           wire.ObjectID
	codec          wire.Codec
	handler        *simstate.RequestHandler
	subs           *connection.Subscriptions
	metrics        Recorder

	inboundLimit rate.Limit
	inboundBurst int

	requests chan pendingRequest

	mu      sync.RWMutex
	conns   map[subscriber.ConnectionKey]*entry
	nextIdx uint32
	gen     uint32
}

// NewCollection builds an empty Collection. root is the server-side id of
// the singleton root Object; every admitted connection's ObjectMap is
// seeded with it so clients have a well-known id (always 1, the first one
// minted) to bootstrap from.
func NewCollection(maxConnections int, root wire.ObjectID, codec wire.Codec, handler *simstate.RequestHandler, subs *connection.Subscriptions, rec Recorder) *Collection {
	return &Collection{
		maxConnections: maxConnections,
		root:           root,
		codec:          codec,
		handler:        handler,
		subs:           subs,
		metrics:        rec,
		requests:       make(chan pendingRequest, inboundQueueDepth),
		conns:          make(map[subscriber.ConnectionKey]*entry),
		gen:            1,
	}
}

// SetInboundLimit caps each connection's request rate with its own token
// bucket, protecting the single-threaded game loop from one flooding
// client. Applies to connections admitted after the call; zero disables.
func (c *Collection) SetInboundLimit(limit rate.Limit, burst int) {
	c.inboundLimit = limit
	c.inboundBurst = burst
}

// Admit registers session as a new connection, rejecting it with
// ErrServerFull if the collection is already at maxConnections. The
// Connection starts in connection.Building; callers must Transition it to
// Active once the handshake is fully complete.
func (c *Collection) Admit(session Session) (*connection.Connection, error) {
	c.mu.Lock()
	if c.maxConnections > 0 && len(c.conns) >= c.maxConnections {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.ConnectionRejected()
		}
		return nil, ErrServerFull
	}

	idx := c.nextIdx
	c.nextIdx++
	gen := c.gen
	c.gen++
	key := subscriber.NewConnectionKey(idx, gen)

	conn := connection.New(key)
	if c.root != 0 {
		conn.Objects.Assign(c.root)
	}
	e := &entry{conn: conn, session: session}
	if c.inboundLimit > 0 {
		e.limiter = rate.NewLimiter(c.inboundLimit, c.inboundBurst)
	}
	c.conns[key] = e
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ConnectionAdmitted()
		c.metrics.ConnectionTracked(conn.Name, session.RemoteAddr())
	}
	log.Debug().Str("conn_name", conn.Name).Msg("connection admitted")
	return conn, nil
}

// Remove transitions conn through Closing -> Finalized, releasing every
// subscription handle it held and closing its session.
func (c *Collection) Remove(key subscriber.ConnectionKey) {
	c.mu.Lock()
	e, ok := c.conns[key]
	if ok {
		delete(c.conns, key)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if e.conn.State() == connection.Active {
		_ = e.conn.Transition(connection.Closing)
	}
	for _, sub := range c.subs.DropAll(key) {
		if err := sub.Finalize(); err != nil {
			log.Warn().Err(err).Str("conn_name", e.conn.Name).Msg("finalize subscription on teardown")
		}
	}
	_ = e.conn.Finalize()
	_ = e.session.Close()

	if c.metrics != nil {
		c.metrics.ConnectionClosed()
		c.metrics.ConnectionUntracked(e.conn.Name)
	}
	log.Debug().Str("conn_name", e.conn.Name).Msg("connection removed")
}

// HandleRequest implements InboundBundleHandler: it queues the decoded
// request for the game loop and returns immediately. All State mutation
// happens on the goroutine that calls ProcessInbound; session read
// goroutines never touch State. A full queue drops the request with a
// warning (the client sees no reply and retries or times out).
func (c *Collection) HandleRequest(conn subscriber.ConnectionKey, req wire.Request) {
	select {
	case c.requests <- pendingRequest{conn: conn, req: req}:
	default:
		log.Warn().Str("verb", req.Verb.String()).Msg("inbound request queue full, dropped")
	}
}

// ProcessInbound drains every request queued since the last call,
// dispatching each against State on the caller's goroutine and writing
// the response back to the issuing session. The game loop calls this
// once per tick, before game logic and the notification flush.
func (c *Collection) ProcessInbound() {
	for {
		select {
		case p := <-c.requests:
			resp, ok := c.dispatch(p.conn, p.req)
			if ok {
				c.respond(p.conn, resp)
			}
		default:
			return
		}
	}
}

func (c *Collection) respond(conn subscriber.ConnectionKey, resp wire.Response) {
	c.mu.RLock()
	e, ok := c.conns[conn]
	c.mu.RUnlock()
	if !ok {
		return
	}
	data, err := c.codec.EncodeResponse(resp)
	if err != nil {
		log.Error().Err(err).Msg("encode response")
		return
	}
	if err := e.session.Send(data); err != nil {
		log.Warn().Err(err).Str("conn_name", e.conn.Name).Msg("response send failed, dropping connection")
		c.Remove(conn)
	}
}

// dispatch translates the request's client-side object ids into server
// ids through the connection's ObjectMap, routes it through simstate
// (using this Collection itself as the subscriber.EventHandler any
// Subscribe request registers against), and translates server ids in the
// response back. Requests against a connection no longer in the
// collection are dropped (ok=false).
func (c *Collection) dispatch(conn subscriber.ConnectionKey, req wire.Request) (wire.Response, bool) {
	c.mu.RLock()
	e, ok := c.conns[conn]
	c.mu.RUnlock()
	if !ok {
		log.Warn().Str("verb", req.Verb.String()).Msg("request against unknown connection, dropped")
		return wire.Response{}, false
	}
	objects := e.conn.Objects
	if c.metrics != nil {
		c.metrics.ConnectionRequest(e.conn.Name)
	}

	if e.limiter != nil && !e.limiter.Allow() {
		return wire.Response{
			Nonce: req.Nonce,
			Err:   wire.NewRequestError(wire.ErrBadRequest, "request rate limited"),
		}, true
	}

	server, known := objects.Resolve(uint64(req.Object))
	if !known {
		return wire.Response{
			Nonce: req.Nonce,
			Err:   wire.NewRequestError(wire.ErrBadObject, "unknown object %d on this connection", req.Object),
		}, true
	}
	req.Object = server

	for i, arg := range req.Args {
		mapped, ok := arg.MapObjects(func(o wire.ObjectID) (wire.ObjectID, bool) {
			return objects.Resolve(uint64(o))
		})
		if !ok {
			return wire.Response{
				Nonce: req.Nonce,
				Err:   wire.NewRequestError(wire.ErrBadEntity, "argument references an unknown or destroyed entity"),
			}, true
		}
		req.Args[i] = mapped
	}

	resp := c.handler.Dispatch(conn, c, c.subs, req)
	if resp.Err == nil {
		resp.Value, _ = resp.Value.MapObjects(func(o wire.ObjectID) (wire.ObjectID, bool) {
			return wire.ObjectID(objects.Assign(o)), true
		})
	}
	return resp, true
}

// Event implements subscriber.EventHandler: it translates every server id
// in ev into conn's own id space (minting fresh client ids as needed),
// encodes it and writes it to conn's session, removing the connection if
// the write fails. A destruction event also invalidates the entity's
// mapping, so a later reference allocates a new id rather than reviving
// the old one.
func (c *Collection) Event(conn subscriber.ConnectionKey, ev wire.Event) {
	c.mu.RLock()
	e, ok := c.conns[conn]
	c.mu.RUnlock()
	if !ok {
		return
	}
	objects := e.conn.Objects

	assign := func(o wire.ObjectID) (wire.ObjectID, bool) {
		if o == 0 {
			log.Warn().Str("conn_name", e.conn.Name).Msg("null entity in outbound event")
		}
		return wire.ObjectID(objects.Assign(o)), true
	}

	out := ev
	out.Object, _ = assign(ev.Object)
	out.Value, _ = ev.Value.MapObjects(assign)
	if ev.Kind == wire.EventObjectDestroyed {
		objects.Forget(ev.Object)
	}

	data, err := c.codec.EncodeEvent(out)
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	if err := e.session.Send(data); err != nil {
		log.Warn().Err(err).Str("conn_name", e.conn.Name).Msg("flush failed, dropping connection")
		c.Remove(conn)
		return
	}
	if c.metrics != nil {
		c.metrics.ConnectionEvent(e.conn.Name)
	}
}

// ConnectionName resolves a connection key to its debug name (the uuid
// used in logs and NATS mirror subjects).
func (c *Collection) ConnectionName(key subscriber.ConnectionKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[key]
	if !ok {
		return "", false
	}
	return e.conn.Name, true
}

// Len reports the number of admitted connections, active or not.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Broadcast writes raw bytes to every admitted connection directly,
// bypassing the wire.Event/request pipeline — used for the teardown
// announcement a graceful shutdown sends before closing every socket.
func (c *Collection) Broadcast(data []byte) {
	c.mu.RLock()
	sessions := make([]Session, 0, len(c.conns))
	for _, e := range c.conns {
		sessions = append(sessions, e.session)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	var failed atomic.Int64
	for _, s := range sessions {
		wg.Add(1)
		go func(s Session) {
			defer wg.Done()
			if err := s.Send(data); err != nil {
				failed.Add(1)
			}
		}(s)
	}
	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Warn().Int64("failed", n).Msg("teardown broadcast had delivery failures")
	}
}

// CloseAll tears down every admitted connection, used on graceful
// shutdown after Broadcast has announced it.
func (c *Collection) CloseAll() {
	c.mu.RLock()
	keys := make([]subscriber.ConnectionKey, 0, len(c.conns))
	for k := range c.conns {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	for _, k := range keys {
		c.Remove(k)
	}
}
