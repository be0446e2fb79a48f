package connection

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/oddin-space/simcore/internal/subscriber"
)

// State is one stage of a Connection's lifecycle. Transitions only ever
// move forward: Building -> Active -> Closing -> Finalized. A Connection
// is allocated in Building while the transport handshake (and optional
// auth gate) runs, becomes Active once accepted into a
// transport.Collection, moves to Closing the instant either side starts
// tearing it down, and reaches Finalized once every subscription handle
// has been released and no further outbound writes will be attempted.
type State int32

const (
	Building State = iota
	Active
	Closing
	Finalized
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// transitions enumerates the only state changes Transition will permit;
// anything else is a logic error in the caller. Building -> Finalized is
// the build-failure path: a session whose handshake never completes skips
// Active and Closing entirely.
var transitions = map[State][]State{
	Building: {Active, Finalized},
	Active:   {Closing},
	Closing:  {Finalized},
}

var ErrInvalidTransition = fmt.Errorf("connection: invalid state transition")

// Connection is one client session: its identity, lifecycle state, and
// the per-connection object id table and subscription handles it owns.
// The transport.Session that actually owns the socket is a separate
// object the connection layer never imports — Connection only needs to
// know it exists long enough to be told to flush or close.
type Connection struct {
	Key  subscriber.ConnectionKey
	Name string // a uuid, used for log correlation and the NATS mirror subject

	state atomic.Int32

	Objects *ObjectMap

	mu      sync.Mutex
	onClose []func()
}

func New(key subscriber.ConnectionKey) *Connection {
	return &Connection{
		Key:     key,
		Name:    uuid.NewString(),
		Objects: NewObjectMap(),
	}
}

func (c *Connection) State() State { return State(c.state.Load()) }

// Transition advances the connection to next, failing if the transitions
// table does not allow next from the current state.
func (c *Connection) Transition(next State) error {
	cur := State(c.state.Load())
	allowed := false
	for _, want := range transitions[cur] {
		if want == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	if !c.state.CompareAndSwap(int32(cur), int32(next)) {
		return fmt.Errorf("%w: concurrent transition out of %s", ErrInvalidTransition, cur)
	}
	return nil
}

// OnClose registers fn to run once, when the connection reaches
// Finalized, so resources can be released without the connection package
// needing to know what those resources are. transport.Collection does not
// register any; it drops subscriptions itself on Remove.
func (c *Connection) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// Finalize transitions Closing (or Building) -> Finalized and runs every registered
// OnClose callback exactly once.
func (c *Connection) Finalize() error {
	if err := c.Transition(Finalized); err != nil {
		return err
	}
	c.mu.Lock()
	cbs := c.onClose
	c.onClose = nil
	c.mu.Unlock()
	for _, fn := range cbs {
		fn()
	}
	return nil
}
