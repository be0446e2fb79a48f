// Package natsrelay mirrors every outbound wire.Event onto a NATS subject
// per connection, so an out-of-process spectator (a replay recorder, an
// admin dashboard) can observe a session's event stream without holding
// the socket itself.
package natsrelay

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/wire"
)

// Config is the NATS connection tuning the relay accepts.
type Config struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
	MaxPingsOut     int
	PingInterval    time.Duration
}

// Recorder is the slice of metrics the mirror touches directly.
type Recorder interface {
	NATSConnected(bool)
	NATSReconnect()
	NATSMessagePublished()
	NATSError()
}

// Mirror publishes a copy of every wire.Event it is handed to
// "sim.conn.<name>.events", where name is the connection's human-readable
// debug name (its uuid), not its raw ConnectionKey.
type Mirror struct {
	conn    *nats.Conn
	codec   wire.Codec
	metrics Recorder
	names   func(subscriber.ConnectionKey) string
}

// Connect dials NATS with bounded reconnects and ping keepalive, and
// wires its connection event handlers into Recorder.
func Connect(cfg Config, codec wire.Codec, rec Recorder, names func(subscriber.ConnectionKey) string) (*Mirror, error) {
	m := &Mirror{codec: codec, metrics: rec, names: names}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.MaxPingsOutstanding(cfg.MaxPingsOut),
		nats.PingInterval(cfg.PingInterval),
		nats.ConnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats relay connected")
			if m.metrics != nil {
				m.metrics.NATSConnected(true)
			}
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats relay disconnected")
			if m.metrics != nil {
				m.metrics.NATSConnected(false)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats relay reconnected")
			if m.metrics != nil {
				m.metrics.NATSConnected(true)
				m.metrics.NATSReconnect()
			}
		}),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats relay error")
			if m.metrics != nil {
				m.metrics.NATSError()
			}
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsrelay: connect: %w", err)
	}
	m.conn = conn
	if m.metrics != nil {
		m.metrics.NATSConnected(true)
	}
	return m, nil
}

// Subject returns the subject a given connection's events are mirrored
// onto.
func (m *Mirror) Subject(conn subscriber.ConnectionKey) string {
	return fmt.Sprintf("sim.conn.%s.events", m.names(conn))
}

// Event implements subscriber.EventHandler so a Mirror can be composed
// alongside transport.Collection as a second fan-out target: every Event
// the server sends a client is also published here.
func (m *Mirror) Event(conn subscriber.ConnectionKey, ev wire.Event) {
	data, err := m.codec.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Msg("natsrelay: encode event")
		return
	}
	if err := m.conn.Publish(m.Subject(conn), data); err != nil {
		log.Warn().Err(err).Msg("natsrelay: publish")
		if m.metrics != nil {
			m.metrics.NATSError()
		}
		return
	}
	if m.metrics != nil {
		m.metrics.NATSMessagePublished()
	}
}

func (m *Mirror) IsConnected() bool { return m.conn != nil && m.conn.IsConnected() }

func (m *Mirror) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
