// Command simserver boots the reactive state-and-subscription core: it
// wires config, logging, metrics, the object registry and one of the two
// socket backends together, runs the tick loop, and tears everything down
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/time/rate"

	"github.com/oddin-space/simcore/internal/auth"
	"github.com/oddin-space/simcore/internal/config"
	"github.com/oddin-space/simcore/internal/connection"
	"github.com/oddin-space/simcore/internal/metrics"
	"github.com/oddin-space/simcore/internal/notifyqueue"
	"github.com/oddin-space/simcore/internal/simstate"
	"github.com/oddin-space/simcore/internal/subscriber"
	"github.com/oddin-space/simcore/internal/transport"
	transportauth "github.com/oddin-space/simcore/internal/transport/auth"
	"github.com/oddin-space/simcore/internal/transport/gobwas"
	"github.com/oddin-space/simcore/internal/transport/natsrelay"
	"github.com/oddin-space/simcore/internal/transport/wsocket"
	"github.com/oddin-space/simcore/internal/wire"
	"github.com/oddin-space/simcore/internal/worldfixture"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	initLogger(cfg.LogLevel)

	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Warn().Err(err).Msg("automaxprocs: failed to set GOMAXPROCS")
	}

	coll := metrics.NewCollector()
	sysColl := metrics.NewSystemCollector(coll, 5*time.Second)
	go sysColl.Run()
	defer sysColl.Stop()

	queue := notifyqueue.New(coll.NotifQueueDepthGauge())
	state := simstate.NewState(queue, coll)
	world := worldfixture.New(state, coll)
	_, _ = world.SpawnShip(wire.Vector3{})

	codec := wire.NewJSONCodec()
	subs := connection.NewSubscriptions()
	handler := simstate.NewRequestHandler(state)
	conns := transport.NewCollection(cfg.Server.MaxConnections, world.Root.ID, codec, handler, subs, coll)
	if cfg.Inbound.RateLimitPerSecond > 0 {
		conns.SetInboundLimit(rate.Limit(cfg.Inbound.RateLimitPerSecond), cfg.Inbound.RateLimitBurst)
	}

	var eventHandler subscriber.EventHandler = conns
	var mirror *natsrelay.Mirror
	if cfg.NATS.Enabled {
		mirror, err = natsrelay.Connect(natsrelay.Config{
			URL:             cfg.NATS.URL,
			MaxReconnects:   cfg.NATS.MaxReconnects,
			ReconnectWait:   cfg.NATS.ReconnectWait,
			ReconnectJitter: cfg.NATS.ReconnectJitter,
			MaxPingsOut:     cfg.NATS.MaxPingsOut,
			PingInterval:    cfg.NATS.PingInterval,
		}, codec, coll, func(key subscriber.ConnectionKey) string {
			if name, ok := conns.ConnectionName(key); ok {
				return name
			}
			return "unknown"
		})
		if err != nil {
			log.Error().Err(err).Msg("nats relay: connect failed, continuing without spectator mirror")
		} else {
			eventHandler = transport.Fanout{conns, mirror}
			defer mirror.Close()
		}
	}

	mgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	var gate *transportauth.Gate
	if cfg.Auth.RequireAuth {
		gate = transportauth.NewGate(mgr, true)
	}

	// /connections dumps the tracker's per-connection debug snapshot;
	// behind the bearer-token middleware whenever auth is on at all.
	connStats := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, coll.ConnectionStats())
	}
	if cfg.Auth.RequireAuth {
		connStats = mgr.AuthMiddleware(connStats)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	switch cfg.Server.Backend {
	case config.BackendGobwas:
		go serveGobwas(ctx, cfg, conns, codec, connStats, errCh)
	default:
		go serveGorilla(ctx, cfg, conns, codec, gate, connStats, errCh)
	}

	stopTicks := make(chan struct{})
	go runTickLoop(cfg, state, conns, eventHandler, stopTicks)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("transport server error")
		}
		stop()
	}

	close(stopTicks)
	conns.Broadcast(shutdownNotice())
	conns.CloseAll()
	log.Info().Msg("simserver stopped")
}

func initLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func shutdownNotice() []byte {
	data, _ := json.Marshal(map[string]string{
		"type":    "shutdown",
		"message": "server has shut down",
	})
	return data
}

// runTickLoop is the single goroutine that owns State: each tick it
// pumps the queued inbound requests, then flushes the shared NotifQueue,
// at cfg.Server.TickRate Hz. Stops early once MaxGameSeconds elapses if
// that threshold is nonzero.
func runTickLoop(cfg *config.Config, state *simstate.State, conns *transport.Collection, handler subscriber.EventHandler, stop <-chan struct{}) {
	hz := cfg.Server.TickRate
	if hz <= 0 {
		hz = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ticker.C:
			conns.ProcessInbound()
			state.Flush(handler)
			if cfg.Server.MaxGameSeconds > 0 && time.Since(start).Seconds() >= cfg.Server.MaxGameSeconds {
				log.Info().Msg("max game seconds reached, tick loop stopping")
				return
			}
		case <-stop:
			return
		}
	}
}

// serveGorilla runs the gorilla/websocket backend: one HTTP server with a
// /ws upgrade endpoint alongside /health and /metrics.
func serveGorilla(ctx context.Context, cfg *config.Config, conns *transport.Collection, codec wire.Codec, gate *transportauth.Gate, connStats http.HandlerFunc, errCh chan<- error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, err := gate.Check(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sess, err := wsocket.Upgrade(w, r)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		acceptGorilla(conns, sess, codec)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":      "healthy",
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"connections": conns.Len(),
		})
	})
	mux.HandleFunc("/connections", connStats)

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown error")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("gorilla websocket server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errCh <- err
		return
	}
	errCh <- nil
}

func acceptGorilla(conns *transport.Collection, sess *wsocket.Session, codec wire.Codec) {
	conn, err := conns.Admit(sess)
	if err != nil {
		log.Warn().Err(err).Msg("connection rejected")
		_ = sess.Close()
		return
	}
	if err := conn.Transition(connection.Active); err != nil {
		log.Error().Err(err).Msg("failed to activate connection")
		conns.Remove(conn.Key)
		return
	}
	wsocket.ReadLoop(sess, conn.Key, codec, conns)
	conns.Remove(conn.Key)
}

// serveGobwas runs the gobwas/ws backend on a raw net.Listener bound to
// cfg.Server.Port, and a second, smaller HTTP listener one port above it
// for /health and /metrics, since gobwas's appeal is bypassing net/http
// for the socket path entirely. The optional auth gate only applies to
// the gorilla backend: it checks an *http.Request, and a raw net.Conn
// accepted here never has one.
func serveGobwas(ctx context.Context, cfg *config.Config, conns *transport.Collection, codec wire.Codec, connStats http.HandlerFunc, errCh chan<- error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		errCh <- fmt.Errorf("gobwas: listen: %w", err)
		return
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	if cfg.Metrics.Enabled {
		go serveGobwasAdmin(ctx, cfg, conns, connStats)
	}

	log.Info().Str("addr", addr).Msg("gobwas websocket server starting")
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				errCh <- nil
			default:
				errCh <- err
			}
			return
		}
		go acceptGobwas(conns, raw, codec)
	}
}

func acceptGobwas(conns *transport.Collection, raw net.Conn, codec wire.Codec) {
	sess, err := gobwas.Upgrade(raw)
	if err != nil {
		log.Warn().Err(err).Msg("gobwas upgrade failed")
		return
	}
	conn, err := conns.Admit(sess)
	if err != nil {
		log.Warn().Err(err).Msg("connection rejected")
		_ = sess.Close()
		return
	}
	if err := conn.Transition(connection.Active); err != nil {
		log.Error().Err(err).Msg("failed to activate connection")
		conns.Remove(conn.Key)
		return
	}
	gobwas.ReadLoop(sess, conn.Key, codec, conns)
	conns.Remove(conn.Key)
}

func serveGobwasAdmin(ctx context.Context, cfg *config.Config, conns *transport.Collection, connStats http.HandlerFunc) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":      "healthy",
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"connections": conns.Len(),
		})
	})
	mux.HandleFunc("/connections", connStats)
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("admin http server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("admin http server error")
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
