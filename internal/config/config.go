// Package config loads simcore's runtime configuration from the
// environment via caarlos0/env, tag-driven with sensible defaults for
// local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend selects which transport.Session implementation accepts
// inbound connections.
type Backend string

const (
	BackendGorilla Backend = "gorilla"
	BackendGobwas  Backend = "gobwas"
)

type ServerConfig struct {
	Host    string  `env:"SIM_HOST" envDefault:"0.0.0.0"`
	Port    int     `env:"SIM_PORT" envDefault:"8080"`
	Backend Backend `env:"SIM_BACKEND" envDefault:"gorilla"`
	// MaxConnections is the hard admission cap transport.Collection
	// enforces.
	MaxConnections int `env:"SIM_MAX_CONNECTIONS" envDefault:"2048"`
	// TickRate is ticks per second for both simulation and the
	// notification flush.
	TickRate int `env:"SIM_TICK_RATE" envDefault:"30"`
	// MaxGameSeconds is an end-of-run threshold measured in in-game
	// seconds elapsed, 0 meaning unbounded. Tracked by cmd/simserver's
	// game loop, not by anything in this package.
	MaxGameSeconds float64 `env:"SIM_MAX_GAME_SECONDS" envDefault:"0"`
}

type NATSConfig struct {
	Enabled         bool          `env:"SIM_NATS_ENABLED" envDefault:"false"`
	URL             string        `env:"SIM_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	MaxReconnects   int           `env:"SIM_NATS_MAX_RECONNECTS" envDefault:"10"`
	ReconnectWait   time.Duration `env:"SIM_NATS_RECONNECT_WAIT" envDefault:"2s"`
	ReconnectJitter time.Duration `env:"SIM_NATS_RECONNECT_JITTER" envDefault:"500ms"`
	MaxPingsOut     int           `env:"SIM_NATS_MAX_PINGS_OUT" envDefault:"3"`
	PingInterval    time.Duration `env:"SIM_NATS_PING_INTERVAL" envDefault:"20s"`
}

type AuthConfig struct {
	RequireAuth     bool          `env:"SIM_AUTH_REQUIRE" envDefault:"false"`
	JWTSecret       string        `env:"SIM_AUTH_JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenExpiration time.Duration `env:"SIM_AUTH_TOKEN_EXPIRATION" envDefault:"24h"`
}

type MetricsConfig struct {
	Enabled bool   `env:"SIM_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"SIM_METRICS_PATH" envDefault:"/metrics"`
}

type InboundConfig struct {
	RateLimitPerSecond float64 `env:"SIM_INBOUND_RATE_LIMIT" envDefault:"50"`
	RateLimitBurst     int     `env:"SIM_INBOUND_RATE_BURST" envDefault:"100"`
}

// Config is the complete set of environment-driven settings: the server
// basics (host, port, max connections, tick rate, log level, the wire
// backend) plus the NATS mirror, auth, metrics and inbound-limit knobs.
type Config struct {
	Server   ServerConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
	Inbound  InboundConfig
	LogLevel string `env:"SIM_LOG_LEVEL" envDefault:"info"`
}

// Load parses Config from the process environment, applying envDefault
// tags for anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
