// Package config loads the application settings from the environment.
package config

import (
	"time"
)

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
	// ProxyHeader, e.g. X-Forwarded-For, is read for the client address
	// only when the peer is listed in TrustedProxies.
	ProxyHeader    string   `envconfig:"PROXY_HEADER"`
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[coletivo]"`
}

// DB selects the store. Driver is "postgres" or "memory".
type DB struct {
	Driver     string `envconfig:"DRIVER" default:"postgres"`
	Url        string `envconfig:"URL"`
	MaxRetries int    `envconfig:"MAX_RETRIES" default:"5"`
	// Migrate applies pending migrations on startup.
	Migrate bool `envconfig:"MIGRATE" default:"true"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

// Redis backs drafts and the event bus when URL is set.
type Redis struct {
	URL       string `envconfig:"URL"`
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"coletivo"`
	// Consumer names this process inside the event consumer groups. It must
	// survive restarts, so it defaults to the hostname.
	Consumer string `envconfig:"CONSUMER"`
	// ClaimIdle is how long a delivered event may stay unacknowledged
	// before another consumer takes it over.
	ClaimIdle time.Duration `envconfig:"CLAIM_IDLE" default:"1m"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Draft struct {
	TTL time.Duration `envconfig:"TTL" default:"24h"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Currency  string     `envconfig:"CURRENCY" default:"BRL"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Auth      *Auth      `envconfig:"AUTH"`
	Redis     *Redis     `envconfig:"REDIS"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Draft     *Draft     `envconfig:"DRAFT"`
}
