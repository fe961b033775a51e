// Package server configuration. Values come from the environment (with an
// optional .env file) and are validated before the process wires anything up.
package server

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=9300" validate:"min=1,max=65535"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:9300"`
	Room           string `env:"ROOM,default=general" validate:"required"`
	BadgerPath     string `env:"BADGER_FILEPATH,default=./data/chathub" validate:"required"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	// MaxFrameSize bounds a single inbound WebSocket frame. It must leave room
	// for a 1000-character message plus envelope and escaping overhead.
	MaxFrameSize int64 `env:"MAX_FRAME_SIZE,default=16384" validate:"gte=4096"`
	HistoryLimit int   `env:"HISTORY_LIMIT,default=100" validate:"gt=0"`
	SendBuffer   int   `env:"SEND_BUFFER,default=256" validate:"gt=0"`

	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=5" validate:"gt=0"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// LoadConfig reads the environment (plus .env when present) into a validated
// Config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("reading config from environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in defaults without touching the
// environment. Used by tests and as a base for programmatic setups.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            9300,
		AllowedOrigins:  "http://localhost:9300",
		Room:            "general",
		BadgerPath:      "./data/chathub",
		LogLevel:        "info",
		MaxFrameSize:    16384,
		HistoryLimit:    100,
		SendBuffer:      256,
		RateLimitBurst:  5,
		RateLimitRefill: time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits the comma-separated allowlist.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// NewLogger builds the process logger at the configured level. Unknown level
// strings fall back to info.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
