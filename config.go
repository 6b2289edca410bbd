package wsrpc

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the configuration for a client.
type Config struct {
	// Endpoint is the WebSocket URL used when Connect is called with an empty endpoint.
	// Fallback: WSRPC_ENDPOINT environment variable.
	Endpoint string `toml:"endpoint"`

	// Timeout bounds each call. Zero disables the timeout.
	// Overridden by the WSRPC_TIMEOUT environment variable (Go duration syntax).
	Timeout time.Duration `toml:"timeout"`

	// UnsubscribeGracePeriod delays the unsubscribe sent after an event's
	// last listener is removed. Zero means the default of one second.
	UnsubscribeGracePeriod time.Duration `toml:"unsubscribe_grace_period"`

	// ReconnectEnabled turns automatic reconnection after a drop on or off.
	ReconnectEnabled bool `toml:"reconnect_enabled"`

	// MaxReconnectAttempts caps consecutive reconnect attempts. Zero or negative is unbounded.
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`

	// BaseReconnectDelay and MaxReconnectDelay bound the backoff between
	// attempts. Zero means the defaults of 1s and 30s.
	BaseReconnectDelay time.Duration `toml:"base_reconnect_delay"`
	MaxReconnectDelay  time.Duration `toml:"max_reconnect_delay"`

	// HandshakeTimeout bounds the opening handshake. Zero means no limit
	// beyond the context passed to Connect.
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`

	// Header is sent with every opening handshake.
	Header http.Header `toml:"-"`
}

// DefaultConfig returns the default transport settings.
func DefaultConfig() Config {
	return Config{
		Timeout:                15 * time.Second,
		UnsubscribeGracePeriod: 1 * time.Second,
		ReconnectEnabled:       true,
		MaxReconnectAttempts:   0,
		BaseReconnectDelay:     1 * time.Second,
		MaxReconnectDelay:      30 * time.Second,
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Durations are written as
// Go duration strings, e.g. timeout = "15s".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return resolveConfig(cfg)
}

// resolveConfig fills empty fields from environment variables and validates the rest.
func resolveConfig(cfg Config) (Config, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("WSRPC_ENDPOINT")
	}
	if raw := os.Getenv("WSRPC_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("WSRPC_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	// Zero delays take the defaults; Timeout keeps zero as "disabled".
	defaults := DefaultConfig()
	if cfg.UnsubscribeGracePeriod == 0 {
		cfg.UnsubscribeGracePeriod = defaults.UnsubscribeGracePeriod
	}
	if cfg.BaseReconnectDelay == 0 {
		cfg.BaseReconnectDelay = defaults.BaseReconnectDelay
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = max(defaults.MaxReconnectDelay, cfg.BaseReconnectDelay)
	}

	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("Timeout must not be negative")
	}
	if cfg.UnsubscribeGracePeriod < 0 {
		return cfg, fmt.Errorf("UnsubscribeGracePeriod must not be negative")
	}
	if cfg.BaseReconnectDelay <= 0 {
		return cfg, fmt.Errorf("BaseReconnectDelay must be positive")
	}
	if cfg.MaxReconnectDelay < cfg.BaseReconnectDelay {
		return cfg, fmt.Errorf("MaxReconnectDelay must be at least BaseReconnectDelay")
	}

	return cfg, nil
}
