package wsrpc

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// WithErrorHandler sets the handler for errors that have no waiting caller,
// such as resubscription failures after a reconnect.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithReconnectHook registers fn to observe every scheduled reconnect.
// attempt is the number of attempts already made when the retry was scheduled.
func WithReconnectHook(fn func(attempt int, delay time.Duration)) Option {
	return func(c *Client) {
		c.onReconnectScheduled = fn
	}
}

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

func callDefaults(cfg Config) callOptions {
	return callOptions{
		timeout: cfg.Timeout,
	}
}

// WithTimeout overrides Config.Timeout for one call. Zero disables the timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}
