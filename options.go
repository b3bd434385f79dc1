package atasmt5

import (
	"log/slog"
	"time"
)

// DefaultCloseTimeout bounds the graceful disconnect performed by
// [Client.Close] when the caller's context carries no tighter deadline.
const DefaultCloseTimeout = 5 * time.Second

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger       *slog.Logger
	onSend       func(*Request)
	onReceive    func(string)
	dial         DialFunc
	dialOpts     *DialOptions
	closeTimeout time.Duration
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithOnSend sets a callback invoked before each request is transmitted.
func WithOnSend(fn func(*Request)) Option {
	return func(c *clientConfig) {
		c.onSend = fn
	}
}

// WithOnReceive sets a callback invoked for each inbound text frame. The
// client performs no interpretation of inbound traffic itself; this hook and
// the logger are the only places it surfaces.
func WithOnReceive(fn func(string)) Option {
	return func(c *clientConfig) {
		c.onReceive = fn
	}
}

// WithDialFunc sets a custom dialer. This is useful for testing or custom
// transport implementations.
func WithDialFunc(fn DialFunc) Option {
	return func(c *clientConfig) {
		c.dial = fn
	}
}

// WithDialOptions sets handshake options for the default dialer. Ignored when
// WithDialFunc is also given.
func WithDialOptions(opts *DialOptions) Option {
	return func(c *clientConfig) {
		c.dialOpts = opts
	}
}

// WithCloseTimeout sets the bound on the graceful disconnect during Close.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.closeTimeout = d
	}
}
