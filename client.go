package atasmt5

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Client maintains one long-lived connection to the relay and provides a safe
// concurrent API over it: sends are serialized on a single permit while a
// background loop drains inbound traffic. It is safe for concurrent use by
// multiple goroutines.
type Client struct {
	url string
	cfg clientConfig

	// Instance lifetime. Cancelled exactly once by Close, never reset; every
	// blocking operation observes it so teardown cannot be stalled by a
	// wedged network call.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	transport  Transport
	connecting bool
	disposed   bool
	recvDone   chan struct{}
	recvErr    error

	connected atomic.Bool

	// Capacity-1 send permit. Guards exactly the write path; acquisition is
	// cancellable.
	sendMu chan struct{}
}

// New creates a Client for the given relay URL. No connection is attempted
// until Connect is called.
func New(url string, opts ...Option) *Client {
	cfg := clientConfig{closeTimeout: DefaultCloseTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dial == nil {
		if cfg.dialOpts != nil {
			dialOpts := cfg.dialOpts
			cfg.dial = func(ctx context.Context, url string) (Transport, error) {
				return DialWithOptions(ctx, url, dialOpts)
			}
		} else {
			cfg.dial = Dial
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		url:    url,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		sendMu: make(chan struct{}, 1),
	}
}

// Connect establishes the connection and starts the receive loop.
//
// A connect already in progress on another goroutine fails fast with
// ErrConnectInProgress rather than queueing. An already-open connection makes
// Connect an idempotent no-op. The attempt is single-shot: failures are
// returned and never retried internally.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connecting {
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	if c.connected.Load() {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	prev := c.transport
	c.transport = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	// A handle left over from a dropped connection is replaced, never reused.
	if prev != nil {
		_ = prev.Close()
	}

	dialCtx, stop := c.opContext(ctx)
	defer stop()

	t, err := c.cfg.dial(dialCtx, c.url)
	if err != nil {
		if c.cfg.logger != nil {
			c.cfg.logger.Debug("connect failed",
				slog.String("url", c.url),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		_ = t.Close()
		return ErrClosed
	}
	c.transport = t
	loopDone := make(chan struct{})
	c.recvDone = loopDone
	c.recvErr = nil
	c.connected.Store(true)
	c.mu.Unlock()

	go c.readLoop(t, loopDone)

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("connected", slog.String("url", c.url))
	}

	return nil
}

// Send serializes one request and transmits it as a single text frame.
//
// It fails immediately with ErrNotConnected when no connection is open; no
// envelope is built and no I/O happens. Concurrent Sends are never
// interleaved on the wire: each acquires the send permit before writing and
// releases it in a deferred step regardless of the transmit outcome.
func (c *Client) Send(ctx context.Context, action string, params any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	select {
	case c.sendMu <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
	defer func() { <-c.sendMu }()

	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil || !c.connected.Load() {
		return ErrNotConnected
	}

	req := NewRequest(action, params)

	if c.cfg.onSend != nil {
		c.cfg.onSend(req)
	}
	if c.cfg.logger != nil {
		c.cfg.logger.Debug("sending request",
			slog.String("action", action),
			slog.String("id", req.ID),
		)
	}

	sendCtx, stop := c.opContext(ctx)
	defer stop()

	return t.Send(sendCtx, req)
}

// Disconnect performs the graceful close handshake when a connection is
// open. It is idempotent: calling it on a never-connected or already-closed
// client is a no-op. The handshake is bounded by ctx; local state is cleaned
// up whether or not the peer cooperates.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	t := c.transport
	loopDone := c.recvDone
	c.transport = nil
	c.recvDone = nil
	c.mu.Unlock()

	c.connected.Store(false)

	if t == nil {
		return nil
	}

	// Run the handshake to the side so a wedged peer cannot stall teardown
	// past the caller's deadline.
	closed := make(chan error, 1)
	go func() { closed <- t.Close() }()

	var err error
	select {
	case err = <-closed:
	case <-ctx.Done():
		err = &ConnectionError{Op: "close", Err: ctx.Err()}
	}

	if loopDone != nil {
		select {
		case <-loopDone:
		case <-ctx.Done():
		}
	}

	if err != nil && c.cfg.logger != nil {
		c.cfg.logger.Debug("disconnect failed", slog.String("error", err.Error()))
	}

	return err
}

// Close tears the client down for good. It cancels the instance context
// first so in-flight dials, sends, and reads abort, then attempts a graceful
// disconnect bounded by the configured close timeout, and releases local
// state unconditionally. Close is idempotent and the client must not be
// reused afterwards.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	c.cancel()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.closeTimeout)
	defer cancel()

	return c.Disconnect(ctx)
}

// IsConnected reports whether a connection is currently open. It takes no
// locks and has no side effects, so it is callable from any goroutine.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// readLoop drains inbound frames until the connection closes, errors, or
// teardown cancels it. Text frames are handed to the logging sink and the
// OnReceive hook; they are never correlated with outbound requests. The loop
// holds no locks while reading, so it never blocks Send.
func (c *Client) readLoop(t Transport, done chan struct{}) {
	defer close(done)

	for {
		text, err := t.Receive(c.ctx)
		if err != nil {
			c.mu.Lock()
			if c.transport == t {
				c.recvErr = err
				c.connected.Store(false)
			}
			c.mu.Unlock()
			if c.cfg.logger != nil {
				c.cfg.logger.Debug("receive loop stopped", slog.String("reason", err.Error()))
			}
			return
		}

		if c.cfg.onReceive != nil {
			c.cfg.onReceive(text)
		}
		if c.cfg.logger != nil {
			c.cfg.logger.Debug("received message", slog.String("text", text))
		}
	}
}

// opContext derives a context for one blocking operation that is cancelled
// by either the caller or client teardown, whichever fires first.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
