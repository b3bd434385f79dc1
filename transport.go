package atasmt5

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// closeReason is the reason string sent with the normal-closure status during
// the graceful close handshake.
const closeReason = "client disconnect"

// Transport provides the interface for sending requests and receiving raw
// inbound text frames. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, req *Request) error
	Receive(ctx context.Context) (string, error)
	Close() error
}

// DialFunc dials the relay and returns a connected Transport. The default is
// Dial; tests and embedders may substitute their own.
type DialFunc func(ctx context.Context, url string) (Transport, error)

// DialOptions configures the WebSocket connection.
type DialOptions struct {
	// HTTPHeader specifies additional HTTP headers to send during handshake.
	HTTPHeader http.Header

	// HTTPClient is the HTTP client used for the handshake.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// Dial connects to a relay endpoint and returns a Transport.
func Dial(ctx context.Context, url string) (Transport, error) {
	return DialWithOptions(ctx, url, nil)
}

// DialWithOptions connects to a relay endpoint with explicit handshake
// options.
func DialWithOptions(ctx context.Context, url string, opts *DialOptions) (Transport, error) {
	dialOpts := &websocket.DialOptions{}
	if opts != nil && opts.HTTPHeader != nil {
		dialOpts.HTTPHeader = opts.HTTPHeader.Clone()
	}
	if opts != nil && opts.HTTPClient != nil {
		dialOpts.HTTPClient = opts.HTTPClient
	}

	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: url, Err: err}
	}

	// Position and mapping listings can grow; leave headroom over the default.
	conn.SetReadLimit(1024 * 1024) // 1MB

	return &wsTransport{conn: conn}, nil
}

// wsTransport implements Transport over WebSocket.
type wsTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Send marshals a request and writes it as one text frame.
func (t *wsTransport) Send(ctx context.Context, req *Request) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	data, err := json.Marshal(req)
	if err != nil {
		return &SendError{Op: "marshal", Err: err}
	}

	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}

	return nil
}

// Receive reads one inbound frame and returns it as text.
func (t *wsTransport) Receive(ctx context.Context) (string, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return "", ErrClosed
		}
		return "", &ConnectionError{Op: "read", Err: err}
	}

	return string(data), nil
}

// Close performs the clean close handshake.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.conn.Close(websocket.StatusNormalClosure, closeReason)
}
