package atasmt5

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed            = errors.New("atasmt5: client closed")
	ErrNotConnected      = errors.New("atasmt5: not connected")
	ErrConnectInProgress = errors.New("atasmt5: connect already in progress")
)

// ConnectionError represents a connection-level error: a failed dial, a
// broken read or write, or a close handshake that did not complete in time.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("atasmt5: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("atasmt5: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents an error while building or transmitting a request.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("atasmt5: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
