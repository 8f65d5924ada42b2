package session

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrTransportClosed = errors.New("transport closed")
	ErrAuthRejected    = errors.New("authentication rejected")
	ErrMaxRetries      = errors.New("max reconnect attempts exceeded")
)

// Kind identifies which logical channel a session serves.
type Kind string

const (
	KindData    Kind = "data"
	KindTrading Kind = "trading"
)

// State is a channel session's lifecycle state.
type State string

const (
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateReady          State = "ready"
	StateClosing        State = "closing"
	StateClosed         State = "closed"
)

// Message wraps raw frame data with its receive timestamp.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// TransportConfig configures one websocket transport.
type TransportConfig struct {
	URL              string        // channel websocket URL
	HandshakeTimeout time.Duration // dial handshake deadline
	WriteTimeout     time.Duration // write deadline for sends
	BufferSize       int           // inbound message channel buffer
}

// DefaultTransportConfig returns sensible defaults; the URL must still
// be set by the caller.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// RetryConfig bounds the reconnect policy for one channel kind.
type RetryConfig struct {
	BaseDelay   time.Duration // first retry delay
	MaxDelay    time.Duration // backoff cap
	MaxAttempts int           // consecutive failures before giving up
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		MaxAttempts: 10,
	}
}
