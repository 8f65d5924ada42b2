package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one physical streaming connection to the provider.
type Transport interface {
	// Connect establishes the connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection. Safe to call twice.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Ping sends a keep-alive control frame.
	Ping() error

	// Messages returns the channel of inbound frames.
	Messages() <-chan Message

	// Errors returns the channel of connection errors. A transport
	// error terminates the connection.
	Errors() <-chan error

	// IsConnected returns the current connection state.
	IsConnected() bool
}

// wsTransport implements Transport over a gorilla websocket.
type wsTransport struct {
	cfg    TransportConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan Message
	errors   chan error
	done     chan struct{}

	// Write serialization: frame sends and ping control frames may
	// originate from different goroutines.
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewTransport creates a websocket transport for the given endpoint.
func NewTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}

	return &wsTransport{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan Message, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the endpoint and starts the read loop.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	// Answer server pings so the provider keeps the connection alive.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go t.readLoop()

	t.logger.Debug("websocket connected", "url", t.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.mu.Unlock()

	close(t.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a websocket ping control frame.
func (t *wsTransport) Ping() error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	return conn.WriteControl(
		websocket.PingMessage,
		[]byte("keepalive"),
		time.Now().Add(t.cfg.WriteTimeout),
	)
}

// Messages returns the inbound frame channel.
func (t *wsTransport) Messages() <-chan Message {
	return t.messages
}

// Errors returns the connection error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *wsTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// readLoop reads frames from the websocket onto the messages channel.
func (t *wsTransport) readLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
	}()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Errors after Close() are expected teardown noise.
			select {
			case <-t.done:
				return
			default:
				select {
				case t.errors <- err:
				default:
				}
				return
			}
		}

		msg := Message{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case t.messages <- msg:
		case <-t.done:
			return
		default:
			t.logger.Warn("message buffer full, dropping frame")
		}
	}
}
