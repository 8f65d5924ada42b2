package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iava-ai/marketstream/internal/bus"
	"github.com/iava-ai/marketstream/internal/codec"
	"github.com/iava-ai/marketstream/internal/metrics"
)

// Decode turns one raw frame into a decoded batch. The codec provides
// one implementation per channel kind.
type Decode func(frame []byte) (codec.Batch, error)

// Params configures a Session.
type Params struct {
	Kind      Kind
	Auth      json.RawMessage // opaque auth payload, sent verbatim on connect
	Transport Transport
	Decode    Decode
	Bus       *bus.Bus

	// OnReady runs after authentication succeeds and before the session
	// reports ready; the data channel replays subscriptions here, the
	// trading channel starts its update streams.
	OnReady func(*Session) error

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Session owns one physical streaming connection and drives it through
// the connecting → authenticating → ready → closing → closed lifecycle.
// Inbound frames are handled one at a time, in arrival order, so
// consumers observe monotonically ordered events per channel.
type Session struct {
	kind    Kind
	auth    json.RawMessage
	tr      Transport
	decode  Decode
	bus     *bus.Bus
	onReady func(*Session) error
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state State

	ready chan struct{}
}

// New creates a Session. It does not connect; Run does.
func New(p Params) *Session {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		kind:    p.Kind,
		auth:    p.Auth,
		tr:      p.Transport,
		decode:  p.Decode,
		bus:     p.Bus,
		onReady: p.OnReady,
		logger:  logger.With("channel", p.Kind),
		metrics: p.Metrics,
		state:   StateConnecting,
		ready:   make(chan struct{}),
	}
}

// Kind returns the channel kind this session serves.
func (s *Session) Kind() Kind { return s.kind }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready is closed once the session has authenticated and replayed its
// subscription intents.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// SendJSON marshals v and sends it on the channel. Subscription frames
// may only be sent once the session is ready.
func (s *Session) SendJSON(v any) error {
	if s.State() != StateReady {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	return s.tr.Send(data)
}

// Ping sends a keep-alive probe on the underlying transport.
func (s *Session) Ping() error {
	if err := s.tr.Ping(); err != nil {
		return err
	}
	s.metrics.HeartbeatSent(string(s.kind))
	return nil
}

// Run connects, authenticates, and processes inbound frames until the
// context is canceled or the transport fails. A nil return means the
// session was shut down deliberately; any error means the channel was
// lost and the reconnect policy should take over.
func (s *Session) Run(ctx context.Context) error {
	defer s.metrics.SessionReady(string(s.kind), false)

	if err := s.tr.Connect(ctx); err != nil {
		s.setState(StateClosed)
		return err
	}
	defer s.tr.Close()

	s.setState(StateAuthenticating)
	if err := s.tr.Send(s.auth); err != nil {
		s.setState(StateClosed)
		return fmt.Errorf("send auth frame: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosing)
			s.tr.Close()
			s.setState(StateClosed)
			return nil

		case err := <-s.tr.Errors():
			s.setState(StateClosed)
			return err

		case msg, ok := <-s.tr.Messages():
			if !ok {
				s.setState(StateClosed)
				return ErrTransportClosed
			}
			if err := s.handleFrame(msg.Data); err != nil {
				s.setState(StateClosed)
				return err
			}
		}
	}
}

// handleFrame decodes one frame and publishes its events. Decode errors
// are logged and skipped; only authentication rejection and replay
// failure terminate the session.
func (s *Session) handleFrame(data []byte) error {
	s.metrics.FrameReceived(string(s.kind))

	batch, err := s.decode(data)
	if err != nil {
		s.logger.Warn("frame decode error", "error", err)
		s.metrics.DecodeError(string(s.kind))
	}

	if batch.AuthErr != nil {
		return fmt.Errorf("%w: %v", ErrAuthRejected, batch.AuthErr)
	}

	if batch.AuthAck {
		if err := s.markReady(); err != nil {
			return err
		}
	}

	if batch.Controls > 0 {
		s.logger.Debug("control frame", "count", batch.Controls)
	}

	for _, e := range batch.Events {
		s.bus.Publish(e)
		s.metrics.EventPublished(e.EventName())
	}

	return nil
}

// markReady transitions to ready, running the OnReady hook (subscription
// replay) first so the channel is caught up before anyone observes it as
// ready. Duplicate auth acks are ignored.
func (s *Session) markReady() error {
	s.mu.Lock()
	if s.state != StateAuthenticating {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReady
	s.mu.Unlock()

	if s.onReady != nil {
		if err := s.onReady(s); err != nil {
			return fmt.Errorf("apply subscription intents: %w", err)
		}
	}

	s.metrics.SessionReady(string(s.kind), true)
	s.logger.Info("channel ready")
	close(s.ready)

	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
