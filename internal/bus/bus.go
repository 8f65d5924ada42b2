package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iava-ai/marketstream/internal/events"
)

// Token identifies one listener registration. It is returned by On and
// consumed by Off, so removal never depends on function identity.
type Token string

// Handler is a consumer callback for one event topic.
type Handler func(events.Event)

// registration pairs a handler with its removal token.
type registration struct {
	token Token
	fn    Handler
}

// Bus is an in-process publish/subscribe dispatcher. Handlers for one
// topic run in registration order; a failing handler never prevents the
// remaining handlers from running and never unwinds into the publisher.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]registration
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		logger:   logger,
		handlers: make(map[string][]registration),
	}
}

// On registers fn for the named topic and returns its removal token.
func (b *Bus) On(name string, fn Handler) Token {
	tok := Token(uuid.NewString())

	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], registration{token: tok, fn: fn})
	b.mu.Unlock()

	return tok
}

// Off removes the registration identified by tok from the named topic.
// Unknown tokens are a no-op.
func (b *Bus) Off(name string, tok Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[name]
	for i, r := range regs {
		if r.token == tok {
			b.handlers[name] = append(regs[:i:i], regs[i+1:]...)
			if len(b.handlers[name]) == 0 {
				delete(b.handlers, name)
			}
			return
		}
	}
}

// Publish delivers e to every handler currently registered for its topic.
// The handler list is snapshotted before dispatch, so handlers may call
// On/Off (or Publish) without deadlocking.
func (b *Bus) Publish(e events.Event) {
	name := e.EventName()

	b.mu.RLock()
	regs := make([]registration, len(b.handlers[name]))
	copy(regs, b.handlers[name])
	b.mu.RUnlock()

	for _, r := range regs {
		b.dispatch(name, r, e)
	}
}

// dispatch invokes a single handler, containing panics so one consumer
// cannot break fan-out or the transport read loop.
func (b *Bus) dispatch(name string, r registration, e events.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("event handler panicked",
				"event", name,
				"panic", rec,
			)
		}
	}()

	r.fn(e)
}

// Reset drops every registration. Used by the facade on disconnect.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.handlers = make(map[string][]registration)
	b.mu.Unlock()
}

// Len returns the number of handlers registered for the named topic.
func (b *Bus) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
