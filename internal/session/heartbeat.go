package session

import (
	"log/slog"
	"sync"
	"time"
)

// Heartbeat periodically sends keep-alive probes on every channel that
// is currently ready. It is a liveness probe only: staleness is detected
// by the transport surfacing a close/error, not by awaiting responses.
type Heartbeat struct {
	interval time.Duration
	sources  []func() *Session
	logger   *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewHeartbeat creates a monitor over the given session sources. Each
// source yields the channel's live session, or nil between bring-ups.
func NewHeartbeat(interval time.Duration, sources []func() *Session, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}

	return &Heartbeat{
		interval: interval,
		sources:  sources,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins probing in the background.
func (h *Heartbeat) Start() {
	go h.loop()
}

// Stop halts probing. No further probes are scheduled after Stop
// returns. Safe to call twice.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Heartbeat) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.probe()
		}
	}
}

// probe pings every ready session. Failures are only logged: a broken
// connection will surface through the transport's error channel and the
// reconnect policy acts on that.
func (h *Heartbeat) probe() {
	for _, source := range h.sources {
		s := source()
		if s == nil || s.State() != StateReady {
			continue
		}
		if err := s.Ping(); err != nil {
			h.logger.Debug("keep-alive probe failed",
				"channel", s.Kind(),
				"error", err,
			)
		}
	}
}
