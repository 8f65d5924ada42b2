package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iava-ai/marketstream/internal/bus"
	"github.com/iava-ai/marketstream/internal/events"
	"github.com/iava-ai/marketstream/internal/metrics"
)

// Runner owns the session lifecycle for one channel kind: it is the only
// component that creates or discards sessions. On channel loss it
// schedules a new bring-up with exponential backoff, replaying
// subscription state through the session's OnReady hook; after the
// attempt cap it publishes one fatal status event and stops, leaving the
// other channel untouched.
type Runner struct {
	kind       Kind
	cfg        RetryConfig
	newSession func() *Session
	bus        *bus.Bus
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	current *Session
	termErr error

	readyOnce  sync.Once
	firstReady chan struct{}
	done       chan struct{}
}

// NewRunner creates a Runner for one channel kind. newSession is called
// for every bring-up attempt and must return a fresh Session.
func NewRunner(kind Kind, cfg RetryConfig, newSession func() *Session, b *bus.Bus, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		kind:       kind,
		cfg:        cfg,
		newSession: newSession,
		bus:        b,
		logger:     logger.With("channel", kind),
		metrics:    m,
		firstReady: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Kind returns the channel kind this runner manages.
func (r *Runner) Kind() Kind { return r.kind }

// Current returns the live session, or nil between bring-ups.
func (r *Runner) Current() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// FirstReady is closed the first time the channel reaches ready.
func (r *Runner) FirstReady() <-chan struct{} { return r.firstReady }

// Done is closed when the runner stops, either by context cancellation
// or retry exhaustion.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Err returns the terminal error after Done is closed; nil means a
// deliberate shutdown.
func (r *Runner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.termErr
}

// Run drives the channel until ctx is canceled or retries are exhausted.
// It never runs two bring-up attempts concurrently: the loop body owns
// the single live session for this kind.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	attempt := 0
	for {
		sess := r.newSession()
		r.setCurrent(sess)

		runErr := make(chan error, 1)
		go func() { runErr <- sess.Run(ctx) }()

		var err error
		select {
		case <-sess.Ready():
			attempt = 0
			r.readyOnce.Do(func() { close(r.firstReady) })
			r.bus.Publish(events.Status{
				Channel:  string(r.kind),
				State:    "connected",
				Severity: "info",
			})
			err = <-runErr

		case err = <-runErr:
		}

		r.setCurrent(nil)

		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = ErrTransportClosed
		}

		r.logger.Warn("channel session lost", "error", err)
		r.bus.Publish(events.Status{
			Channel:  string(r.kind),
			State:    "disconnected",
			Severity: "warning",
			Err:      err.Error(),
		})

		attempt++
		if attempt > r.cfg.MaxAttempts {
			r.setTermErr(ErrMaxRetries)
			r.logger.Error("giving up on channel", "attempts", r.cfg.MaxAttempts)
			r.bus.Publish(events.Status{
				Channel:  string(r.kind),
				State:    "failed",
				Severity: "fatal",
				Err:      ErrMaxRetries.Error(),
			})
			return ErrMaxRetries
		}

		delay := Backoff(r.cfg, attempt)
		r.metrics.ReconnectScheduled(string(r.kind))
		r.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// Backoff returns the delay before the given reconnect attempt
// (1-based): base, base*2, base*4, ... capped at MaxDelay.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

func (r *Runner) setCurrent(s *Session) {
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
}

func (r *Runner) setTermErr(err error) {
	r.mu.Lock()
	r.termErr = err
	r.mu.Unlock()
}
