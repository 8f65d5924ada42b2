package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iava-ai/marketstream/internal/bus"
	"github.com/iava-ai/marketstream/internal/codec"
	"github.com/iava-ai/marketstream/internal/creds"
	"github.com/iava-ai/marketstream/internal/events"
	"github.com/iava-ai/marketstream/internal/metrics"
	"github.com/iava-ai/marketstream/internal/session"
	"github.com/iava-ai/marketstream/internal/subs"
)

// ErrAlreadyInitialized is returned when Initialize is called on a
// running client.
var ErrAlreadyInitialized = errors.New("client already initialized")

// CredentialSource supplies per-channel connection configs. Implemented
// by *creds.Client; tests provide their own.
type CredentialSource interface {
	StreamConfig(ctx context.Context) (*creds.StreamConfig, error)
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Retry             session.RetryConfig
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	BufferSize        int
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

func (o *Options) applyDefaults() {
	def := session.DefaultRetryConfig()
	if o.Retry.BaseDelay == 0 {
		o.Retry.BaseDelay = def.BaseDelay
	}
	if o.Retry.MaxDelay == 0 {
		o.Retry.MaxDelay = def.MaxDelay
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry.MaxAttempts = def.MaxAttempts
	}

	defTr := session.DefaultTransportConfig()
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = defTr.HandshakeTimeout
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defTr.WriteTimeout
	}
	if o.BufferSize == 0 {
		o.BufferSize = defTr.BufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Client is the streaming client facade: it composes the credential
// fetch, both channel sessions, the subscription registry, the event
// bus, and the heartbeat monitor behind one object. Construct one per
// composition root; multiple independent instances are safe.
type Client struct {
	opts     Options
	creds    CredentialSource
	bus      *bus.Bus
	registry *subs.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu          sync.Mutex
	cancel      context.CancelFunc
	dataRunner  *session.Runner
	tradeRunner *session.Runner
	heartbeat   *session.Heartbeat
	wg          sync.WaitGroup
}

// New creates a Client. It does not connect; Initialize does.
func New(source CredentialSource, opts Options) *Client {
	opts.applyDefaults()

	return &Client{
		opts:     opts,
		creds:    source,
		bus:      bus.New(opts.Logger),
		registry: subs.NewRegistry(),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Initialize fetches channel configs, brings up both channel sessions
// concurrently, and starts the heartbeat monitor. It returns once both
// sessions reach ready, or with an error if either channel fails within
// its retry policy; credential errors are fatal and never retried.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.mu.Unlock()

	sc, err := c.creds.StreamConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch stream config: %w", err)
	}

	// The session lifetime outlives the Initialize call; only
	// Disconnect tears it down.
	runCtx, cancel := context.WithCancel(context.Background())

	dataRunner := session.NewRunner(
		session.KindData,
		c.opts.Retry,
		c.newSessionFactory(session.KindData, sc.Data),
		c.bus,
		c.logger,
		c.metrics,
	)
	tradeRunner := session.NewRunner(
		session.KindTrading,
		c.opts.Retry,
		c.newSessionFactory(session.KindTrading, sc.Trading),
		c.bus,
		c.logger,
		c.metrics,
	)
	heartbeat := session.NewHeartbeat(
		c.opts.HeartbeatInterval,
		[]func() *session.Session{dataRunner.Current, tradeRunner.Current},
		c.logger,
	)

	c.mu.Lock()
	c.cancel = cancel
	c.dataRunner = dataRunner
	c.tradeRunner = tradeRunner
	c.heartbeat = heartbeat
	c.mu.Unlock()

	c.bus.On(events.NameOrderUpdate, c.notifyOrderStatus)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		dataRunner.Run(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		tradeRunner.Run(runCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return awaitReady(gctx, dataRunner) })
	g.Go(func() error { return awaitReady(gctx, tradeRunner) })

	if err := g.Wait(); err != nil {
		c.Disconnect()
		return fmt.Errorf("initialize streams: %w", err)
	}

	heartbeat.Start()
	c.logger.Info("streaming client initialized")

	return nil
}

// awaitReady blocks until the channel first reaches ready, or fails.
func awaitReady(ctx context.Context, r *session.Runner) error {
	select {
	case <-r.FirstReady():
		return nil
	case <-r.Done():
		if err := r.Err(); err != nil {
			return fmt.Errorf("%s channel: %w", r.Kind(), err)
		}
		return fmt.Errorf("%s channel closed before ready", r.Kind())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe records the symbol/type pairs in the registry and, if the
// data channel is ready, sends the corresponding subscribe frame.
// Otherwise the change is picked up by the next reconnect replay.
func (c *Client) Subscribe(symbols []string, types []subs.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delta := c.registry.Add(symbols, types)
	if delta.Empty() {
		return nil
	}

	return c.sendDelta("subscribe", delta)
}

// Unsubscribe removes the symbol/type pairs from the registry and, if
// the data channel is ready, sends the corresponding unsubscribe frame.
func (c *Client) Unsubscribe(symbols []string, types []subs.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delta := c.registry.Remove(symbols, types)
	if delta.Empty() {
		return nil
	}

	return c.sendDelta("unsubscribe", delta)
}

// sendDelta sends a subscription change for the pairs that actually
// changed. Caller holds c.mu, so the registry mutation and the
// ready-check cannot interleave with a concurrent reconnect replay
// snapshot. A send failure is not surfaced: the registry already holds
// the intent and the replay on the next session covers it.
func (c *Client) sendDelta(action string, delta subs.Snapshot) error {
	if c.dataRunner == nil {
		return nil
	}
	s := c.dataRunner.Current()
	if s == nil || s.State() != session.StateReady {
		return nil
	}

	frame := codec.SubscribeFrame{
		Action: action,
		Trades: delta.Trades,
		Quotes: delta.Quotes,
		Bars:   delta.Bars,
	}
	if err := s.SendJSON(frame); err != nil {
		c.logger.Warn("subscription frame send failed, deferring to replay",
			"action", action,
			"error", err,
		)
	}

	return nil
}

// On registers a consumer callback for the named event and returns its
// removal token.
func (c *Client) On(event string, fn bus.Handler) bus.Token {
	return c.bus.On(event, fn)
}

// Off removes a registration made by On.
func (c *Client) Off(event string, tok bus.Token) {
	c.bus.Off(event, tok)
}

// Subscriptions returns the current subscription snapshot.
func (c *Client) Subscriptions() subs.Snapshot {
	return c.registry.Snapshot()
}

// Disconnect stops the heartbeat monitor, cancels any pending reconnect,
// closes both channels, and clears the registry and all bus
// registrations. It is safe to call from any state, including
// mid-reconnect, and is idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	heartbeat := c.heartbeat
	c.cancel = nil
	c.heartbeat = nil
	c.dataRunner = nil
	c.tradeRunner = nil
	c.mu.Unlock()

	if heartbeat != nil {
		heartbeat.Stop()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.registry.Clear()
	c.bus.Reset()

	if cancel != nil {
		c.logger.Info("streaming client disconnected")
	}
}

// newSessionFactory builds fresh sessions for one channel kind; the
// runner calls it on every bring-up attempt.
func (c *Client) newSessionFactory(kind session.Kind, cfg creds.ChannelConfig) func() *session.Session {
	trCfg := session.TransportConfig{
		URL:              cfg.URL,
		HandshakeTimeout: c.opts.HandshakeTimeout,
		WriteTimeout:     c.opts.WriteTimeout,
		BufferSize:       c.opts.BufferSize,
	}

	decode := codec.DecodeData
	onReady := c.replaySubscriptions
	if kind == session.KindTrading {
		decode = codec.DecodeTrading
		onReady = listenTradingStreams
	}

	return func() *session.Session {
		return session.New(session.Params{
			Kind:      kind,
			Auth:      cfg.Auth,
			Transport: session.NewTransport(trCfg, c.logger.With("channel", kind)),
			Decode:    decode,
			Bus:       c.bus,
			OnReady:   onReady,
			Logger:    c.logger,
			Metrics:   c.metrics,
		})
	}
}

// replaySubscriptions re-sends the full registry snapshot on a freshly
// authenticated data channel, so callers never re-issue subscribe calls
// after a transient disconnect.
func (c *Client) replaySubscriptions(s *session.Session) error {
	snap := c.registry.Snapshot()
	if snap.Empty() {
		return nil
	}

	c.logger.Info("replaying subscriptions",
		"trades", len(snap.Trades),
		"quotes", len(snap.Quotes),
		"bars", len(snap.Bars),
	)

	return s.SendJSON(codec.SubscribeFrame{
		Action: "subscribe",
		Trades: snap.Trades,
		Quotes: snap.Quotes,
		Bars:   snap.Bars,
	})
}

// listenTradingStreams starts the order and account update streams on a
// freshly authenticated trading channel.
func listenTradingStreams(s *session.Session) error {
	return s.SendJSON(codec.NewListenFrame("trade_updates", "account_updates"))
}
