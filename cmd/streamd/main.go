// streamd runs the streaming client as a daemon: it authenticates both
// channels, subscribes the configured symbols, logs incoming events, and
// serves Prometheus metrics.
// Usage: go run ./cmd/streamd --config configs/streamd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iava-ai/marketstream/internal/config"
	"github.com/iava-ai/marketstream/internal/creds"
	"github.com/iava-ai/marketstream/internal/events"
	"github.com/iava-ai/marketstream/internal/metrics"
	"github.com/iava-ai/marketstream/internal/session"
	"github.com/iava-ai/marketstream/internal/stream"
	"github.com/iava-ai/marketstream/internal/subs"
	"github.com/iava-ai/marketstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamd.yaml", "path to config file")
	flag.Parse()

	// .env is optional; config expands ${VARS} from the environment.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Metrics endpoint
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metricsMux,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	source := creds.NewClient(
		cfg.API.BaseURL,
		cfg.API.Token,
		creds.WithLogger(logger),
		creds.WithTimeout(cfg.API.Timeout),
		creds.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	client := stream.New(source, stream.Options{
		Retry: session.RetryConfig{
			BaseDelay:   cfg.Stream.ReconnectBaseDelay,
			MaxDelay:    cfg.Stream.ReconnectMaxDelay,
			MaxAttempts: cfg.Stream.MaxReconnectAttempts,
		},
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		HandshakeTimeout:  cfg.Stream.HandshakeTimeout,
		WriteTimeout:      cfg.Stream.WriteTimeout,
		BufferSize:        cfg.Stream.BufferSize,
		Logger:            logger,
		Metrics:           m,
	})

	client.On(events.NameStatus, func(e events.Event) {
		st, ok := e.(events.Status)
		if !ok {
			return
		}
		logger.Info("channel status",
			"channel", st.Channel,
			"state", st.State,
			"severity", st.Severity,
			"error", st.Err,
		)
	})
	client.On(events.NameNotification, func(e events.Event) {
		n, ok := e.(events.Notification)
		if !ok {
			return
		}
		logger.Info("notification", "severity", n.Severity, "text", n.Text)
	})

	if err := client.Initialize(ctx); err != nil {
		logger.Error("failed to initialize streams", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	if err := subscribeConfigured(client, cfg.Symbols); err != nil {
		logger.Error("failed to subscribe symbols", "error", err)
		os.Exit(1)
	}

	logger.Info("streamd running",
		"trades", len(cfg.Symbols.Trades),
		"quotes", len(cfg.Symbols.Quotes),
		"bars", len(cfg.Symbols.Bars),
		"metrics_port", cfg.Metrics.Port,
	)

	<-ctx.Done()
	logger.Info("shutting down")
}

// subscribeConfigured applies the config file's initial symbol lists.
func subscribeConfigured(client *stream.Client, symbols config.SymbolsConfig) error {
	if len(symbols.Trades) > 0 {
		if err := client.Subscribe(symbols.Trades, []subs.Type{subs.TypeTrade}); err != nil {
			return err
		}
	}
	if len(symbols.Quotes) > 0 {
		if err := client.Subscribe(symbols.Quotes, []subs.Type{subs.TypeQuote}); err != nil {
			return err
		}
	}
	if len(symbols.Bars) > 0 {
		if err := client.Subscribe(symbols.Bars, []subs.Type{subs.TypeBar}); err != nil {
			return err
		}
	}
	return nil
}
