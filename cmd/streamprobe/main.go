// streamprobe connects both streaming channels and prints decoded
// events to the console, for protocol debugging.
// Usage: go run ./cmd/streamprobe --config configs/streamd.yaml --symbols AAPL,MSFT
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iava-ai/marketstream/internal/config"
	"github.com/iava-ai/marketstream/internal/creds"
	"github.com/iava-ai/marketstream/internal/events"
	"github.com/iava-ai/marketstream/internal/session"
	"github.com/iava-ai/marketstream/internal/stream"
	"github.com/iava-ai/marketstream/internal/subs"
)

func main() {
	configPath := flag.String("config", "configs/streamd.yaml", "path to config file")
	symbolsArg := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	flag.Parse()

	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

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
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

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
		Logger:            logger,
	})

	for _, name := range []string{
		events.NameTrade,
		events.NameQuote,
		events.NameBar,
		events.NameOrderUpdate,
		events.NameAccountUpdate,
		events.NameStatus,
		events.NameNotification,
	} {
		name := name
		client.On(name, func(e events.Event) {
			fmt.Printf("[%s] %+v\n", name, e)
		})
	}

	if err := client.Initialize(ctx); err != nil {
		logger.Error("failed to initialize streams", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	symbols := cfg.Symbols.Trades
	if *symbolsArg != "" {
		symbols = strings.Split(*symbolsArg, ",")
	}
	if len(symbols) > 0 {
		if err := client.Subscribe(symbols, subs.AllTypes); err != nil {
			logger.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
		logger.Info("subscribed", "symbols", symbols)
	}

	<-ctx.Done()
}
