package creds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrAuthRequired means the bearer token is absent, expired, or
// rejected. It is fatal to initialization and never retried here;
// refreshing the token is the caller's concern.
var ErrAuthRequired = errors.New("bearer token missing or rejected")

// ChannelConfig is the connection material for one streaming channel.
type ChannelConfig struct {
	URL  string          `json:"url"`
	Auth json.RawMessage `json:"auth"` // opaque auth payload, sent verbatim
}

// StreamConfig holds the configs for both channels, fetched once per
// session lifetime. Never mutated, only replaced on re-initialize.
type StreamConfig struct {
	Data    ChannelConfig
	Trading ChannelConfig
}

// streamConfigResponse is the credential endpoint's wire shape.
type streamConfigResponse struct {
	Config struct {
		DataStream    ChannelConfig `json:"dataStream"`
		TradingStream ChannelConfig `json:"tradingStream"`
	} `json:"config"`
}

// Client fetches streaming credentials from the collaborator REST
// endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a credential endpoint client.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// StreamConfig fetches the per-channel connection configs. A missing or
// rejected token yields ErrAuthRequired.
func (c *Client) StreamConfig(ctx context.Context) (*StreamConfig, error) {
	if c.token == "" {
		return nil, ErrAuthRequired
	}

	body, err := c.doWithRetry(ctx, http.MethodGet, "/stream/config")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		return nil, err
	}

	var resp streamConfigResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal stream config: %w", err)
	}

	cfg := &StreamConfig{
		Data:    resp.Config.DataStream,
		Trading: resp.Config.TradingStream,
	}
	if cfg.Data.URL == "" || cfg.Trading.URL == "" {
		return nil, fmt.Errorf("stream config missing channel url")
	}

	return cfg, nil
}
