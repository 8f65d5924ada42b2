package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be positive")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%v) cannot be below reconnect_base_delay (%v)",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectBaseDelay)
	}
	if c.Stream.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
