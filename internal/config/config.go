package config

import "time"

// Config is the root configuration for the streaming client daemon.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Stream  StreamConfig  `yaml:"stream"`
	Symbols SymbolsConfig `yaml:"symbols"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig holds the credential endpoint settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"` // bearer token, usually ${MARKETSTREAM_TOKEN}
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds channel session and reconnect policy settings,
// shared by both channels.
type StreamConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// SymbolsConfig lists the initial subscriptions, per message type.
type SymbolsConfig struct {
	Trades []string `yaml:"trades"`
	Quotes []string `yaml:"quotes"`
	Bars   []string `yaml:"bars"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
