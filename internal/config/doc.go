// Package config loads and validates the streaming client's YAML
// configuration, with ${VAR} environment expansion and defaults for
// every optional field.
package config
