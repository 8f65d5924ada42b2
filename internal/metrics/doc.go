// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - per-channel frame and decode-error rates
//   - events published per topic
//   - reconnect attempts and ready-session state
//   - heartbeat probe counts
//
// A nil *Metrics is valid everywhere and records nothing, so callers
// that do not scrape can skip the registry entirely.
package metrics
