// Package subs implements the subscription registry.
//
// The registry owns the symbol → type-set mapping behind a mutex and
// exposes both a per-symbol view and a per-type snapshot, so reconnect
// replay can rebuild subscribe frames without recomputation.
package subs
