// Package session implements the channel session layer.
//
// The package owns:
//   - Transport: one physical websocket connection with channel-based
//     inbound delivery
//   - Session: the per-channel state machine (connecting, authenticating,
//     ready, closing, closed) feeding the codec → bus pipeline
//   - Runner: the reconnect policy (exponential backoff, attempt cap,
//     fatal status) and sole owner of session lifetimes
//   - Heartbeat: keep-alive probing of ready channels
//
// The data and trading channels each get their own Runner and fail
// independently.
package session
