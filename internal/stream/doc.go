// Package stream exposes the streaming client facade: the single object
// application code depends on for live market data and order updates.
//
// The facade composes the credential fetch, the two channel sessions
// (market data and trading), the subscription registry, the event bus,
// and the heartbeat monitor. Consumers interact through Initialize,
// Subscribe/Unsubscribe, On/Off, and Disconnect.
package stream
